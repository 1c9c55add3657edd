package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OrderLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"   validate:"required,min=1,max=1000000"`
}

type FulfillOrderRequest struct {
	Lines           []OrderLineRequest `json:"lines"            validate:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" validate:"required,min=5,max=500"`
	PaymentMethod   string             `json:"payment_method"   validate:"required"`
}

// CheckoutRequest places an order from the caller's cart.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,min=5,max=500"`
	PaymentMethod   string `json:"payment_method"   validate:"required"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed shipping delivered"`
}

// OrderQuery is bound from the query string of GET /v1/orders.
type OrderQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=pending confirmed shipping delivered cancelled"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrderLineResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	OwnerID         string              `json:"owner_id"`
	Status          string              `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	ShippingFee     decimal.Decimal     `json:"shipping_fee"`
	Tax             decimal.Decimal     `json:"tax"`
	Discount        decimal.Decimal     `json:"discount"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	Lines           []OrderLineResponse `json:"lines"`
	Payment         *PaymentResponse    `json:"payment"`
	CreatedAt       string              `json:"created_at"`
}

type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
