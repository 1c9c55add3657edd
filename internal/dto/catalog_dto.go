package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	SKU       string           `json:"sku"        validate:"required,min=2,max=64"`
	Name      string           `json:"name"       validate:"required,min=2,max=200"`
	Price     decimal.Decimal  `json:"price"      validate:"required,gt=0"`
	SalePrice *decimal.Decimal `json:"sale_price"`
	// InitialStock is booked as an import entry, never written to the counter directly.
	InitialStock int     `json:"initial_stock" validate:"min=0,max=1000000"`
	SupplierID   *string `json:"supplier_id"   validate:"omitempty,uuid"`
}

// UpdateProductRequest never carries stock; stock only moves through the ledger.
type UpdateProductRequest struct {
	Name           *string          `json:"name"       validate:"omitempty,min=2,max=200"`
	Price          *decimal.Decimal `json:"price"`
	SalePrice      *decimal.Decimal `json:"sale_price"`
	ClearSalePrice bool             `json:"clear_sale_price"`
	Active         *bool            `json:"active"`
}

type ProductQuery struct {
	Search string `form:"search"`
	Active string `form:"active,default=true" validate:"oneof=true false all"`
	Page   int    `form:"page,default=1"    validate:"min=1"`
	Limit  int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type CreateSupplierRequest struct {
	Code  string  `json:"code"  validate:"required,min=2,max=32"`
	Name  string  `json:"name"  validate:"required,min=2,max=200"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID             string           `json:"id"`
	SKU            string           `json:"sku"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Price          decimal.Decimal  `json:"price"`
	SalePrice      *decimal.Decimal `json:"sale_price"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	StockQuantity  int              `json:"stock_quantity"`
	LedgerVersion  int64            `json:"ledger_version"`
	Active         bool             `json:"active"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type SupplierResponse struct {
	ID     string  `json:"id"`
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Email  *string `json:"email"`
	Active bool    `json:"active"`
}
