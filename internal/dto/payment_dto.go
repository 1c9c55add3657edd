package dto

import "github.com/shopspring/decimal"

// SettlementRequest is posted by the payment collaborator once it knows the
// outcome. Status is free-form ("SUCCESS", "TS", "declined", ...).
type SettlementRequest struct {
	OrderID       string `json:"order_id"       validate:"required,uuid"`
	Status        string `json:"status"         validate:"required"`
	TransactionID string `json:"transaction_id" validate:"max=128"`
}

type PaymentResponse struct {
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID *string         `json:"transaction_id"`
	PaidAt        *string         `json:"paid_at"`
}
