package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the settlement of an order's single payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is 1:1 with Order.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Method        string          `gorm:"type:varchar(32);not null"`
	Status        PaymentStatus   `gorm:"type:varchar(16);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TransactionID *string         `gorm:"index"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormaliseStatus maps the free-form status strings reported by payment
// collaborators onto PaymentStatus. Unknown values stay pending.
func NormaliseStatus(reported string) PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(reported)) {
	case "COMPLETED", "SUCCESS", "SUCCESSFUL", "PAID", "SETTLED", "TS":
		return PaymentCompleted
	case "FAILED", "FAILURE", "DECLINED", "REJECTED", "TF":
		return PaymentFailed
	default:
		return PaymentPending
	}
}
