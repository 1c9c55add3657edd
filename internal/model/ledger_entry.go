package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryImport     EntryType = "import"
	EntryExport     EntryType = "export"
	EntryAdjustment EntryType = "adjustment"
)

// MaxMovementQuantity caps the quantity of a single movement or order line.
const MaxMovementQuantity = 1_000_000

func (t EntryType) Valid() bool {
	switch t {
	case EntryImport, EntryExport, EntryAdjustment:
		return true
	}
	return false
}

// ReferenceKind names the business event that caused a stock change.
type ReferenceKind string

const (
	RefOrder    ReferenceKind = "order"
	RefPurchase ReferenceKind = "purchase"
	RefManual   ReferenceKind = "manual"
)

func (k ReferenceKind) Valid() bool {
	switch k {
	case RefOrder, RefPurchase, RefManual:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of one stock change with its
// before/after snapshot. Version is the per-product sequence number; entry N
// always has QuantityBefore equal to entry N-1's QuantityAfter.
// Rows are inserted once and never updated or deleted.
type LedgerEntry struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_product_created,priority:1;uniqueIndex:idx_ledger_product_version,priority:1"`
	SupplierID     *uuid.UUID       `gorm:"type:uuid;index:idx_ledger_supplier"`
	Type           EntryType        `gorm:"type:varchar(16);not null;index:idx_ledger_type"`
	Delta          int              `gorm:"not null"`
	QuantityBefore int              `gorm:"not null"`
	QuantityAfter  int              `gorm:"not null"`
	Version        int64            `gorm:"not null;uniqueIndex:idx_ledger_product_version,priority:2"`
	UnitPrice      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalAmount    *decimal.Decimal `gorm:"type:decimal(14,2)"`
	ReferenceKind  *ReferenceKind   `gorm:"type:varchar(16)"`
	ReferenceID    *uuid.UUID       `gorm:"type:uuid"`
	Notes          string
	Actor          string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_ledger_product_created,priority:2"`

	Product  *Product  `gorm:"foreignKey:ProductID"`
	Supplier *Supplier `gorm:"foreignKey:SupplierID"`
}

// TableName overrides GORM's default pluralization.
func (LedgerEntry) TableName() string { return "ledger_entries" }
