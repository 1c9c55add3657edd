package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ImportStockRequest struct {
	ProductID  string           `json:"product_id"  validate:"required,uuid"`
	Quantity   int              `json:"quantity"    validate:"required,min=1,max=1000000"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	SupplierID *string          `json:"supplier_id" validate:"omitempty,uuid"`
	Notes      string           `json:"notes"       validate:"max=500"`
}

// ReferenceRequest links an export to the business event that caused it.
type ReferenceRequest struct {
	Kind string  `json:"kind" validate:"required,oneof=order purchase manual"`
	ID   *string `json:"id"   validate:"omitempty,uuid"`
}

type ExportStockRequest struct {
	ProductID string            `json:"product_id" validate:"required,uuid"`
	Quantity  int               `json:"quantity"   validate:"required,min=1,max=1000000"`
	Reference *ReferenceRequest `json:"reference"`
	Notes     string            `json:"notes"      validate:"max=500"`
}

// AdjustStockRequest sets the counter to an absolute value (stock take).
// NewQuantity is a pointer so that an explicit 0 passes "required".
type AdjustStockRequest struct {
	ProductID   string `json:"product_id"   validate:"required,uuid"`
	NewQuantity *int   `json:"new_quantity" validate:"required,min=0,max=1000000"`
	Notes       string `json:"notes"        validate:"max=500"`
}

// LedgerQuery is bound from the query string of GET /v1/inventory/ledger.
// From and To are RFC 3339 timestamps or YYYY-MM-DD dates.
type LedgerQuery struct {
	ProductID  string `form:"product_id"  validate:"omitempty,uuid"`
	SupplierID string `form:"supplier_id" validate:"omitempty,uuid"`
	Type       string `form:"type"        validate:"omitempty,oneof=import export adjustment"`
	From       string `form:"from"`
	To         string `form:"to"`
	Page       int    `form:"page,default=1"    validate:"min=1"`
	Limit      int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LedgerEntryResponse struct {
	ID             string           `json:"id"`
	ProductID      string           `json:"product_id"`
	SupplierID     *string          `json:"supplier_id"`
	Type           string           `json:"type"`
	Delta          int              `json:"delta"`
	QuantityBefore int              `json:"quantity_before"`
	QuantityAfter  int              `json:"quantity_after"`
	Version        int64            `json:"version"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	TotalAmount    *decimal.Decimal `json:"total_amount"`
	ReferenceKind  *string          `json:"reference_kind"`
	ReferenceID    *string          `json:"reference_id"`
	Notes          string           `json:"notes"`
	Actor          string           `json:"actor"`
	CreatedAt      string           `json:"created_at"`
}

type LedgerListResponse struct {
	Data  []LedgerEntryResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

type InventorySummaryResponse struct {
	ProductID       string `json:"product_id"`
	TotalImport     int    `json:"total_import"`
	TotalExport     int    `json:"total_export"`
	TotalAdjustment int    `json:"total_adjustment"`
	ProjectedStock  int    `json:"projected_stock"`
	EntryCount      int    `json:"entry_count"`
	LiveStock       int    `json:"live_stock"`
	LedgerVersion   int64  `json:"ledger_version"`
}

type ChainBreakResponse struct {
	Version        int64  `json:"version"`
	ExpectedBefore int    `json:"expected_before"`
	ActualBefore   int    `json:"actual_before"`
	Reason         string `json:"reason"`
}

type ConsistencyReportResponse struct {
	ProductID      string               `json:"product_id"`
	ProjectedStock int                  `json:"projected_stock"`
	LiveStock      int                  `json:"live_stock"`
	Drift          int                  `json:"drift"`
	EntryCount     int                  `json:"entry_count"`
	LedgerVersion  int64                `json:"ledger_version"`
	ChainBreaks    []ChainBreakResponse `json:"chain_breaks"`
	Consistent     bool                 `json:"consistent"`
}
