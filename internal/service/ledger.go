package service

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Mutation describes one stock change. Exactly one of Delta or Target is used:
// when Target is set the delta is computed from the counter read under lock.
type Mutation struct {
	ProductID  uuid.UUID
	Type       model.EntryType
	Delta      int
	Target     *int
	SupplierID *uuid.UUID
	UnitPrice  *decimal.Decimal
	RefKind    *model.ReferenceKind
	RefID      *uuid.UUID
	Notes      string
	Actor      string
}

// StockLedger owns the only code path that changes a product's stock counter.
// Warehouse operations, order fulfillment and order cancellation all call Apply
// from inside their own unit of work.
type StockLedger struct {
	products repository.ProductRepository
	entries  repository.LedgerRepository
	now      func() time.Time
}

func NewStockLedger(products repository.ProductRepository, entries repository.LedgerRepository) *StockLedger {
	return &StockLedger{products: products, entries: entries, now: time.Now}
}

// Apply locks the product row, appends the next entry of its chain and moves
// the counter, all on tx. It must run inside UnitOfWork.Do.
func (l *StockLedger) Apply(ctx context.Context, tx *gorm.DB, m Mutation) (*model.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "StockLedger.Apply")
	span.SetAttributes(
		attribute.String("product.id", m.ProductID.String()),
		attribute.String("ledger.type", string(m.Type)),
	)
	// Statements issued on tx below run under the Apply span.
	if tx != nil {
		tx = tx.WithContext(ctx)
	}

	entry, err := l.apply(tx, m)
	endSpan(span, err)
	return entry, err
}

func (l *StockLedger) apply(tx *gorm.DB, m Mutation) (*model.LedgerEntry, error) {
	if !m.Type.Valid() {
		return nil, apierror.Invalid("type", "unknown entry type")
	}

	p, err := l.products.LockTx(tx, m.ProductID)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.NotFound("product", m.ProductID)
		}
		return nil, fmt.Errorf("lock product %s: %w", m.ProductID, err)
	}

	before := p.StockQuantity
	delta := m.Delta
	if m.Target != nil {
		delta = *m.Target - before
	}
	// The entry type must agree with the direction of the change.
	switch {
	case m.Type == model.EntryImport && delta <= 0:
		return nil, apierror.Invalid("quantity", "an import must increase stock")
	case m.Type == model.EntryExport && delta >= 0:
		return nil, apierror.Invalid("quantity", "an export must decrease stock")
	}
	after := before + delta
	if delta > 0 && after < before {
		return nil, apierror.Invalid("quantity", "resulting stock is out of range")
	}
	if after < 0 {
		return nil, &apierror.InsufficientStockError{ProductID: p.ID, Requested: -delta, Available: before}
	}

	if err := l.products.SetStockTx(tx, p.ID, after, p.LedgerVersion); err != nil {
		return nil, err
	}

	entry := &model.LedgerEntry{
		ID:             uuid.New(),
		ProductID:      p.ID,
		SupplierID:     m.SupplierID,
		Type:           m.Type,
		Delta:          delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		Version:        p.LedgerVersion + 1,
		UnitPrice:      m.UnitPrice,
		ReferenceKind:  m.RefKind,
		ReferenceID:    m.RefID,
		Notes:          m.Notes,
		Actor:          m.Actor,
		CreatedAt:      l.now().UTC(),
	}
	if m.UnitPrice != nil {
		total := m.UnitPrice.Mul(decimal.NewFromInt(int64(absInt(delta))))
		entry.TotalAmount = &total
	}
	if err := l.entries.AppendTx(tx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	log.Debug().
		Str("product_id", p.ID.String()).
		Str("type", string(m.Type)).
		Int("delta", delta).
		Int64("version", entry.Version).
		Msg("stock mutated")
	return entry, nil
}

// ── Read side ────────────────────────────────────────────────────────────────
// All queries are newest first and paginated (limit defaults to 100, max 500).

func (l *StockLedger) QueryByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.LedgerEntry, int64, error) {
	if _, err := l.products.FindByID(ctx, productID); err != nil {
		return nil, 0, lookupErr("product", productID, err)
	}
	return l.Query(ctx, repository.LedgerFilter{ProductID: &productID, Page: page, Limit: limit})
}

func (l *StockLedger) QueryBySupplier(ctx context.Context, supplierID uuid.UUID, page, limit int) ([]model.LedgerEntry, int64, error) {
	return l.Query(ctx, repository.LedgerFilter{SupplierID: &supplierID, Page: page, Limit: limit})
}

// QueryByDateRange returns entries created in [from, to).
func (l *StockLedger) QueryByDateRange(ctx context.Context, from, to time.Time, page, limit int) ([]model.LedgerEntry, int64, error) {
	return l.Query(ctx, repository.LedgerFilter{From: &from, To: &to, Page: page, Limit: limit})
}

// Query runs an arbitrary combination of the filters above.
func (l *StockLedger) Query(ctx context.Context, filter repository.LedgerFilter) ([]model.LedgerEntry, int64, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, apierror.Invalid("from", "must be before to")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, apierror.Invalid("type", "unknown entry type")
	}
	entries, total, err := l.entries.List(ctx, filter)
	if err != nil {
		return nil, 0, apierror.Persistence("query ledger", err)
	}
	return entries, total, nil
}

// History returns a product's complete chain, oldest first.
func (l *StockLedger) History(ctx context.Context, productID uuid.UUID) ([]model.LedgerEntry, error) {
	entries, err := l.entries.ListAllByProduct(ctx, productID)
	if err != nil {
		return nil, apierror.Persistence("load ledger chain", err)
	}
	return entries, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
