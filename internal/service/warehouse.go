package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// WarehouseService runs back-office stock movements. Each call writes exactly
// one ledger entry in its own unit of work.
type WarehouseService interface {
	Import(ctx context.Context, actor string, req dto.ImportStockRequest) (*dto.LedgerEntryResponse, error)
	Export(ctx context.Context, actor string, req dto.ExportStockRequest) (*dto.LedgerEntryResponse, error)
	Adjust(ctx context.Context, actor string, req dto.AdjustStockRequest) (*dto.LedgerEntryResponse, error)
	QueryLedger(ctx context.Context, q dto.LedgerQuery) (*dto.LedgerListResponse, error)
}

type warehouseService struct {
	uow       repository.UnitOfWork
	ledger    *StockLedger
	suppliers repository.SupplierRepository
	events    EventPublisher
}

func NewWarehouseService(uow repository.UnitOfWork, ledger *StockLedger, suppliers repository.SupplierRepository, events EventPublisher) WarehouseService {
	return &warehouseService{uow: uow, ledger: ledger, suppliers: suppliers, events: events}
}

func (s *warehouseService) Import(ctx context.Context, actor string, req dto.ImportStockRequest) (*dto.LedgerEntryResponse, error) {
	productID, err := parseID("product_id", req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity("quantity", req.Quantity, 1); err != nil {
		return nil, err
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, apierror.Invalid("unit_price", "must not be negative")
	}
	supplierID, err := parseOptionalID("supplier_id", req.SupplierID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}

	m := Mutation{
		ProductID: productID,
		Type:      model.EntryImport,
		Delta:     req.Quantity,
		UnitPrice: req.UnitPrice,
		Notes:     strings.TrimSpace(req.Notes),
		Actor:     actor,
	}
	if supplierID != nil {
		sup, err := s.suppliers.FindByID(ctx, *supplierID)
		if err != nil {
			return nil, lookupErr("supplier", *supplierID, err)
		}
		if !sup.Active {
			return nil, apierror.Invalid("supplier_id", "supplier is inactive")
		}
		kind := model.RefPurchase
		m.SupplierID = supplierID
		m.RefKind = &kind
		m.RefID = supplierID
	}
	return s.run(ctx, m)
}

func (s *warehouseService) Export(ctx context.Context, actor string, req dto.ExportStockRequest) (*dto.LedgerEntryResponse, error) {
	productID, err := parseID("product_id", req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity("quantity", req.Quantity, 1); err != nil {
		return nil, err
	}

	m := Mutation{
		ProductID: productID,
		Type:      model.EntryExport,
		Delta:     -req.Quantity,
		Notes:     strings.TrimSpace(req.Notes),
		Actor:     actor,
	}
	if req.Reference != nil {
		kind := model.ReferenceKind(req.Reference.Kind)
		if !kind.Valid() {
			return nil, apierror.Invalid("reference.kind", "must be one of order, purchase, manual")
		}
		refID, err := parseOptionalID("reference.id", req.Reference.ID)
		if err != nil {
			return nil, err
		}
		m.RefKind = &kind
		m.RefID = refID
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.run(ctx, m)
}

func (s *warehouseService) Adjust(ctx context.Context, actor string, req dto.AdjustStockRequest) (*dto.LedgerEntryResponse, error) {
	productID, err := parseID("product_id", req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.NewQuantity == nil {
		return nil, apierror.Invalid("new_quantity", "is required")
	}
	if err := checkQuantity("new_quantity", *req.NewQuantity, 0); err != nil {
		return nil, err
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}

	kind := model.RefManual
	target := *req.NewQuantity
	return s.run(ctx, Mutation{
		ProductID: productID,
		Type:      model.EntryAdjustment,
		Target:    &target,
		RefKind:   &kind,
		Notes:     strings.TrimSpace(req.Notes),
		Actor:     actor,
	})
}

// requireProduct fails fast on an unknown product, before any lock is taken.
func (s *warehouseService) requireProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.ledger.products.FindByID(ctx, id); err != nil {
		return lookupErr("product", id, err)
	}
	return nil
}

func checkQuantity(field string, q, min int) error {
	if q < min || q > model.MaxMovementQuantity {
		return apierror.Invalid(field, fmt.Sprintf("must be between %d and %d", min, model.MaxMovementQuantity))
	}
	return nil
}

// run applies m in a fresh unit of work and publishes after commit.
func (s *warehouseService) run(ctx context.Context, m Mutation) (*dto.LedgerEntryResponse, error) {
	ctx, span := tracer.Start(ctx, "WarehouseService."+string(m.Type))

	var entry *model.LedgerEntry
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.ledger.Apply(ctx, tx, m)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("product_id", entry.ProductID.String()).
		Str("type", string(entry.Type)).
		Int("delta", entry.Delta).
		Int64("version", entry.Version).
		Str("actor", entry.Actor).
		Msg("warehouse operation committed")

	resp := toLedgerEntryResponse(entry)
	publish(ctx, s.events, model.EventStockChanged, entry.ProductID.String(), resp)
	return &resp, nil
}

func (s *warehouseService) QueryLedger(ctx context.Context, q dto.LedgerQuery) (*dto.LedgerListResponse, error) {
	filter := repository.LedgerFilter{
		Type:  model.EntryType(q.Type),
		Page:  q.Page,
		Limit: q.Limit,
	}
	var err error
	if filter.ProductID, err = parseOptionalID("product_id", &q.ProductID); err != nil {
		return nil, err
	}
	if filter.SupplierID, err = parseOptionalID("supplier_id", &q.SupplierID); err != nil {
		return nil, err
	}
	if filter.From, err = parseTimeBound("from", q.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseTimeBound("to", q.To); err != nil {
		return nil, err
	}

	var entries []model.LedgerEntry
	var total int64
	if filter.ProductID != nil && filter.SupplierID == nil && filter.Type == "" && filter.From == nil && filter.To == nil {
		entries, total, err = s.ledger.QueryByProduct(ctx, *filter.ProductID, filter.Page, filter.Limit)
	} else {
		entries, total, err = s.ledger.Query(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	page, limit := pageBounds(q.Page, q.Limit)
	resp := &dto.LedgerListResponse{Data: make([]dto.LedgerEntryResponse, len(entries)), Total: total, Page: page, Limit: limit}
	for i := range entries {
		resp.Data[i] = toLedgerEntryResponse(&entries[i])
	}
	return resp, nil
}

// parseTimeBound accepts RFC 3339 or a bare date (midnight UTC).
func parseTimeBound(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apierror.Invalid(field, "must be RFC 3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// pageBounds mirrors the repository defaults so responses echo what was used.
func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return page, limit
}
