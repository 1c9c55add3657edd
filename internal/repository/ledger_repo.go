package repository

import (
	"context"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerFilter selects entries for the read-side queries. Zero values mean
// "no constraint"; From is inclusive, To is exclusive.
type LedgerFilter struct {
	ProductID  *uuid.UUID
	SupplierID *uuid.UUID
	Type       model.EntryType
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	AppendTx(tx *gorm.DB, e *model.LedgerEntry) error
	List(ctx context.Context, filter LedgerFilter) ([]model.LedgerEntry, int64, error)
	// ListAllByProduct returns every entry of a product in chain order (version ASC).
	ListAllByProduct(ctx context.Context, productID uuid.UUID) ([]model.LedgerEntry, error)
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) AppendTx(tx *gorm.DB, e *model.LedgerEntry) error {
	return tx.Create(e).Error
}

func (r *ledgerRepo) List(ctx context.Context, filter LedgerFilter) ([]model.LedgerEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.LedgerEntry{})
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.SupplierID != nil {
		q = q.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)

	var entries []model.LedgerEntry
	err := q.Order("created_at DESC").Order("version DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error
	return entries, total, err
}

func (r *ledgerRepo) ListAllByProduct(ctx context.Context, productID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("version ASC").
		Find(&entries).Error
	return entries, err
}
