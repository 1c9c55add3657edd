package repository

import (
	"context"

	"stockledger/internal/apierror"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Search string
	Active string // "true" (default) | "false" | "all"
	Page   int
	Limit  int
}

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory stubs.
type ProductRepository interface {
	// CreateTx inserts a product with zero stock; opening stock is booked
	// separately as an import entry in the same transaction.
	CreateTx(ctx context.Context, tx *gorm.DB, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	// UpdateCatalog persists name/slug/price/sale_price/active. It never touches
	// stock_quantity or ledger_version.
	UpdateCatalog(ctx context.Context, p *model.Product) error

	// Used inside transactions; callers must pass the tx instance.

	// LockTx reads a product with SELECT ... FOR UPDATE.
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	// LockManyTx locks several products in ascending id order so concurrent
	// multi-product writers cannot deadlock on each other.
	LockManyTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	// SetStockTx writes the new counter and bumps ledger_version, guarded by the
	// version the caller read under lock.
	SetStockTx(tx *gorm.DB, id uuid.UUID, quantity int, expectedVersion int64) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) CreateTx(ctx context.Context, tx *gorm.DB, p *model.Product) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{})

	switch filter.Active {
	case "false":
		q = q.Where("active = false")
	case "all":
		// no filter
	default:
		q = q.Where("active = true")
	}
	if filter.Search != "" {
		q = q.Where("name ILIKE ? OR sku = ?", "%"+filter.Search+"%", filter.Search)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	err := q.Order("name ASC").Limit(limit).Offset((page - 1) * limit).Find(&products).Error
	return products, total, err
}

func (r *productRepo) UpdateCatalog(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Model(p).
		Select("name", "slug", "price", "sale_price", "active", "updated_at").
		Updates(p).Error
}

func (r *productRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) LockManyTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) SetStockTx(tx *gorm.DB, id uuid.UUID, quantity int, expectedVersion int64) error {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND ledger_version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"stock_quantity": quantity,
			"ledger_version": gorm.Expr("ledger_version + 1"),
			"updated_at":     gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierror.Conflict("product changed since it was read", nil)
	}
	return nil
}

// normalizePage applies the listing defaults: page >= 1, limit 1..500 (default 100).
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return page, limit
}
