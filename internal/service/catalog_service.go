package service

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService is the thin product and supplier catalog. It never writes
// stock directly: opening stock is booked as an import entry.
type CatalogService interface {
	CreateProduct(ctx context.Context, actor string, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	ListProducts(ctx context.Context, q dto.ProductQuery) (*dto.ProductListResponse, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error)
	CreateSupplier(ctx context.Context, req dto.CreateSupplierRequest) (*dto.SupplierResponse, error)
	ListSuppliers(ctx context.Context) ([]dto.SupplierResponse, error)
}

type catalogService struct {
	uow       repository.UnitOfWork
	products  repository.ProductRepository
	suppliers repository.SupplierRepository
	ledger    *StockLedger
	events    EventPublisher
	now       func() time.Time
}

func NewCatalogService(
	uow repository.UnitOfWork,
	products repository.ProductRepository,
	suppliers repository.SupplierRepository,
	ledger *StockLedger,
	events EventPublisher,
) CatalogService {
	return &catalogService{uow: uow, products: products, suppliers: suppliers, ledger: ledger, events: events, now: time.Now}
}

func validatePrices(price decimal.Decimal, sale *decimal.Decimal) error {
	if !price.IsPositive() {
		return apierror.Invalid("price", "must be greater than 0")
	}
	if sale != nil && (sale.IsNegative() || sale.GreaterThan(price)) {
		return apierror.Invalid("sale_price", "must be between 0 and price")
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, actor string, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	sku := strings.TrimSpace(req.SKU)
	if name == "" {
		return nil, apierror.Invalid("name", "is required")
	}
	if sku == "" {
		return nil, apierror.Invalid("sku", "is required")
	}
	if err := validatePrices(req.Price, req.SalePrice); err != nil {
		return nil, err
	}
	if err := checkQuantity("initial_stock", req.InitialStock, 0); err != nil {
		return nil, err
	}
	supplierID, err := parseOptionalID("supplier_id", req.SupplierID)
	if err != nil {
		return nil, err
	}
	if supplierID != nil {
		if _, err := s.suppliers.FindByID(ctx, *supplierID); err != nil {
			return nil, lookupErr("supplier", *supplierID, err)
		}
	}

	now := s.now()
	p := &model.Product{
		ID:        uuid.New(),
		SKU:       sku,
		Name:      name,
		Slug:      model.Slugify(name),
		Price:     req.Price,
		SalePrice: req.SalePrice,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var opening *model.LedgerEntry
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		if err := s.products.CreateTx(ctx, tx, p); err != nil {
			return err
		}
		if req.InitialStock == 0 {
			return nil
		}
		m := Mutation{
			ProductID:  p.ID,
			Type:       model.EntryImport,
			Delta:      req.InitialStock,
			SupplierID: supplierID,
			Notes:      "opening stock",
			Actor:      actor,
		}
		if supplierID != nil {
			kind := model.RefPurchase
			m.RefKind, m.RefID = &kind, supplierID
		}
		entry, err := s.ledger.Apply(ctx, tx, m)
		if err != nil {
			return err
		}
		opening = entry
		p.StockQuantity = entry.QuantityAfter
		p.LedgerVersion = entry.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("product_id", p.ID.String()).Str("sku", p.SKU).Int("initial_stock", p.StockQuantity).Msg("product created")
	if opening != nil {
		publish(ctx, s.events, model.EventStockChanged, p.ID.String(), toLedgerEntryResponse(opening))
	}
	resp := toProductResponse(p)
	return &resp, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("product", id, err)
	}
	resp := toProductResponse(p)
	return &resp, nil
}

func (s *catalogService) ListProducts(ctx context.Context, q dto.ProductQuery) (*dto.ProductListResponse, error) {
	products, total, err := s.products.List(ctx, repository.ProductFilter{
		Search: strings.TrimSpace(q.Search),
		Active: q.Active,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, apierror.Persistence("list products", err)
	}
	page, limit := pageBounds(q.Page, q.Limit)
	resp := &dto.ProductListResponse{Data: make([]dto.ProductResponse, len(products)), Total: total, Page: page, Limit: limit}
	for i := range products {
		resp.Data[i] = toProductResponse(&products[i])
	}
	return resp, nil
}

// UpdateProduct changes catalog fields only. The slug follows the name.
func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("product", id, err)
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apierror.Invalid("name", "must not be empty")
		}
		p.Name = name
		p.Slug = model.Slugify(name)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.ClearSalePrice {
		p.SalePrice = nil
	} else if req.SalePrice != nil {
		sale := *req.SalePrice
		p.SalePrice = &sale
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := validatePrices(p.Price, p.SalePrice); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	if err := s.products.UpdateCatalog(ctx, p); err != nil {
		return nil, apierror.Persistence("update product", err)
	}
	resp := toProductResponse(p)
	return &resp, nil
}

func (s *catalogService) CreateSupplier(ctx context.Context, req dto.CreateSupplierRequest) (*dto.SupplierResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, apierror.Invalid("code", "code and name are required")
	}
	now := s.now()
	sup := &model.Supplier{ID: uuid.New(), Code: code, Name: name, Email: req.Email, Active: true, CreatedAt: now, UpdatedAt: now}
	// Run through the unit of work so a duplicate code surfaces as a validation error.
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		return s.suppliers.CreateTx(ctx, tx, sup)
	})
	if err != nil {
		return nil, err
	}
	resp := toSupplierResponse(sup)
	return &resp, nil
}

func (s *catalogService) ListSuppliers(ctx context.Context) ([]dto.SupplierResponse, error) {
	suppliers, err := s.suppliers.List(ctx)
	if err != nil {
		return nil, apierror.Persistence("list suppliers", err)
	}
	resp := make([]dto.SupplierResponse, len(suppliers))
	for i := range suppliers {
		resp[i] = toSupplierResponse(&suppliers[i])
	}
	return resp, nil
}
