package service

import (
	"context"
	"testing"

	"stockledger/internal/dto"
	"stockledger/internal/model"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memStore
	uow       *memUnitOfWork
	ledger    *StockLedger
	projector *InventoryProjector
	warehouse WarehouseService
	orders    OrderService
	payments  PaymentService
	catalog   CatalogService
	carts     CartService
	cart      *memCart
	cache     *memCache
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	uow := &memUnitOfWork{store: store}
	products := &memProducts{s: store}
	suppliers := &memSuppliers{s: store}
	ledger := NewStockLedger(products, &memLedger{s: store})
	events := &recordingPublisher{}
	cart := newMemCart()
	cache := newMemCache()

	return &fixture{
		store:     store,
		uow:       uow,
		ledger:    ledger,
		projector: NewInventoryProjector(products, ledger, cache),
		warehouse: NewWarehouseService(uow, ledger, suppliers, events),
		orders: NewOrderService(OrderDeps{
			UnitOfWork: uow,
			Orders:     &memOrders{s: store},
			Products:   products,
			Payments:   &memPayments{s: store},
			Ledger:     ledger,
			Pricing: Pricing{
				ShippingFlatFee:       decimal.NewFromInt(30000),
				FreeShippingThreshold: decimal.NewFromInt(500000),
				TaxRatePct:            decimal.NewFromInt(10),
			},
			Payment: NewPaymentPolicy(
				[]string{"cod", "bank_transfer", "qr", "gateway", "card", "e_wallet"},
				[]string{"cod", "bank_transfer", "qr", "gateway"},
			),
			Cart:   cart,
			Events: events,
		}),
		payments: NewPaymentService(uow, &memPayments{s: store}, events),
		catalog:  NewCatalogService(uow, products, suppliers, ledger, events),
		carts:    NewCartService(cart, products),
		cart:     cart,
		cache:    cache,
		events:   events,
	}
}

// seedProduct creates a product whose opening stock is booked as an import.
func (f *fixture) seedProduct(t *testing.T, price string, stock int) uuid.UUID {
	t.Helper()
	resp, err := f.catalog.CreateProduct(context.Background(), "seed", dto.CreateProductRequest{
		SKU:          "SKU-" + uuid.NewString()[:8],
		Name:         "Product " + uuid.NewString()[:4],
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func (f *fixture) seedSupplier(t *testing.T, code string) uuid.UUID {
	t.Helper()
	resp, err := f.catalog.CreateSupplier(context.Background(), dto.CreateSupplierRequest{Code: code, Name: "Supplier " + code})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

// assertLedgerHolds checks the chain and projection for one product.
func (f *fixture) assertLedgerHolds(t *testing.T, productID uuid.UUID) {
	t.Helper()
	chain := f.store.chain(productID)
	assert.Empty(t, VerifyChain(chain), "chain broken:\n%s", spew.Sdump(chain))
	assert.Equal(t, f.store.stock(productID), Project(chain).ProjectedStock,
		"projection differs from live stock:\n%s", spew.Sdump(chain))
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func refKind(k model.ReferenceKind) *model.ReferenceKind { return &k }
