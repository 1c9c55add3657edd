package service

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── In-memory store ───────────────────────────────────────────────────────────
// memStore backs every stub repository. memUnitOfWork serializes transactions
// with one mutex and restores a snapshot when fn fails or panics, which is the
// observable contract of the gorm-backed unit of work.

type memStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]model.Product
	entries   []model.LedgerEntry
	orders    map[uuid.UUID]model.Order
	payments  map[uuid.UUID]model.Payment // keyed by order id
	suppliers map[uuid.UUID]model.Supplier
	accounts  map[uuid.UUID]model.Account
	orderSeq  int64

	// appendHook, when set, runs before an entry is stored; a non-nil error
	// aborts the append.
	appendHook func(e *model.LedgerEntry) error
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[uuid.UUID]model.Product),
		orders:    make(map[uuid.UUID]model.Order),
		payments:  make(map[uuid.UUID]model.Payment),
		suppliers: make(map[uuid.UUID]model.Supplier),
		accounts:  make(map[uuid.UUID]model.Account),
	}
}

type memSnapshot struct {
	products  map[uuid.UUID]model.Product
	entries   []model.LedgerEntry
	orders    map[uuid.UUID]model.Order
	payments  map[uuid.UUID]model.Payment
	suppliers map[uuid.UUID]model.Supplier
	orderSeq  int64
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		products:  make(map[uuid.UUID]model.Product, len(s.products)),
		entries:   append([]model.LedgerEntry(nil), s.entries...),
		orders:    make(map[uuid.UUID]model.Order, len(s.orders)),
		payments:  make(map[uuid.UUID]model.Payment, len(s.payments)),
		suppliers: make(map[uuid.UUID]model.Supplier, len(s.suppliers)),
		orderSeq:  s.orderSeq,
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = copyOrder(v)
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.suppliers {
		snap.suppliers[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.entries = snap.entries
	s.orders = snap.orders
	s.payments = snap.payments
	s.suppliers = snap.suppliers
	s.orderSeq = snap.orderSeq
}

func copyOrder(o model.Order) model.Order {
	o.Lines = append([]model.OrderLine(nil), o.Lines...)
	o.Payment = nil
	return o
}

// stock returns the live counter, for assertions.
func (s *memStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].StockQuantity
}

// chain returns a product's entries in version order, for assertions.
func (s *memStore) chain(id uuid.UUID) []model.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range s.entries {
		if e.ProductID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (s *memStore) counts() (orders, payments, entries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders), len(s.payments), len(s.entries)
}

// ── Unit of work ──────────────────────────────────────────────────────────────

type memUnitOfWork struct {
	store *memStore
	mu    sync.Mutex
}

func (u *memUnitOfWork) Do(_ context.Context, fn func(tx *gorm.DB) error) (err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	snap := u.store.snapshot()
	defer func() {
		if r := recover(); r != nil {
			u.store.restore(snap)
			panic(r)
		}
	}()
	if err = fn(nil); err != nil {
		u.store.restore(snap)
	}
	return err
}

var _ repository.UnitOfWork = (*memUnitOfWork)(nil)

// ── Products ──────────────────────────────────────────────────────────────────

type memProducts struct{ s *memStore }

func (r *memProducts) CreateTx(_ context.Context, _ *gorm.DB, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.products {
		if existing.SKU == p.SKU {
			return &apierror.ValidationError{Field: "idx_products_sku", Message: "value already exists"}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memProducts) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Product
	for _, p := range r.s.products {
		switch f.Active {
		case "all":
		case "false":
			if p.Active {
				continue
			}
		default:
			if !p.Active {
				continue
			}
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) && p.SKU != f.Search {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r *memProducts) UpdateCatalog(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.products[p.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Name, cur.Slug, cur.Price, cur.SalePrice, cur.Active, cur.UpdatedAt = p.Name, p.Slug, p.Price, p.SalePrice, p.Active, p.UpdatedAt
	r.s.products[p.ID] = cur
	return nil
}

func (r *memProducts) LockTx(_ *gorm.DB, id uuid.UUID) (*model.Product, error) {
	return r.FindByID(context.Background(), id)
}

func (r *memProducts) LockManyTx(_ *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (r *memProducts) SetStockTx(_ *gorm.DB, id uuid.UUID, quantity int, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || p.LedgerVersion != expectedVersion {
		return apierror.Conflict("product changed since it was read", nil)
	}
	p.StockQuantity = quantity
	p.LedgerVersion++
	r.s.products[id] = p
	return nil
}

func (r *memProducts) DB() *gorm.DB { return nil }

var _ repository.ProductRepository = (*memProducts)(nil)

// ── Ledger ────────────────────────────────────────────────────────────────────

type memLedger struct{ s *memStore }

func (r *memLedger) AppendTx(_ *gorm.DB, e *model.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.appendHook != nil {
		if err := r.s.appendHook(e); err != nil {
			return err
		}
	}
	for _, existing := range r.s.entries {
		if existing.ProductID == e.ProductID && existing.Version == e.Version {
			return apierror.Conflict("ledger version already taken", nil)
		}
	}
	r.s.entries = append(r.s.entries, *e)
	return nil
}

func (r *memLedger) List(_ context.Context, f repository.LedgerFilter) ([]model.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range r.s.entries {
		if f.ProductID != nil && e.ProductID != *f.ProductID {
			continue
		}
		if f.SupplierID != nil && (e.SupplierID == nil || *e.SupplierID != *f.SupplierID) {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Version > out[j].Version
	})
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (r *memLedger) ListAllByProduct(_ context.Context, productID uuid.UUID) ([]model.LedgerEntry, error) {
	return r.s.chain(productID), nil
}

var _ repository.LedgerRepository = (*memLedger)(nil)

// ── Orders and payments ───────────────────────────────────────────────────────

type memOrders struct{ s *memStore }

func (r *memOrders) NextOrderSequence(_ context.Context, _ *gorm.DB) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orderSeq++
	return r.s.orderSeq, nil
}

func (r *memOrders) CreateTx(_ context.Context, _ *gorm.DB, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return &apierror.ValidationError{Field: "idx_orders_order_number", Message: "value already exists"}
		}
	}
	r.s.orders[o.ID] = copyOrder(*o)
	if o.Payment != nil {
		r.s.payments[o.ID] = *o.Payment
	}
	return nil
}

func (r *memOrders) load(id uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	o = copyOrder(o)
	for i := range o.Lines {
		if p, ok := r.s.products[o.Lines[i].ProductID]; ok {
			o.Lines[i].Product = &p
		}
	}
	if pay, ok := r.s.payments[id]; ok {
		o.Payment = &pay
	}
	return &o, nil
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) { return r.load(id) }

func (r *memOrders) LockTx(_ *gorm.DB, id uuid.UUID) (*model.Order, error) { return r.load(id) }

func (r *memOrders) UpdateStatusTx(_ *gorm.DB, id uuid.UUID, status model.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r *memOrders) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int64, error) {
	r.s.mu.Lock()
	var ids []uuid.UUID
	for id, o := range r.s.orders {
		if f.OwnerID != nil && o.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		ids = append(ids, id)
	}
	r.s.mu.Unlock()

	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		o, _ := r.load(id)
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

var _ repository.OrderRepository = (*memOrders)(nil)

type memPayments struct{ s *memStore }

func (r *memPayments) LockByOrderTx(_ *gorm.DB, orderID uuid.UUID) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memPayments) UpdateTx(_ *gorm.DB, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.OrderID] = *p
	return nil
}

var _ repository.PaymentRepository = (*memPayments)(nil)

// ── Suppliers and accounts ────────────────────────────────────────────────────

type memSuppliers struct{ s *memStore }

func (r *memSuppliers) CreateTx(_ context.Context, _ *gorm.DB, sup *model.Supplier) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.suppliers {
		if existing.Code == sup.Code {
			return &apierror.ValidationError{Field: "idx_suppliers_code", Message: "value already exists"}
		}
	}
	r.s.suppliers[sup.ID] = *sup
	return nil
}

func (r *memSuppliers) FindByID(_ context.Context, id uuid.UUID) (*model.Supplier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sup, ok := r.s.suppliers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sup, nil
}

func (r *memSuppliers) List(_ context.Context) ([]model.Supplier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Supplier
	for _, sup := range r.s.suppliers {
		if sup.Active {
			out = append(out, sup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ repository.SupplierRepository = (*memSuppliers)(nil)

type memAccounts struct{ s *memStore }

func (r *memAccounts) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Username == username && a.Active {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAccounts) FindByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *memAccounts) Upsert(_ context.Context, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.accounts[a.ID] = *a
	return nil
}

var _ repository.AccountRepository = (*memAccounts)(nil)

// ── Collaborators ─────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt model.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type memCart struct {
	mu       sync.Mutex
	items    map[uuid.UUID]map[uuid.UUID]int
	clearErr error
}

func newMemCart() *memCart {
	return &memCart{items: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (c *memCart) Items(_ context.Context, owner uuid.UUID) ([]model.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.CartItem
	for pid, q := range c.items[owner] {
		out = append(out, model.CartItem{ProductID: pid, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out, nil
}

func (c *memCart) SetItem(_ context.Context, owner, productID uuid.UUID, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items[owner] == nil {
		c.items[owner] = make(map[uuid.UUID]int)
	}
	c.items[owner][productID] = quantity
	return nil
}

func (c *memCart) RemoveItem(_ context.Context, owner, productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items[owner], productID)
	return nil
}

func (c *memCart) Clear(_ context.Context, owner uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearErr != nil {
		return c.clearErr
	}
	delete(c.items, owner)
	return nil
}

var _ CartStore = (*memCart)(nil)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

var _ SummaryCache = (*memCache)(nil)

func paginate[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
