package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fulfillReq(method string, lines ...dto.OrderLineRequest) dto.FulfillOrderRequest {
	return dto.FulfillOrderRequest{Lines: lines, ShippingAddress: "12 Harbour Road", PaymentMethod: method}
}

func line(id uuid.UUID, qty int) dto.OrderLineRequest {
	return dto.OrderLineRequest{ProductID: id.String(), Quantity: qty}
}

// Two lines with a sale price, settled payment method.
func TestFulfill_DecrementsStockAndPrices(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "100", 10)
	owner := uuid.New()

	order, err := f.orders.Fulfill(context.Background(), owner, fulfillReq("card", line(pid, 3)))
	require.NoError(t, err)

	assert.Equal(t, "pending", order.Status)
	require.Len(t, order.Lines, 1)
	assert.True(t, order.Lines[0].Subtotal.Equal(decimal.NewFromInt(300)))
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(300)))
	assert.True(t, order.ShippingFee.Equal(decimal.NewFromInt(30000)))
	assert.True(t, order.Tax.Equal(decimal.NewFromInt(30)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(30330)))
	assert.Regexp(t, `^ORD-\d{8}-000001$`, order.OrderNumber)
	assert.Equal(t, 7, f.store.stock(pid))

	chain := f.store.chain(pid)
	last := chain[len(chain)-1]
	assert.Equal(t, model.EntryExport, last.Type)
	assert.Equal(t, -3, last.Delta)
	assert.Equal(t, model.RefOrder, *last.ReferenceKind)
	assert.Equal(t, order.ID, last.ReferenceID.String())
	f.assertLedgerHolds(t, pid)
	assert.Contains(t, f.events.types(), model.EventOrderPlaced)
}

func TestFulfill_UsesSalePrice(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "100", 10)
	sale := decimal.NewFromInt(80)
	_, err := f.catalog.UpdateProduct(context.Background(), pid, dto.UpdateProductRequest{SalePrice: &sale})
	require.NoError(t, err)

	order, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("card", line(pid, 2)))
	require.NoError(t, err)
	assert.True(t, order.Lines[0].UnitPrice.Equal(sale))
}

// One short line rolls back the whole order, including lines that had stock.
func TestFulfill_InsufficientStockHasNoEffect(t *testing.T) {
	f := newFixture(t)
	plenty := f.seedProduct(t, "100", 50)
	short := f.seedProduct(t, "100", 2)
	ordersBefore, paymentsBefore, entriesBefore := f.store.counts()

	_, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("cod", line(plenty, 5), line(short, 5)))

	var stock *apierror.InsufficientStockError
	require.True(t, errors.As(err, &stock))
	assert.Equal(t, short, stock.ProductID)
	assert.Equal(t, 5, stock.Requested)
	assert.Equal(t, 2, stock.Available)

	assert.Equal(t, 50, f.store.stock(plenty))
	assert.Equal(t, 2, f.store.stock(short))
	ordersAfter, paymentsAfter, entriesAfter := f.store.counts()
	assert.Equal(t, ordersBefore, ordersAfter)
	assert.Equal(t, paymentsBefore, paymentsAfter)
	assert.Equal(t, entriesBefore, entriesAfter)
}

func TestFulfill_FailureMidWayRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "100", 10)
	b := f.seedProduct(t, "100", 10)
	_, _, entriesBefore := f.store.counts()

	calls := 0
	f.store.appendHook = func(*model.LedgerEntry) error {
		calls++
		if calls == 2 {
			return errors.New("connection reset")
		}
		return nil
	}
	_, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("cod", line(a, 1), line(b, 1)))
	f.store.appendHook = nil
	require.Error(t, err)

	orders, payments, entries := f.store.counts()
	assert.Zero(t, orders)
	assert.Zero(t, payments)
	assert.Equal(t, entriesBefore, entries)
	assert.Equal(t, 10, f.store.stock(a))
	assert.Equal(t, 10, f.store.stock(b))
}

func TestFulfill_PanicRollsBack(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "100", 10)

	f.store.appendHook = func(*model.LedgerEntry) error { panic("boom") }
	assert.Panics(t, func() {
		_, _ = f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("cod", line(pid, 1)))
	})
	f.store.appendHook = nil

	orders, _, _ := f.store.counts()
	assert.Zero(t, orders)
	assert.Equal(t, 10, f.store.stock(pid))
}

func TestFulfill_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10", 10)

	order, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("cod", line(pid, 2), line(pid, 3)))
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 5, order.Lines[0].Quantity)
	assert.Equal(t, 5, f.store.stock(pid))
}

func TestFulfill_OversizedLinesAreRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "100", 10)
	orders, payments, entries := f.store.counts()

	half := model.MaxMovementQuantity/2 + 1
	cases := map[string]dto.FulfillOrderRequest{
		"wrapping duplicates": fulfillReq("cod", line(pid, math.MaxInt), line(pid, math.MaxInt)),
		"merged over cap":     fulfillReq("cod", line(pid, half), line(pid, half)),
		"single over cap":     fulfillReq("cod", line(pid, model.MaxMovementQuantity+1)),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.orders.Fulfill(ctx, uuid.New(), req)
			var ve *apierror.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, "lines.quantity", ve.Field)
		})
	}

	assert.Equal(t, 10, f.store.stock(pid))
	o, p, e := f.store.counts()
	assert.Equal(t, []int{orders, payments, entries}, []int{o, p, e})
}

func TestMergeLines_CapsEachProductTotal(t *testing.T) {
	pid := uuid.New()
	_, err := mergeLines([]orderLine{{pid, math.MaxInt}, {pid, math.MaxInt}})
	assert.Error(t, err)

	merged, err := mergeLines([]orderLine{{pid, model.MaxMovementQuantity - 1}, {pid, 1}})
	require.NoError(t, err)
	assert.Equal(t, model.MaxMovementQuantity, merged[0].quantity)
}

func TestFulfill_PaymentClassification(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10", 10)

	settled, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("COD", line(pid, 1)))
	require.NoError(t, err)
	assert.Equal(t, "completed", settled.Payment.Status)
	assert.NotNil(t, settled.Payment.PaidAt)

	deferred, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("card", line(pid, 1)))
	require.NoError(t, err)
	assert.Equal(t, "pending", deferred.Payment.Status)
	assert.Nil(t, deferred.Payment.PaidAt)
}

func TestFulfill_FreeShippingAtThreshold(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "250000", 5)

	order, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("cod", line(pid, 2)))
	require.NoError(t, err)
	assert.True(t, order.ShippingFee.IsZero())
}

func TestFulfill_PreflightErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)
	inactive := f.seedProduct(t, "10", 10)
	off := false
	_, err := f.catalog.UpdateProduct(ctx, inactive, dto.UpdateProductRequest{Active: &off})
	require.NoError(t, err)

	var ve *apierror.ValidationError
	var nf *apierror.NotFoundError

	_, err = f.orders.Fulfill(ctx, uuid.New(), fulfillReq("cod"))
	assert.True(t, errors.As(err, &ve), "no lines")

	_, err = f.orders.Fulfill(ctx, uuid.New(), fulfillReq("cod", line(pid, 0)))
	assert.True(t, errors.As(err, &ve), "zero quantity")

	_, err = f.orders.Fulfill(ctx, uuid.New(), fulfillReq("barter", line(pid, 1)))
	assert.True(t, errors.As(err, &ve), "unknown method")

	req := fulfillReq("cod", line(pid, 1))
	req.ShippingAddress = "   "
	_, err = f.orders.Fulfill(ctx, uuid.New(), req)
	assert.True(t, errors.As(err, &ve), "blank address")

	_, err = f.orders.Fulfill(ctx, uuid.New(), fulfillReq("cod", line(inactive, 1)))
	assert.True(t, errors.As(err, &ve), "inactive product")

	_, err = f.orders.Fulfill(ctx, uuid.New(), fulfillReq("cod", line(uuid.New(), 1)))
	assert.True(t, errors.As(err, &nf), "unknown product")

	assert.Equal(t, 10, f.store.stock(pid))
}

func TestCheckout_UsesAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)
	owner := uuid.New()
	_, err := f.carts.SetItem(ctx, owner, pid, dto.CartItemRequest{Quantity: 4})
	require.NoError(t, err)

	order, err := f.orders.Checkout(ctx, owner, dto.CheckoutRequest{ShippingAddress: "12 Harbour Road", PaymentMethod: "qr"})
	require.NoError(t, err)
	assert.Equal(t, 4, order.Lines[0].Quantity)
	assert.Equal(t, 6, f.store.stock(pid))

	items, _ := f.cart.Items(ctx, owner)
	assert.Empty(t, items)

	_, err = f.orders.Checkout(ctx, owner, dto.CheckoutRequest{ShippingAddress: "12 Harbour Road", PaymentMethod: "qr"})
	var ve *apierror.ValidationError
	assert.True(t, errors.As(err, &ve), "empty cart")
}

func TestFulfill_CartFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10", 10)
	f.cart.clearErr = errors.New("redis down")

	_, err := f.orders.Fulfill(context.Background(), uuid.New(), fulfillReq("cod", line(pid, 1)))
	assert.NoError(t, err)
	assert.Equal(t, 9, f.store.stock(pid))
}

// Fulfill then cancel restores stock exactly.
func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "10", 10)
	b := f.seedProduct(t, "20", 4)
	owner := uuid.New()

	order, err := f.orders.Fulfill(ctx, owner, fulfillReq("card", line(a, 3), line(b, 4)))
	require.NoError(t, err)
	assert.Equal(t, 7, f.store.stock(a))
	assert.Equal(t, 0, f.store.stock(b))

	cancelled, err := f.orders.Cancel(ctx, owner, uuid.MustParse(order.ID))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "failed", cancelled.Payment.Status)
	assert.Equal(t, 10, f.store.stock(a))
	assert.Equal(t, 4, f.store.stock(b))

	chain := f.store.chain(a)
	last := chain[len(chain)-1]
	assert.Equal(t, model.EntryAdjustment, last.Type)
	assert.Equal(t, 3, last.Delta)
	assert.Equal(t, order.ID, last.ReferenceID.String())
	f.assertLedgerHolds(t, a)
	f.assertLedgerHolds(t, b)
	assert.Contains(t, f.events.types(), model.EventOrderCancelled)

	// I5: a second cancel restores nothing.
	_, err = f.orders.Cancel(ctx, owner, uuid.MustParse(order.ID))
	var ise *apierror.InvalidStateError
	assert.True(t, errors.As(err, &ise))
	assert.Equal(t, 10, f.store.stock(a))
}

func TestCancel_RefundsSettledPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)
	owner := uuid.New()

	order, err := f.orders.Fulfill(ctx, owner, fulfillReq("bank_transfer", line(pid, 1)))
	require.NoError(t, err)

	cancelled, err := f.orders.Cancel(ctx, owner, uuid.MustParse(order.ID))
	require.NoError(t, err)
	assert.Equal(t, "refunded", cancelled.Payment.Status)
}

func TestCancel_ConfirmedOrderIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)
	owner := uuid.New()

	order, err := f.orders.Fulfill(ctx, owner, fulfillReq("card", line(pid, 2)))
	require.NoError(t, err)
	id := uuid.MustParse(order.ID)
	_, err = f.orders.AdvanceStatus(ctx, id, dto.AdvanceStatusRequest{Status: "confirmed"})
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, owner, id)
	var ise *apierror.InvalidStateError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "confirmed", ise.From)
	assert.Equal(t, 8, f.store.stock(pid))
}

func TestCancel_ForeignOwnerIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)

	order, err := f.orders.Fulfill(ctx, uuid.New(), fulfillReq("card", line(pid, 2)))
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, uuid.New(), uuid.MustParse(order.ID))
	var nf *apierror.NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = f.orders.Cancel(ctx, uuid.New(), uuid.New())
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, 8, f.store.stock(pid))
}

func TestAdvanceStatus_FollowsStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)
	order, err := f.orders.Fulfill(ctx, uuid.New(), fulfillReq("card", line(pid, 1)))
	require.NoError(t, err)
	id := uuid.MustParse(order.ID)

	var ise *apierror.InvalidStateError
	_, err = f.orders.AdvanceStatus(ctx, id, dto.AdvanceStatusRequest{Status: "shipping"})
	assert.True(t, errors.As(err, &ise), "pending cannot skip to shipping")

	for _, next := range []string{"confirmed", "shipping", "delivered"} {
		resp, err := f.orders.AdvanceStatus(ctx, id, dto.AdvanceStatusRequest{Status: next})
		require.NoError(t, err)
		assert.Equal(t, next, resp.Status)
	}

	_, err = f.orders.AdvanceStatus(ctx, id, dto.AdvanceStatusRequest{Status: "confirmed"})
	assert.True(t, errors.As(err, &ise), "delivered is terminal")

	var ve *apierror.ValidationError
	_, err = f.orders.AdvanceStatus(ctx, id, dto.AdvanceStatusRequest{Status: "cancelled"})
	assert.True(t, errors.As(err, &ve))
	assert.Contains(t, f.events.types(), model.EventOrderStatusChanged)
}

func TestGetAndList_RespectOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "10", 10)
	alice, bob := uuid.New(), uuid.New()

	order, err := f.orders.Fulfill(ctx, alice, fulfillReq("card", line(pid, 1)))
	require.NoError(t, err)
	_, err = f.orders.Fulfill(ctx, bob, fulfillReq("card", line(pid, 1)))
	require.NoError(t, err)
	id := uuid.MustParse(order.ID)

	got, err := f.orders.Get(ctx, Requester{ID: alice, Role: model.RoleCustomer}, id)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = f.orders.Get(ctx, Requester{ID: bob, Role: model.RoleCustomer}, id)
	var nf *apierror.NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = f.orders.Get(ctx, Requester{ID: bob, Role: model.RoleStaff}, id)
	assert.NoError(t, err)

	mine, err := f.orders.List(ctx, Requester{ID: alice, Role: model.RoleCustomer}, dto.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Total)

	all, err := f.orders.List(ctx, Requester{ID: alice, Role: model.RoleAdmin}, dto.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
}

// Random concurrent fulfillments, cancellations and exports never drive
// stock negative and keep the chain intact.
func TestConcurrentMutations_KeepInvariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	products := []uuid.UUID{f.seedProduct(t, "10", 15), f.seedProduct(t, "10", 15), f.seedProduct(t, "10", 15)}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			owner := uuid.New()
			for i := 0; i < 15; i++ {
				a := products[rng.Intn(len(products))]
				b := products[rng.Intn(len(products))]
				switch rng.Intn(3) {
				case 0:
					order, err := f.orders.Fulfill(ctx, owner, fulfillReq("card", line(a, 1+rng.Intn(3)), line(b, 1+rng.Intn(3))))
					if err == nil && rng.Intn(2) == 0 {
						_, _ = f.orders.Cancel(ctx, owner, uuid.MustParse(order.ID))
					}
				case 1:
					_, _ = f.warehouse.Export(ctx, "w", dto.ExportStockRequest{ProductID: a.String(), Quantity: 1 + rng.Intn(4)})
				default:
					_, _ = f.warehouse.Import(ctx, "w", dto.ImportStockRequest{ProductID: a.String(), Quantity: 1 + rng.Intn(2)})
				}
			}
		}(int64(w))
	}
	wg.Wait()

	for _, pid := range products {
		assert.GreaterOrEqual(t, f.store.stock(pid), 0)
		for _, e := range f.store.chain(pid) {
			assert.GreaterOrEqual(t, e.QuantityAfter, 0)
		}
		f.assertLedgerHolds(t, pid)
	}
}
