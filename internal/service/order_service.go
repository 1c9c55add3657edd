package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type OrderService interface {
	Fulfill(ctx context.Context, owner uuid.UUID, req dto.FulfillOrderRequest) (*dto.OrderResponse, error)
	Checkout(ctx context.Context, owner uuid.UUID, req dto.CheckoutRequest) (*dto.OrderResponse, error)
	Cancel(ctx context.Context, owner, orderID uuid.UUID) (*dto.OrderResponse, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, req dto.AdvanceStatusRequest) (*dto.OrderResponse, error)
	Get(ctx context.Context, who Requester, orderID uuid.UUID) (*dto.OrderResponse, error)
	List(ctx context.Context, who Requester, q dto.OrderQuery) (*dto.OrderListResponse, error)
}

// OrderDeps groups the collaborators of the order service.
type OrderDeps struct {
	UnitOfWork repository.UnitOfWork
	Orders     repository.OrderRepository
	Products   repository.ProductRepository
	Payments   repository.PaymentRepository
	Ledger     *StockLedger
	Pricing    Pricing
	Payment    PaymentPolicy
	Cart       CartStore      // optional
	Events     EventPublisher // optional
}

type orderService struct {
	OrderDeps
	now func() time.Time
}

func NewOrderService(deps OrderDeps) OrderService {
	return &orderService{OrderDeps: deps, now: time.Now}
}

type orderLine struct {
	productID uuid.UUID
	quantity  int
}

// mergeLines sums duplicate products and sorts by id, the order in which
// rows are locked. Every line and every merged total stays within
// [1, model.MaxMovementQuantity].
func mergeLines(in []orderLine) ([]orderLine, error) {
	qty := make(map[uuid.UUID]int, len(in))
	for _, l := range in {
		if err := checkQuantity("lines.quantity", l.quantity, 1); err != nil {
			return nil, err
		}
		// Both operands are capped, so the sum cannot overflow.
		qty[l.productID] += l.quantity
		if qty[l.productID] > model.MaxMovementQuantity {
			return nil, apierror.Invalid("lines.quantity", fmt.Sprintf("total for product %s exceeds %d", l.productID, model.MaxMovementQuantity))
		}
	}
	out := make([]orderLine, 0, len(qty))
	for id, q := range qty {
		out = append(out, orderLine{productID: id, quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].productID[:], out[j].productID[:]) < 0
	})
	return out, nil
}

// ── Fulfill ──────────────────────────────────────────────────────────────────
//   1. Validate lines, address and payment method; load every product
//   2. BEGIN: lock products by id, check all stock, price, number, insert
//      order + lines + payment, export each line through the ledger
//   3. COMMIT, then clear the cart and publish order.placed

func (s *orderService) Fulfill(ctx context.Context, owner uuid.UUID, req dto.FulfillOrderRequest) (*dto.OrderResponse, error) {
	if len(req.Lines) == 0 {
		return nil, apierror.Invalid("lines", "at least one line is required")
	}
	lines := make([]orderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		pid, err := parseID("lines.product_id", l.ProductID)
		if err != nil {
			return nil, err
		}
		if err := checkQuantity("lines.quantity", l.Quantity, 1); err != nil {
			return nil, err
		}
		lines = append(lines, orderLine{productID: pid, quantity: l.Quantity})
	}
	return s.fulfill(ctx, owner, lines, req.ShippingAddress, req.PaymentMethod)
}

// Checkout places an order from the owner's cart.
func (s *orderService) Checkout(ctx context.Context, owner uuid.UUID, req dto.CheckoutRequest) (*dto.OrderResponse, error) {
	if s.Cart == nil {
		return nil, apierror.Invalid("cart", "cart store is not available")
	}
	items, err := s.Cart.Items(ctx, owner)
	if err != nil {
		return nil, apierror.Persistence("read cart", err)
	}
	if len(items) == 0 {
		return nil, apierror.Invalid("cart", "cart is empty")
	}
	lines := make([]orderLine, len(items))
	for i, it := range items {
		lines[i] = orderLine{productID: it.ProductID, quantity: it.Quantity}
	}
	return s.fulfill(ctx, owner, lines, req.ShippingAddress, req.PaymentMethod)
}

func (s *orderService) fulfill(ctx context.Context, owner uuid.UUID, raw []orderLine, address, method string) (*dto.OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Fulfill")
	span.SetAttributes(attribute.String("order.owner_id", owner.String()))

	order, err := s.placeOrder(ctx, owner, raw, address, method)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	if s.Cart != nil {
		if err := s.Cart.Clear(ctx, owner); err != nil {
			log.Warn().Err(err).Str("owner_id", owner.String()).Msg("cart clear after order failed")
		}
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int("lines", len(order.Lines)).
		Str("total", order.TotalAmount.String()).
		Msg("order placed")

	resp := toOrderResponse(order)
	publish(ctx, s.Events, model.EventOrderPlaced, order.ID.String(), resp)
	return &resp, nil
}

func (s *orderService) placeOrder(ctx context.Context, owner uuid.UUID, raw []orderLine, address, method string) (*model.Order, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, apierror.Invalid("shipping_address", "is required")
	}
	if !s.Payment.Accepts(method) {
		return nil, apierror.Invalid("payment_method", "is not accepted")
	}
	lines, err := mergeLines(raw)
	if err != nil {
		return nil, err
	}

	// Pre-flight outside the transaction: unknown and inactive products fail fast.
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		p, err := s.Products.FindByID(ctx, l.productID)
		if err != nil {
			return nil, lookupErr("product", l.productID, err)
		}
		if !p.Active {
			return nil, apierror.Invalid("lines.product_id", "product "+p.SKU+" is not available")
		}
		ids[i] = l.productID
	}

	var order *model.Order
	names := make(map[uuid.UUID]string, len(lines))
	err = s.UnitOfWork.Do(ctx, func(tx *gorm.DB) error {
		locked, err := s.Products.LockManyTx(tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*model.Product, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}

		// Check every line before writing anything.
		for _, l := range lines {
			p, ok := byID[l.productID]
			if !ok {
				return apierror.NotFound("product", l.productID)
			}
			if p.StockQuantity < l.quantity {
				return &apierror.InsufficientStockError{ProductID: p.ID, Requested: l.quantity, Available: p.StockQuantity}
			}
		}

		now := s.now()
		o := &model.Order{
			ID:              uuid.New(),
			OwnerID:         owner,
			Status:          model.OrderPending,
			ShippingAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		subtotal := decimal.Zero
		for _, l := range lines {
			p := byID[l.productID]
			names[p.ID] = p.Name
			price := p.EffectivePrice()
			lineTotal := price.Mul(decimal.NewFromInt(int64(l.quantity)))
			subtotal = subtotal.Add(lineTotal)
			o.Lines = append(o.Lines, model.OrderLine{
				ID:        uuid.New(),
				OrderID:   o.ID,
				ProductID: p.ID,
				Quantity:  l.quantity,
				UnitPrice: price,
				Subtotal:  lineTotal,
			})
		}
		q := s.Pricing.Quote(subtotal)
		o.Subtotal, o.ShippingFee, o.Tax, o.Discount, o.TotalAmount = q.Subtotal, q.ShippingFee, q.Tax, q.Discount, q.Total

		seq, err := s.Orders.NextOrderSequence(ctx, tx)
		if err != nil {
			return err
		}
		o.OrderNumber = FormatOrderNumber(now, seq)

		pay := s.Payment.InitialPayment(method, o.TotalAmount, now)
		pay.ID = uuid.New()
		pay.OrderID = o.ID
		pay.CreatedAt, pay.UpdatedAt = now, now
		o.Payment = &pay

		if err := s.Orders.CreateTx(ctx, tx, o); err != nil {
			return err
		}

		ref := model.RefOrder
		for _, line := range o.Lines {
			if _, err := s.Ledger.Apply(ctx, tx, Mutation{
				ProductID: line.ProductID,
				Type:      model.EntryExport,
				Delta:     -line.Quantity,
				RefKind:   &ref,
				RefID:     &o.ID,
				Notes:     "order " + o.OrderNumber,
				Actor:     owner.String(),
			}); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range order.Lines {
		order.Lines[i].Product = &model.Product{ID: order.Lines[i].ProductID, Name: names[order.Lines[i].ProductID]}
	}
	return order, nil
}

// ── Cancel ───────────────────────────────────────────────────────────────────
// Only the owner may cancel, and only while pending. Stock comes back as one
// positive adjustment per line, referencing the order.

func (s *orderService) Cancel(ctx context.Context, owner, orderID uuid.UUID) (*dto.OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Cancel")
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	existing, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		err = lookupErr("order", orderID, err)
		endSpan(span, err)
		return nil, err
	}
	if existing.OwnerID != owner {
		err = apierror.NotFound("order", orderID)
		endSpan(span, err)
		return nil, err
	}

	var order *model.Order
	err = s.UnitOfWork.Do(ctx, func(tx *gorm.DB) error {
		o, err := s.Orders.LockTx(tx, orderID)
		if err != nil {
			if isNotFound(err) {
				return apierror.NotFound("order", orderID)
			}
			return err
		}
		if !o.Status.CanTransition(model.OrderCancelled) {
			return &apierror.InvalidStateError{Entity: "order", From: string(o.Status), To: string(model.OrderCancelled)}
		}

		lines := append([]model.OrderLine(nil), o.Lines...)
		sort.Slice(lines, func(i, j int) bool {
			return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
		})
		ref := model.RefOrder
		for _, line := range lines {
			if _, err := s.Ledger.Apply(ctx, tx, Mutation{
				ProductID: line.ProductID,
				Type:      model.EntryAdjustment,
				Delta:     line.Quantity,
				RefKind:   &ref,
				RefID:     &o.ID,
				Notes:     "cancel order " + o.OrderNumber,
				Actor:     owner.String(),
			}); err != nil {
				return err
			}
		}

		if err := s.Orders.UpdateStatusTx(tx, o.ID, model.OrderCancelled); err != nil {
			return err
		}
		o.Status = model.OrderCancelled

		pay, err := s.Payments.LockByOrderTx(tx, o.ID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if pay != nil {
			next := pay.Status
			switch pay.Status {
			case model.PaymentCompleted:
				next = model.PaymentRefunded
			case model.PaymentPending:
				next = model.PaymentFailed
			}
			if next != pay.Status {
				pay.Status = next
				pay.UpdatedAt = s.now()
				if err := s.Payments.UpdateTx(tx, pay); err != nil {
					return err
				}
			}
			o.Payment = pay
		}
		order = o
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", order.ID.String()).Str("order_number", order.OrderNumber).Msg("order cancelled")

	resp := toOrderResponse(order)
	publish(ctx, s.Events, model.EventOrderCancelled, order.ID.String(), resp)
	return &resp, nil
}

// AdvanceStatus moves an order forward along pending → confirmed → shipping
// → delivered. Cancellation has its own operation.
func (s *orderService) AdvanceStatus(ctx context.Context, orderID uuid.UUID, req dto.AdvanceStatusRequest) (*dto.OrderResponse, error) {
	target := model.OrderStatus(req.Status)
	if !target.Valid() {
		return nil, apierror.Invalid("status", "unknown order status")
	}
	if target == model.OrderCancelled {
		return nil, apierror.Invalid("status", "use the cancel operation")
	}

	var order *model.Order
	err := s.UnitOfWork.Do(ctx, func(tx *gorm.DB) error {
		o, err := s.Orders.LockTx(tx, orderID)
		if err != nil {
			if isNotFound(err) {
				return apierror.NotFound("order", orderID)
			}
			return err
		}
		if !o.Status.CanTransition(target) {
			return &apierror.InvalidStateError{Entity: "order", From: string(o.Status), To: string(target)}
		}
		if err := s.Orders.UpdateStatusTx(tx, o.ID, target); err != nil {
			return err
		}
		o.Status = target
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toOrderResponse(order)
	publish(ctx, s.Events, model.EventOrderStatusChanged, order.ID.String(), resp)
	return &resp, nil
}

func (s *orderService) Get(ctx context.Context, who Requester, orderID uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, lookupErr("order", orderID, err)
	}
	if !who.Privileged() && o.OwnerID != who.ID {
		return nil, apierror.NotFound("order", orderID)
	}
	resp := toOrderResponse(o)
	return &resp, nil
}

func (s *orderService) List(ctx context.Context, who Requester, q dto.OrderQuery) (*dto.OrderListResponse, error) {
	filter := repository.OrderFilter{Status: model.OrderStatus(q.Status), Page: q.Page, Limit: q.Limit}
	if !who.Privileged() {
		owner := who.ID
		filter.OwnerID = &owner
	}
	orders, total, err := s.Orders.List(ctx, filter)
	if err != nil {
		return nil, apierror.Persistence("list orders", err)
	}
	page, limit := pageBounds(q.Page, q.Limit)
	resp := &dto.OrderListResponse{Data: make([]dto.OrderResponse, len(orders)), Total: total, Page: page, Limit: limit}
	for i := range orders {
		resp.Data[i] = toOrderResponse(&orders[i])
	}
	return resp, nil
}
