package service

import (
	"fmt"
	"strings"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Pricing computes order totals. Shipping is a flat fee below the threshold
// and free at or above it.
type Pricing struct {
	ShippingFlatFee       decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	TaxRatePct            decimal.Decimal
}

func PricingFromConfig(cfg *config.Config) Pricing {
	fee, threshold, tax := cfg.Pricing()
	return Pricing{ShippingFlatFee: fee, FreeShippingThreshold: threshold, TaxRatePct: tax}
}

// Quote holds the money columns of an order.
type Quote struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

func (p Pricing) Quote(subtotal decimal.Decimal) Quote {
	q := Quote{Subtotal: subtotal, ShippingFee: decimal.Zero, Discount: decimal.Zero}
	if subtotal.LessThan(p.FreeShippingThreshold) {
		q.ShippingFee = p.ShippingFlatFee
	}
	q.Tax = subtotal.Mul(p.TaxRatePct).Div(hundred).Round(2)
	q.Total = q.Subtotal.Add(q.ShippingFee).Add(q.Tax).Sub(q.Discount)
	return q
}

// FormatOrderNumber renders ORD-YYYYMMDD-NNNNNN from the sequence value.
func FormatOrderNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", t.UTC().Format("20060102"), seq)
}

// PaymentPolicy decides which methods are accepted and which are considered
// paid the moment the order is placed.
type PaymentPolicy struct {
	accepted map[string]bool
	settled  map[string]bool
}

func NewPaymentPolicy(accepted, settled []string) PaymentPolicy {
	p := PaymentPolicy{accepted: map[string]bool{}, settled: map[string]bool{}}
	for _, m := range accepted {
		p.accepted[strings.ToLower(m)] = true
	}
	for _, m := range settled {
		p.settled[strings.ToLower(m)] = true
	}
	return p
}

func (p PaymentPolicy) Accepts(method string) bool {
	return p.accepted[strings.ToLower(method)]
}

// InitialPayment builds the payment row written with a new order.
func (p PaymentPolicy) InitialPayment(method string, amount decimal.Decimal, now time.Time) model.Payment {
	pay := model.Payment{Method: strings.ToLower(method), Status: model.PaymentPending, Amount: amount}
	if p.settled[pay.Method] {
		paidAt := now.UTC()
		pay.Status = model.PaymentCompleted
		pay.PaidAt = &paidAt
	}
	return pay
}
