package service

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PaymentService records settlement outcomes reported by the payment
// collaborator. It never talks to a gateway itself.
type PaymentService interface {
	Settle(ctx context.Context, req dto.SettlementRequest) (*dto.PaymentResponse, error)
}

type paymentService struct {
	uow      repository.UnitOfWork
	payments repository.PaymentRepository
	events   EventPublisher
	now      func() time.Time
}

func NewPaymentService(uow repository.UnitOfWork, payments repository.PaymentRepository, events EventPublisher) PaymentService {
	return &paymentService{uow: uow, payments: payments, events: events, now: time.Now}
}

// Settle moves a pending payment to completed or failed. Any other starting
// state is an InvalidStateError, which also makes repeated callbacks harmless.
func (s *paymentService) Settle(ctx context.Context, req dto.SettlementRequest) (*dto.PaymentResponse, error) {
	orderID, err := parseID("order_id", req.OrderID)
	if err != nil {
		return nil, err
	}
	target := model.NormaliseStatus(req.Status)
	if target == model.PaymentPending {
		return nil, apierror.Invalid("status", "unrecognised settlement status "+req.Status)
	}

	var payment *model.Payment
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		p, err := s.payments.LockByOrderTx(tx, orderID)
		if err != nil {
			if isNotFound(err) {
				return apierror.NotFound("payment for order", orderID)
			}
			return err
		}
		if p.Status != model.PaymentPending {
			return &apierror.InvalidStateError{Entity: "payment", From: string(p.Status), To: string(target)}
		}
		now := s.now().UTC()
		p.Status = target
		p.UpdatedAt = now
		if txID := strings.TrimSpace(req.TransactionID); txID != "" {
			p.TransactionID = &txID
		}
		if target == model.PaymentCompleted {
			p.PaidAt = &now
		}
		if err := s.payments.UpdateTx(tx, p); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", orderID.String()).Str("status", string(payment.Status)).Msg("payment settled")

	resp := toPaymentResponse(payment)
	publish(ctx, s.events, model.EventPaymentSettled, orderID.String(), resp)
	return &resp, nil
}
