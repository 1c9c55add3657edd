package service

import (
	"context"
	"errors"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("stockledger/service")

// EventPublisher receives domain events after a successful commit.
type EventPublisher interface {
	Publish(ctx context.Context, evt model.DomainEvent) error
}

// CartStore holds per-owner carts outside the database.
type CartStore interface {
	Items(ctx context.Context, owner uuid.UUID) ([]model.CartItem, error)
	SetItem(ctx context.Context, owner, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, owner, productID uuid.UUID) error
	Clear(ctx context.Context, owner uuid.UUID) error
}

// SummaryCache stores JSON snapshots under versioned keys.
type SummaryCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Requester identifies the authenticated caller of an operation.
type Requester struct {
	ID   uuid.UUID
	Role string
}

// Privileged reports whether the caller can see every owner's orders.
func (r Requester) Privileged() bool {
	return r.Role == model.RoleStaff || r.Role == model.RoleAdmin
}

// publish is best effort: the mutation is already committed, so a broker
// failure is logged and swallowed.
func publish(ctx context.Context, pub EventPublisher, eventType, key string, data interface{}) {
	if pub == nil {
		return
	}
	evt := model.DomainEvent{Type: eventType, Key: key, OccurredAt: time.Now().UTC(), Data: data}
	if err := pub.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("event", eventType).Str("key", key).Msg("event publish failed")
	}
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierror.Invalid(field, "must be a valid UUID")
	}
	return id, nil
}

func parseOptionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := parseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// lookupErr turns a read failure into NotFound or Persistence.
func lookupErr(resource string, id uuid.UUID, err error) error {
	if isNotFound(err) {
		return apierror.NotFound(resource, id)
	}
	return apierror.Persistence("load "+resource, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
