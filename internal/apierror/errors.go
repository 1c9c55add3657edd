package apierror

import (
	"fmt"

	"github.com/google/uuid"
)

// ── Domain error taxonomy ─────────────────────────────────────────────────────
// Services return these typed errors; handlers translate them with FromError.
// Only ConcurrencyConflictError is safe to retry.

// ValidationError reports a malformed request detected before any transaction opens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// NotFoundError reports an unknown product, order, supplier or account.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

// InsufficientStockError is terminal: the requested quantity exceeds what is on hand.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidStateError reports an illegal order or payment status transition.
type InvalidStateError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// ConcurrencyConflictError means the whole operation was rolled back because of
// lock or version contention. Callers may retry it unchanged.
type ConcurrencyConflictError struct {
	Reason string
	Err    error
}

func (e *ConcurrencyConflictError) Error() string {
	return "concurrency conflict: " + e.Reason
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

func Conflict(reason string, err error) *ConcurrencyConflictError {
	return &ConcurrencyConflictError{Reason: reason, Err: err}
}

// PersistenceError wraps a failed commit or an unexpected store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}
