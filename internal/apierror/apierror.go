// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`

	// Populated for insufficient_stock only.
	ProductID string `json:"product_id,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationErrors wraps the per-field failures reported by the request validator.
type ValidationErrors struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationErrors {
	return &ValidationErrors{Detail: "validation failed", Code: "validation", Fields: fields}
}

// FromError maps a domain error to its HTTP status and envelope.
// Anything outside the taxonomy becomes an opaque 500.
func FromError(err error) (int, *APIError) {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		stock      *InsufficientStockError
		state      *InvalidStateError
		conflict   *ConcurrencyConflictError
		persist    *PersistenceError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, &APIError{Detail: validation.Error(), Code: "validation"}
	case errors.As(err, &notFound):
		return http.StatusNotFound, &APIError{Detail: notFound.Error(), Code: "not_found"}
	case errors.As(err, &stock):
		requested, available := stock.Requested, stock.Available
		return http.StatusConflict, &APIError{
			Detail:    stock.Error(),
			Code:      "insufficient_stock",
			ProductID: stock.ProductID.String(),
			Requested: &requested,
			Available: &available,
		}
	case errors.As(err, &state):
		return http.StatusConflict, &APIError{Detail: state.Error(), Code: "invalid_state"}
	case errors.As(err, &conflict):
		return http.StatusConflict, &APIError{
			Detail:    "the resource is busy, retry the request",
			Code:      "concurrency_conflict",
			Retryable: true,
		}
	case errors.As(err, &persist):
		return http.StatusServiceUnavailable, &APIError{Detail: "could not persist the operation", Code: "persistence"}
	default:
		return http.StatusInternalServerError, &APIError{Detail: "internal server error", Code: "internal"}
	}
}

// IsRetryable reports whether err may be retried by the caller without change.
func IsRetryable(err error) bool {
	var conflict *ConcurrencyConflictError
	return errors.As(err, &conflict)
}
