package repository

import (
	"context"
	"errors"
	"fmt"

	"stockledger/internal/apierror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// UnitOfWork scopes a set of repository calls to one database transaction.
// Do commits when fn returns nil and rolls back on any error or panic, so no
// caller ever issues a manual rollback.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Postgres SQLSTATE codes that signal contention rather than a bug.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgQueryCanceled        = "57014"
)

// ledgerVersionIndex guards the per-product entry chain; a duplicate means
// two writers raced for the same version.
const ledgerVersionIndex = "idx_ledger_product_version"

type gormUnitOfWork struct {
	db            *gorm.DB
	lockTimeoutMS int
}

// NewUnitOfWork returns a UnitOfWork whose transactions give up waiting for a
// row lock after lockTimeoutMS milliseconds.
func NewUnitOfWork(db *gorm.DB, lockTimeoutMS int) UnitOfWork {
	return &gormUnitOfWork{db: db, lockTimeoutMS: lockTimeoutMS}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var fnErr error
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.lockTimeoutMS > 0 {
			// SET does not take bind parameters; the value is an int from config.
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeoutMS)).Error; err != nil {
				fnErr = err
				return err
			}
		}
		fnErr = fn(tx)
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return translateTxError(fnErr, "transaction")
	}
	// fn succeeded, so the failure came from COMMIT.
	return translateTxError(err, "commit")
}

// translateTxError keeps domain errors intact and classifies driver errors as
// either a retryable conflict or a persistence failure.
func translateTxError(err error, op string) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) || errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled:
			return apierror.Conflict("lock wait timed out", err)
		case pgSerializationFailure:
			return apierror.Conflict("serialization failure", err)
		case pgDeadlockDetected:
			return apierror.Conflict("deadlock detected", err)
		case pgUniqueViolation:
			if pgErr.ConstraintName == ledgerVersionIndex {
				return apierror.Conflict("ledger version already taken", err)
			}
			return &apierror.ValidationError{Field: pgErr.ConstraintName, Message: "value already exists"}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Conflict("transaction deadline exceeded", err)
	}
	return apierror.Persistence(op, err)
}

func isDomainError(err error) bool {
	var (
		validation *apierror.ValidationError
		notFound   *apierror.NotFoundError
		stock      *apierror.InsufficientStockError
		state      *apierror.InvalidStateError
		conflict   *apierror.ConcurrencyConflictError
		persist    *apierror.PersistenceError
	)
	return errors.As(err, &validation) || errors.As(err, &notFound) ||
		errors.As(err, &stock) || errors.As(err, &state) ||
		errors.As(err, &conflict) || errors.As(err, &persist)
}
