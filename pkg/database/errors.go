package database

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapUniqueConstraint maps unique violations to domain conflict codes by
// constraint name. Product rows carry per-tenant unique indexes on sku and
// barcode.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "sku"):
		return errors.Conflict("a product with this SKU already exists").WithCode("SKU_EXISTS")
	case strings.Contains(constraint, "barcode"):
		return errors.Conflict("a product with this barcode already exists").WithCode("BARCODE_EXISTS")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}

// mapCheckConstraint maps CHECK constraint names to field-level messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "movement_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: IN, OUT, ADJUSTMENT, EXPIRED, TRANSFER",
		})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "stock_non_negative"):
		return errors.Validation(map[string]string{
			"current_stock": "must not be negative",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// IsSerializationFailure reports whether the error is a transient conflict
// worth retrying: serialization_failure (40001) or deadlock_detected (40P01).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// maxTxRetries bounds the internal retry loop for serialization conflicts.
const maxTxRetries = 3

// RetryOnSerialization runs fn, retrying up to maxTxRetries times when it
// fails with a serialization or deadlock error. After the retries are
// exhausted the caller gets a 409 so the client can resubmit.
func RetryOnSerialization(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "CONFLICT", "concurrent update, try again", 409)
}
