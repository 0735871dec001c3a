package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

// Postgres error codes translated at the repository boundary
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqInvalidTextRepr     = "22P02"
)

// constraint names mapped to user facing conflict messages
var conflictMessages = map[string]string{
	"identities_email_key":              "email already registered",
	"identities_national_id_key":        "national id already registered",
	"professionals_license_number_key":  "license number already registered",
	"patients_record_number_key":        "record number already assigned",
	"ux_appointments_professional_slot": "slot already taken",
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB, queryTimeout time.Duration) BaseRepository {
	return BaseRepository{db: db, queryTimeout: queryTimeout}
}

// bounded derives a context carrying the configured query timeout
func (r *BaseRepository) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// translateError maps driver errors onto the application taxonomy
func translateError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			msg, ok := conflictMessages[pqErr.Constraint]
			if !ok {
				msg = fmt.Sprintf("%s already exists", resource)
			}
			return apperrors.Conflict(msg, err)
		case pqForeignKeyViolation:
			return apperrors.Validation("referenced record does not exist", err)
		case pqInvalidTextRepr, pqCheckViolation:
			return apperrors.Validation("malformed or out of range value", err)
		}
	}

	return apperrors.Internal(fmt.Errorf("%s: %w", resource, err))
}

// ensureAffected turns a zero row count into NOT_FOUND
func ensureAffected(res sql.Result, resource string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}
