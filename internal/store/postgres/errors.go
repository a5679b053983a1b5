package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"barakahAPI/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// classify maps a pgx error onto the store error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503", pgErr.Code == "23514":
			// foreign_key_violation, check_violation
			return fmt.Errorf("%w: %s: %s", apperr.ErrConflict, op, pgErr.Message)
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			// serialization_failure, deadlock_detected
			return apperr.Transient(op, err)
		case len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57"):
			// connection_exception, operator_intervention
			return apperr.Transient(op, err)
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.As(err, &connErr) || errors.As(err, &netErr) {
		return apperr.Transient(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
