package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated is returned when a ledger operation is attempted without a current user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound is returned when a profile or item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the store rejects a mutation for a structural reason,
	// e.g. the item was deactivated mid-toggle.
	ErrConflict = errors.New("conflict")

	// ErrStaleReadDiscarded signals that a superseded read was dropped. Not user-visible.
	ErrStaleReadDiscarded = errors.New("stale read discarded")
)

// TransientError wraps a network or timeout failure talking to the store.
// Every operation in the ledger is safe to retry after one.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Conflict wraps a structural rejection so errors.Is(err, ErrConflict) holds.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Status maps an error to the HTTP status the handlers respond with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message is the user-facing text for an error.
func Message(err error) string {
	switch Status(err) {
	case http.StatusUnauthorized:
		return "User not authenticated"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "Temporarily unavailable, try again"
	default:
		return "Internal server error"
	}
}
