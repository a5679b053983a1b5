package ledger

import (
	"context"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/logger"
)

// retry runs fn up to maxAttempts times while it fails with a transient error.
// Only idempotent store calls go through here.
func retry[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, int, error) {
	var (
		v   T
		err error
	)
	for attempt := 1; ; attempt++ {
		v, err = fn(ctx)
		if err == nil || !apperr.IsTransient(err) || attempt >= s.maxAttempts {
			return v, attempt, err
		}

		s.rec.Retry(op)
		logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Msg("transient store failure, retrying")

		select {
		case <-ctx.Done():
			var zero T
			return zero, attempt, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
}
