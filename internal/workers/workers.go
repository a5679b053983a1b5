package workers

import (
	"context"
	"time"

	"barakahAPI/internal/logger"
)

// DefaultReconcileInterval is how often pending totals are retried in the background.
const DefaultReconcileInterval = time.Minute

// Reconciler rebuilds totals whose reconciliation failed earlier.
type Reconciler interface {
	SweepUnreconciled(ctx context.Context) (int, error)
	RecoverPending(ctx context.Context) (int, error)
}

// StartReconcileWorker first sweeps the store for totals left wrong by a previous run,
// then retries pending reconciliations on every tick until ctx is done. Without it a
// pending user is only repaired on their next profile read.
func StartReconcileWorker(ctx context.Context, r Reconciler, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()

		sweepUnreconciled(ctx, r)
		reconcilePending(ctx, r)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reconcilePending(ctx, r)
			}
		}
	}()
	return done
}

func sweepUnreconciled(ctx context.Context, r Reconciler) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	found, err := r.SweepUnreconciled(runCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("startup sweep for unreconciled totals failed")
		return
	}
	if found > 0 {
		logger.Warn().Int("profiles", found).Msg("found totals that disagree with the ledger")
	}
}

func reconcilePending(ctx context.Context, r Reconciler) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	recovered, err := r.RecoverPending(runCtx)
	if err != nil {
		logger.Warn().Err(err).Int("recovered", recovered).Msg("background reconciliation incomplete")
		return
	}
	if recovered > 0 {
		logger.Info().Int("recovered", recovered).Msg("background reconciliation finished")
	}
}

// SessionSweeper drops sessions that have gone idle.
type SessionSweeper interface {
	Sweep(idle time.Duration) int
}

// StartSessionSweeper drops sessions unused for idle, checking every minute until ctx
// is done.
func StartSessionSweeper(ctx context.Context, s SessionSweeper, idle time.Duration) <-chan struct{} {
	return startSessionSweeper(ctx, s, idle, time.Minute)
}

func startSessionSweeper(ctx context.Context, s SessionSweeper, idle, every time.Duration) <-chan struct{} {
	ticker := time.NewTicker(every)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if dropped := s.Sweep(idle); dropped > 0 {
					logger.Debug().Int("sessions", dropped).Msg("dropped idle sessions")
				}
			}
		}
	}()
	return done
}
