package postgres

import (
	"context"
	"fmt"
	"time"

	"barakahAPI/internal/logger"
	"barakahAPI/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts = 3
	connectInterval = time.Second
)

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	pool      *pgxpool.Pool
	reconcile bool
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.CatalogAdmin = (*Store)(nil)
)

// Connect opens a pool and pings it, retrying a few times while the server comes up.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		if attempt == connectAttempts {
			pool.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, err)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("database ping failed, retrying")

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(connectInterval):
		}
	}
}

// New wraps a pool and switches the completions_reconcile trigger to match reconcile.
// The schema must already be migrated.
func New(ctx context.Context, pool *pgxpool.Pool, reconcile bool) (*Store, error) {
	s := &Store{pool: pool, reconcile: reconcile}
	if err := s.setReconcileTrigger(ctx, reconcile); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) setReconcileTrigger(ctx context.Context, enabled bool) error {
	stmt := `ALTER TABLE completions DISABLE TRIGGER completions_reconcile`
	if enabled {
		stmt = `ALTER TABLE completions ENABLE TRIGGER completions_reconcile`
	}
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to set reconcile trigger: %w", err)
	}
	logger.Info().Bool("reconcile_in_store", enabled).Msg("completion reconciliation authority configured")
	return nil
}

func (s *Store) ReconcilesTotals() bool {
	return s.reconcile
}

func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.pool.Ping(ctx))
}

func (s *Store) Close() {
	s.pool.Close()
}
