package postgres

import (
	"context"
	"errors"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/store"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) ListCompletions(ctx context.Context, userID uuid.UUID, kind store.ItemKind, date civil.Date) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT item_id FROM completions
		WHERE user_id = $1 AND item_kind = $2 AND completed_date = $3`,
		userID, kind, pgDate(date),
	)
	if err != nil {
		return nil, classify("list completions", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, classify("list completions", err)
	}
	return ids, nil
}

// InsertCompletion only inserts when the item exists, matches the kind and is active.
// The reward is snapshotted on the row.
func (s *Store) InsertCompletion(ctx context.Context, key store.CompletionKey, rewardBP int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO completions (user_id, item_id, item_kind, completed_date, reward_bp)
		SELECT $1::uuid, i.id, i.kind, $3::date, $4::integer
		FROM items i
		WHERE i.id = $2 AND i.kind = $5 AND i.is_active
		ON CONFLICT (user_id, item_id, completed_date) DO NOTHING`,
		key.UserID, key.ItemID, pgDate(key.Date), rewardBP, key.Kind,
	)
	if err != nil {
		return false, classify("insert completion", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// nothing inserted: either the row exists or the item is not available
	var exists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM completions
			WHERE user_id = $1 AND item_id = $2 AND completed_date = $3
		)`,
		key.UserID, key.ItemID, pgDate(key.Date),
	).Scan(&exists)
	if err != nil {
		return false, classify("insert completion", err)
	}
	if !exists {
		return false, apperr.Conflict("%s %s is not available", key.Kind, key.ItemID)
	}
	return false, nil
}

func (s *Store) DeleteCompletion(ctx context.Context, key store.CompletionKey) (bool, int, error) {
	var reward int
	err := s.pool.QueryRow(ctx, `
		DELETE FROM completions
		WHERE user_id = $1 AND item_id = $2 AND completed_date = $3 AND item_kind = $4
		RETURNING reward_bp`,
		key.UserID, key.ItemID, pgDate(key.Date), key.Kind,
	).Scan(&reward)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, classify("delete completion", err)
	}
	return true, reward, nil
}
