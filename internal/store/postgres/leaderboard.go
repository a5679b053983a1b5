package postgres

import (
	"context"
	"errors"

	"barakahAPI/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const rankedProfiles = `
	SELECT
		ROW_NUMBER() OVER (ORDER BY total_bp DESC, created_at ASC, id ASC) AS rank,
		id, display_name, avatar_url, total_bp, current_level, current_maqam, current_streak
	FROM profiles
	WHERE total_bp > 0`

func (s *Store) QueryLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, rankedProfiles+`
		ORDER BY total_bp DESC, created_at ASC, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, classify("query leaderboard", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[store.LeaderboardEntry])
	if err != nil {
		return nil, classify("query leaderboard", err)
	}
	return entries, nil
}

func (s *Store) QueryRankOf(ctx context.Context, userID uuid.UUID) (*store.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `WITH ranked AS (`+rankedProfiles+`) SELECT * FROM ranked WHERE id = $1`, userID)
	if err != nil {
		return nil, classify("query rank", err)
	}

	entry, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[store.LeaderboardEntry])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("query rank", err)
	}
	return &entry, nil
}
