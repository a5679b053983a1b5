package postgres

import (
	"context"
	"fmt"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/store"
	"barakahAPI/internal/streak"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const profileColumns = `id, clerk_id, display_name, avatar_url, total_bp, current_level, current_maqam,
	current_streak, longest_streak, last_activity_date, created_at, updated_at`

func scanProfile(row pgx.Row) (*store.Profile, error) {
	var (
		p    store.Profile
		last pgtype.Date
	)
	err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.DisplayName,
		&p.AvatarURL,
		&p.TotalBP,
		&p.CurrentLevel,
		&p.CurrentMaqam,
		&p.CurrentStreak,
		&p.LongestStreak,
		&last,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.LastActivityDate = civilDate(last)
	return &p, nil
}

func (s *Store) ResolveUser(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		return uuid.Nil, classify("resolve user", err)
	}
	return id, nil
}

func (s *Store) EnsureProfile(ctx context.Context, np store.NewProfile) (*store.Profile, error) {
	query := `
		INSERT INTO profiles (clerk_id, display_name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (clerk_id) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, profiles.display_name),
			avatar_url   = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url)
		RETURNING ` + profileColumns

	p, err := scanProfile(s.pool.QueryRow(ctx, query, np.ClerkID, np.DisplayName, np.AvatarURL))
	if err != nil {
		return nil, classify("ensure profile", err)
	}
	return p, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, np store.NewProfile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET display_name = $2, avatar_url = $3 WHERE clerk_id = $1`,
		np.ClerkID, np.DisplayName, np.AvatarURL,
	)
	if err != nil {
		return classify("update identity", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no profile for %s: %w", np.ClerkID, apperr.ErrNotFound)
	}
	return nil
}

// DeleteProfile removes the ledger first so the reconcile trigger never touches a row
// that is being deleted in the same statement.
func (s *Store) DeleteProfile(ctx context.Context, clerkID string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM completions WHERE user_id = (SELECT id FROM profiles WHERE clerk_id = $1)`,
			clerkID,
		); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	return classify("delete profile", err)
}

func (s *Store) ReadProfile(ctx context.Context, userID uuid.UUID) (*store.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
	if err != nil {
		return nil, classify("read profile", err)
	}
	return p, nil
}

// UpdateProfile locks the row, advances the streak in Go and adds the delta floored at
// zero. Level and maqam are re-derived by the profiles_derive_level trigger.
func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, patch store.ProfilePatch) (*store.Profile, error) {
	var out *store.Profile
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			st   streak.State
			last pgtype.Date
		)
		err := tx.QueryRow(ctx,
			`SELECT current_streak, longest_streak, last_activity_date FROM profiles WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&st.CurrentStreak, &st.LongestStreak, &last)
		if err != nil {
			return err
		}
		st.LastActivityDate = civilDate(last)

		if patch.LastActivityDate != nil {
			st = streak.Advance(st, *patch.LastActivityDate)
		}

		out, err = scanProfile(tx.QueryRow(ctx, `
			UPDATE profiles SET
				total_bp           = GREATEST(0, total_bp + $2),
				current_streak     = $3,
				longest_streak     = $4,
				last_activity_date = $5
			WHERE id = $1
			RETURNING `+profileColumns,
			userID, patch.BPDelta, st.CurrentStreak, st.LongestStreak, pgDatePtr(st.LastActivityDate),
		))
		return err
	})
	if err != nil {
		return nil, classify("update profile", err)
	}
	return out, nil
}

func (s *Store) RecomputeTotal(ctx context.Context, userID uuid.UUID) (*store.Profile, error) {
	query := `
		UPDATE profiles SET total_bp = (
			SELECT COALESCE(SUM(reward_bp), 0)::INTEGER FROM completions WHERE user_id = $1
		)
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, classify("recompute total", err)
	}
	return p, nil
}

func (s *Store) ListUnreconciled(ctx context.Context) ([]store.Unreconciled, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.total_bp,
			COALESCE(SUM(c.reward_bp), 0)::INTEGER AS ledger_bp,
			MAX(c.completed_date) AS last_completion
		FROM profiles p
		LEFT JOIN completions c ON c.user_id = p.id
		GROUP BY p.id, p.total_bp
		HAVING p.total_bp <> COALESCE(SUM(c.reward_bp), 0)`)
	if err != nil {
		return nil, classify("list unreconciled", err)
	}
	defer rows.Close()

	out := make([]store.Unreconciled, 0)
	for rows.Next() {
		var (
			u    store.Unreconciled
			last pgtype.Date
		)
		if err := rows.Scan(&u.UserID, &u.TotalBP, &u.LedgerBP, &last); err != nil {
			return nil, classify("list unreconciled", err)
		}
		u.LastCompletion = civilDate(last)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list unreconciled", err)
	}
	return out, nil
}
