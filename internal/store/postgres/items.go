package postgres

import (
	"context"

	"barakahAPI/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const itemColumns = `id, kind, COALESCE(category, ''), title, description, reward_bp, ramadan_day,
	youtube_id, duration, is_active, created_at`

func scanItem(row pgx.Row) (store.Item, error) {
	var item store.Item
	err := row.Scan(
		&item.ID,
		&item.Kind,
		&item.Category,
		&item.Title,
		&item.Description,
		&item.RewardBP,
		&item.ScheduledDay,
		&item.YoutubeID,
		&item.Duration,
		&item.IsActive,
		&item.CreatedAt,
	)
	return item, err
}

func (s *Store) ListActiveItems(ctx context.Context, kind store.ItemKind) ([]store.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE kind = $1 AND is_active ORDER BY created_at ASC, id ASC`,
		kind,
	)
	if err != nil {
		return nil, classify("list items", err)
	}
	defer rows.Close()

	items := make([]store.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, classify("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list items", err)
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, kind store.ItemKind, id uuid.UUID) (*store.Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND kind = $2`,
		id, kind,
	))
	if err != nil {
		return nil, classify("get item", err)
	}
	return &item, nil
}

// CreateItem adds a catalog item. Used by seeding and tests; the catalog is otherwise
// read-only to the API.
func (s *Store) CreateItem(ctx context.Context, item store.Item) (*store.Item, error) {
	var category *string
	if item.Category != "" {
		c := string(item.Category)
		category = &c
	}
	created, err := scanItem(s.pool.QueryRow(ctx, `
		INSERT INTO items (kind, category, title, description, reward_bp, ramadan_day, youtube_id, duration, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+itemColumns,
		item.Kind, category, item.Title, item.Description, item.RewardBP, item.ScheduledDay,
		item.YoutubeID, item.Duration, item.IsActive,
	))
	if err != nil {
		return nil, classify("create item", err)
	}
	return &created, nil
}

func (s *Store) SetItemActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE items SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return classify("set item active", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("set item active", pgx.ErrNoRows)
	}
	return nil
}
