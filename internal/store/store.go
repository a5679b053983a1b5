package store

import (
	"context"
	"fmt"
	"time"

	"barakahAPI/internal/streak"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type ItemKind string

const (
	KindQuest ItemKind = "quest"
	KindVideo ItemKind = "video"
)

// ParseKind accepts both the singular kind and the plural URL segment.
func ParseKind(s string) (ItemKind, error) {
	switch s {
	case "quest", "quests":
		return KindQuest, nil
	case "video", "videos":
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

type Category string

const (
	CategorySpiritual Category = "spiritual"
	CategoryMental    Category = "mental"
	CategoryPhysical  Category = "physical"
)

// Categories in display order.
var Categories = []Category{CategorySpiritual, CategoryMental, CategoryPhysical}

type Item struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Kind         ItemKind  `json:"kind" db:"kind"`
	Category     Category  `json:"category,omitempty" db:"category"`
	Title        string    `json:"title" db:"title"`
	Description  *string   `json:"description,omitempty" db:"description"`
	RewardBP     int       `json:"reward_bp" db:"reward_bp"`
	ScheduledDay *int      `json:"scheduled_day,omitempty" db:"ramadan_day"`
	YoutubeID    *string   `json:"youtube_id,omitempty" db:"youtube_id"`
	Duration     *string   `json:"duration,omitempty" db:"duration"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Profile struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ClerkID      string    `json:"-" db:"clerk_id"`
	DisplayName  *string   `json:"display_name" db:"display_name"`
	AvatarURL    *string   `json:"avatar_url" db:"avatar_url"`
	TotalBP      int       `json:"total_bp" db:"total_bp"`
	CurrentLevel int       `json:"current_level" db:"current_level"`
	CurrentMaqam string    `json:"current_maqam" db:"current_maqam"`
	streak.State
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewProfile carries the identity fields a profile is created from.
type NewProfile struct {
	ClerkID     string
	DisplayName *string
	AvatarURL   *string
}

// ProfilePatch is the client-authority reconciliation write. BPDelta is added to the
// total and floored at zero; LastActivityDate, when set, advances the streak.
type ProfilePatch struct {
	BPDelta          int
	LastActivityDate *civil.Date
}

// CompletionKey identifies one completion fact.
type CompletionKey struct {
	UserID uuid.UUID
	Kind   ItemKind
	ItemID uuid.UUID
	Date   civil.Date
}

func (k CompletionKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.UserID, k.Kind, k.ItemID, k.Date)
}

type LeaderboardEntry struct {
	Rank          int       `json:"rank" db:"rank"`
	UserID        uuid.UUID `json:"user_id" db:"id"`
	DisplayName   *string   `json:"display_name" db:"display_name"`
	AvatarURL     *string   `json:"avatar_url" db:"avatar_url"`
	TotalBP       int       `json:"total_bp" db:"total_bp"`
	CurrentLevel  int       `json:"current_level" db:"current_level"`
	CurrentMaqam  string    `json:"current_maqam" db:"current_maqam"`
	CurrentStreak int       `json:"current_streak" db:"current_streak"`
}

// Unreconciled is a profile whose total_bp disagrees with its completion ledger.
// LastCompletion is the latest completed date on the ledger, nil when it is empty.
type Unreconciled struct {
	UserID         uuid.UUID   `db:"id"`
	TotalBP        int         `db:"total_bp"`
	LedgerBP       int         `db:"ledger_bp"`
	LastCompletion *civil.Date `db:"last_completion"`
}

// Store is the authoritative persistence for profiles, the item catalog and the
// completion ledger.
//
// Lookups return apperr.ErrNotFound for missing rows, structural rejections wrap
// apperr.ErrConflict and network failures are apperr.Transient.
type Store interface {
	Ping(ctx context.Context) error

	ResolveUser(ctx context.Context, clerkID string) (uuid.UUID, error)
	EnsureProfile(ctx context.Context, p NewProfile) (*Profile, error)
	UpdateIdentity(ctx context.Context, p NewProfile) error
	DeleteProfile(ctx context.Context, clerkID string) error

	ReadProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*Profile, error)
	// RecomputeTotal rewrites total_bp as the sum of the user's completion rewards.
	RecomputeTotal(ctx context.Context, userID uuid.UUID) (*Profile, error)
	// ListUnreconciled finds profiles whose total_bp is not the sum of their completion
	// rewards, which happens when a delta patch was lost.
	ListUnreconciled(ctx context.Context) ([]Unreconciled, error)

	ListActiveItems(ctx context.Context, kind ItemKind) ([]Item, error)
	GetItem(ctx context.Context, kind ItemKind, id uuid.UUID) (*Item, error)

	// ListCompletions returns the ids of items of kind the user completed on date.
	ListCompletions(ctx context.Context, userID uuid.UUID, kind ItemKind, date civil.Date) ([]uuid.UUID, error)
	InsertCompletion(ctx context.Context, key CompletionKey, rewardBP int) (created bool, err error)
	DeleteCompletion(ctx context.Context, key CompletionKey) (deleted bool, rewardBP int, err error)

	QueryLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// QueryRankOf returns nil when the user does not qualify for the leaderboard.
	QueryRankOf(ctx context.Context, userID uuid.UUID) (*LeaderboardEntry, error)

	// ReconcilesTotals reports whether the store itself applies rewards and streaks when
	// the ledger changes. When true the caller must never patch totals.
	ReconcilesTotals() bool
}

// CatalogAdmin is the write side of the item catalog. The engine only reads the catalog;
// this is for seeding and the items command.
type CatalogAdmin interface {
	CreateItem(ctx context.Context, item Item) (*Item, error)
	SetItemActive(ctx context.Context, id uuid.UUID, active bool) error
	ListActiveItems(ctx context.Context, kind ItemKind) ([]Item, error)
}
