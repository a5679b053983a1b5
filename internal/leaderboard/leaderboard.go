package leaderboard

import (
	"context"
	"fmt"

	"barakahAPI/internal/store"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Leaderboard struct {
	Entries      []store.LeaderboardEntry `json:"entries"`
	UserPosition *store.LeaderboardEntry  `json:"user_position"`
}

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// ClampLimit applies the default to a non-positive limit and caps it at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// TopN returns the first n ranked profiles, fewer when fewer qualify. A user whose
// RankOf is at most n is in the result at that position.
func (s *Service) TopN(ctx context.Context, n int) ([]store.LeaderboardEntry, error) {
	if n <= 0 {
		return []store.LeaderboardEntry{}, nil
	}
	entries, err := s.store.QueryLeaderboard(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	return entries, nil
}

// RankOf returns the user's entry, or nil when there is no user or the user has no points.
func (s *Service) RankOf(ctx context.Context, userID *uuid.UUID) (*store.LeaderboardEntry, error) {
	if userID == nil {
		return nil, nil
	}
	entry, err := s.store.QueryRankOf(ctx, *userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank: %w", err)
	}
	return entry, nil
}

// Board is the top entries plus the caller's own position. The requested size goes
// through ClampLimit first.
func (s *Service) Board(ctx context.Context, userID *uuid.UUID, n int) (*Leaderboard, error) {
	entries, err := s.TopN(ctx, ClampLimit(n))
	if err != nil {
		return nil, err
	}
	me, err := s.RankOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Leaderboard{Entries: entries, UserPosition: me}, nil
}
