package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/ledger"
	"barakahAPI/internal/logger"
	"barakahAPI/internal/progression"
	"barakahAPI/internal/store"
	"barakahAPI/internal/streak"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Snapshot is a read-only view of a user's state. Local totals in it are hints; the
// store stays authoritative.
type Snapshot struct {
	UserID          *uuid.UUID                            `json:"user_id"`
	Profile         *store.Profile                        `json:"profile"`
	Progress        progression.Progress                  `json:"progress"`
	EffectiveStreak int                                   `json:"effective_streak"`
	Date            *civil.Date                           `json:"date"`
	CompletedToday  map[store.ItemKind]map[uuid.UUID]bool `json:"completed_today"`
}

// Completed reports whether the snapshot has the item marked done.
func (s Snapshot) Completed(kind store.ItemKind, itemID uuid.UUID) bool {
	return s.CompletedToday[kind][itemID]
}

func anonymous() Snapshot {
	return Snapshot{
		Progress:       progression.BandProgress(0),
		CompletedToday: emptyCompleted(),
	}
}

func emptyCompleted() map[store.ItemKind]map[uuid.UUID]bool {
	return map[store.ItemKind]map[uuid.UUID]bool{
		store.KindQuest: {},
		store.KindVideo: {},
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	out.CompletedToday = make(map[store.ItemKind]map[uuid.UUID]bool, len(s.CompletedToday))
	for kind, set := range s.CompletedToday {
		cp := make(map[uuid.UUID]bool, len(set))
		for id, done := range set {
			cp[id] = done
		}
		out.CompletedToday[kind] = cp
	}
	return out
}

// Session holds one user's snapshot and serializes what the client sees of it.
type Session struct {
	ledger *ledger.Service
	userID *uuid.UUID

	mu   sync.Mutex
	gen  uint64
	snap Snapshot
}

func newSession(l *ledger.Service, userID *uuid.UUID) *Session {
	s := &Session{ledger: l, snap: anonymous()}
	if userID != nil {
		id := *userID
		s.userID = &id
		s.snap.UserID = &id
	}
	return s
}

func (s *Session) UserID() *uuid.UUID {
	return s.userID
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// Refresh reloads the profile and today's completions. When another refresh or a
// sign-out started after this one, the result is dropped with ErrStaleReadDiscarded.
func (s *Session) Refresh(ctx context.Context, today civil.Date) (Snapshot, error) {
	token := s.begin()
	if s.userID == nil {
		return s.Snapshot(), nil
	}

	var (
		profile *store.Profile
		quests  map[uuid.UUID]bool
		videos  map[uuid.UUID]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.ledger.Profile(gctx, s.userID)
		return err
	})
	g.Go(func() error {
		var err error
		quests, err = s.ledger.CompletedSet(gctx, s.userID, store.KindQuest, today)
		return err
	})
	g.Go(func() error {
		var err error
		videos, err = s.ledger.CompletedSet(gctx, s.userID, store.KindVideo, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to refresh session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.gen {
		return Snapshot{}, apperr.ErrStaleReadDiscarded
	}
	d := today
	s.snap = Snapshot{
		UserID:          s.userID,
		Profile:         profile,
		Progress:        progression.BandProgress(profile.TotalBP),
		EffectiveStreak: streak.Effective(profile.State, today),
		Date:            &d,
		CompletedToday: map[store.ItemKind]map[uuid.UUID]bool{
			store.KindQuest: quests,
			store.KindVideo: videos,
		},
	}
	return s.snap.clone(), nil
}

// Toggle flips the item optimistically, applies it through the ledger and reverts the
// flip if the ledger rejects it. On success the snapshot is refreshed from the store.
func (s *Session) Toggle(ctx context.Context, kind store.ItemKind, itemID uuid.UUID, today civil.Date, on bool) (*ledger.Result, error) {
	if s.userID == nil {
		return nil, apperr.ErrNotAuthenticated
	}

	prev := s.flip(kind, itemID, on)

	res, err := s.ledger.Toggle(ctx, s.userID, kind, itemID, today, on)
	if err != nil {
		s.flip(kind, itemID, prev)
		return nil, err
	}

	s.mu.Lock()
	s.gen++
	s.setCompleted(kind, itemID, res.Completed)
	if res.Profile != nil {
		s.snap.Profile = res.Profile
		s.snap.Progress = progression.BandProgress(res.Profile.TotalBP)
		s.snap.EffectiveStreak = streak.Effective(res.Profile.State, today)
	}
	s.mu.Unlock()

	if _, err := s.Refresh(ctx, today); err != nil && !errors.Is(err, apperr.ErrStaleReadDiscarded) {
		logger.Warn().Err(err).Str("user_id", s.userID.String()).Msg("refresh after toggle failed")
	}
	return res, nil
}

// flip sets the completed flag and returns the previous one. Refreshes already in
// flight read the state from before the flip, so they are made stale.
func (s *Session) flip(kind store.ItemKind, itemID uuid.UUID, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	prev := s.snap.CompletedToday[kind][itemID]
	s.setCompleted(kind, itemID, on)
	return prev
}

// setCompleted must be called with mu held.
func (s *Session) setCompleted(kind store.ItemKind, itemID uuid.UUID, on bool) {
	set := s.snap.CompletedToday[kind]
	if set == nil {
		set = make(map[uuid.UUID]bool)
		s.snap.CompletedToday[kind] = set
	}
	if on {
		set[itemID] = true
	} else {
		delete(set, itemID)
	}
}

// SignOut invalidates in-flight refreshes and resets the snapshot to the anonymous one.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.snap = anonymous()
	s.snap.UserID = nil
}
