// Package memory is an in-process store used by tests and by `serve --store memory`.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/progression"
	"barakahAPI/internal/store"
	"barakahAPI/internal/streak"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type completion struct {
	kind     store.ItemKind
	rewardBP int
}

type Option func(*Store)

// WithStoreReconciliation makes the store apply rewards and streaks on every ledger
// mutation, the way the completions_reconcile trigger does in PostgreSQL.
func WithStoreReconciliation(enabled bool) Option {
	return func(s *Store) { s.reconcile = enabled }
}

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu          sync.RWMutex
	reconcile   bool
	now         func() time.Time
	profiles    map[uuid.UUID]*store.Profile
	byClerk     map[string]uuid.UUID
	items       map[uuid.UUID]store.Item
	completions map[store.CompletionKey]completion
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.CatalogAdmin = (*Store)(nil)
)

func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		profiles:    make(map[uuid.UUID]*store.Profile),
		byClerk:     make(map[string]uuid.UUID),
		items:       make(map[uuid.UUID]store.Item),
		completions: make(map[store.CompletionKey]completion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) ReconcilesTotals() bool {
	return s.reconcile
}

// PutItem inserts or replaces a catalog item. A zero ID is assigned.
func (s *Store) PutItem(item store.Item) store.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.items[item.ID] = item
	return item
}

func (s *Store) CreateItem(ctx context.Context, item store.Item) (*store.Item, error) {
	item.ID = uuid.Nil
	created := s.PutItem(item)
	return &created, nil
}

func (s *Store) SetItemActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	item.IsActive = active
	s.items[id] = item
	return nil
}

// PutProfile inserts or replaces a profile as-is, deriving level and maqam from the total.
func (s *Store) PutProfile(p store.Profile) *store.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ClerkID == "" {
		p.ClerkID = "user_" + p.ID.String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	derive(&p)
	cp := p
	s.profiles[p.ID] = &cp
	s.byClerk[p.ClerkID] = p.ID
	out := cp
	return &out
}

func derive(p *store.Profile) {
	if p.TotalBP < 0 {
		p.TotalBP = 0
	}
	p.CurrentLevel = progression.LevelFromTotalBP(p.TotalBP)
	p.CurrentMaqam = progression.MaqamForLevel(p.CurrentLevel).Name
}

func (s *Store) ResolveUser(ctx context.Context, clerkID string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byClerk[clerkID]
	if !ok {
		return uuid.Nil, fmt.Errorf("no profile for %s: %w", clerkID, apperr.ErrNotFound)
	}
	return id, nil
}

func (s *Store) EnsureProfile(ctx context.Context, np store.NewProfile) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byClerk[np.ClerkID]; ok {
		out := *s.profiles[id]
		return &out, nil
	}

	now := s.now()
	p := &store.Profile{
		ID:          uuid.New(),
		ClerkID:     np.ClerkID,
		DisplayName: np.DisplayName,
		AvatarURL:   np.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	derive(p)
	s.profiles[p.ID] = p
	s.byClerk[p.ClerkID] = p.ID

	out := *p
	return &out, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, np store.NewProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byClerk[np.ClerkID]
	if !ok {
		return fmt.Errorf("no profile for %s: %w", np.ClerkID, apperr.ErrNotFound)
	}
	p := s.profiles[id]
	p.DisplayName = np.DisplayName
	p.AvatarURL = np.AvatarURL
	p.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, clerkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byClerk[clerkID]
	if !ok {
		return fmt.Errorf("no profile for %s: %w", clerkID, apperr.ErrNotFound)
	}
	delete(s.byClerk, clerkID)
	delete(s.profiles, id)
	for key := range s.completions {
		if key.UserID == id {
			delete(s.completions, key)
		}
	}
	return nil
}

func (s *Store) ReadProfile(ctx context.Context, userID uuid.UUID) (*store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, apperr.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, patch store.ProfilePatch) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, apperr.ErrNotFound)
	}
	s.apply(p, patch)
	out := *p
	return &out, nil
}

// apply must be called with mu held.
func (s *Store) apply(p *store.Profile, patch store.ProfilePatch) {
	p.TotalBP += patch.BPDelta
	if patch.LastActivityDate != nil {
		p.State = streak.Advance(p.State, *patch.LastActivityDate)
	}
	derive(p)
	p.UpdatedAt = s.now()
}

func (s *Store) RecomputeTotal(ctx context.Context, userID uuid.UUID) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, apperr.ErrNotFound)
	}
	total := 0
	for key, c := range s.completions {
		if key.UserID == userID {
			total += c.rewardBP
		}
	}
	p.TotalBP = total
	derive(p)
	p.UpdatedAt = s.now()

	out := *p
	return &out, nil
}

func (s *Store) ListUnreconciled(ctx context.Context) ([]store.Unreconciled, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[uuid.UUID]store.Unreconciled)
	for key, c := range s.completions {
		u := sums[key.UserID]
		u.LedgerBP += c.rewardBP
		if u.LastCompletion == nil || u.LastCompletion.Before(key.Date) {
			d := key.Date
			u.LastCompletion = &d
		}
		sums[key.UserID] = u
	}

	out := make([]store.Unreconciled, 0)
	for id, p := range s.profiles {
		u := sums[id]
		if p.TotalBP == u.LedgerBP {
			continue
		}
		u.UserID = id
		u.TotalBP = p.TotalBP
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) ListActiveItems(ctx context.Context, kind store.ItemKind) ([]store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]store.Item, 0)
	for _, item := range s.items {
		if item.Kind == kind && item.IsActive {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, kind store.ItemKind, id uuid.UUID) (*store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || item.Kind != kind {
		return nil, fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return &item, nil
}

func (s *Store) ListCompletions(ctx context.Context, userID uuid.UUID, kind store.ItemKind, date civil.Date) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0)
	for key := range s.completions {
		if key.UserID == userID && key.Kind == kind && key.Date == date {
			ids = append(ids, key.ItemID)
		}
	}
	return ids, nil
}

func (s *Store) InsertCompletion(ctx context.Context, key store.CompletionKey, rewardBP int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[key.UserID]
	if !ok {
		return false, apperr.Conflict("profile %s does not exist", key.UserID)
	}
	item, ok := s.items[key.ItemID]
	if !ok || item.Kind != key.Kind || !item.IsActive {
		return false, apperr.Conflict("%s %s is not available", key.Kind, key.ItemID)
	}
	if _, exists := s.completions[key]; exists {
		return false, nil
	}

	s.completions[key] = completion{kind: key.Kind, rewardBP: rewardBP}
	if s.reconcile {
		date := key.Date
		s.apply(p, store.ProfilePatch{BPDelta: rewardBP, LastActivityDate: &date})
	}
	return true, nil
}

func (s *Store) DeleteCompletion(ctx context.Context, key store.CompletionKey) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.completions[key]
	if !ok {
		return false, 0, nil
	}
	delete(s.completions, key)
	if s.reconcile {
		if p, ok := s.profiles[key.UserID]; ok {
			s.apply(p, store.ProfilePatch{BPDelta: -c.rewardBP})
		}
	}
	return true, c.rewardBP, nil
}

func (s *Store) ranked() []store.LeaderboardEntry {
	profiles := make([]*store.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	return store.Rank(profiles)
}

func (s *Store) QueryLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.ranked()
	if limit >= 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) QueryRankOf(ctx context.Context, userID uuid.UUID) (*store.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.ranked() {
		if e.UserID == userID {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}
