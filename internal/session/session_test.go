package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/ledger"
	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = civil.Date{Year: 2026, Month: 2, Day: 20}

// gateStore blocks the first ReadProfile until release is closed.
type gateStore struct {
	store.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateStore) ReadProfile(ctx context.Context, id uuid.UUID) (*store.Profile, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Store.ReadProfile(ctx, id)
}

func setup(t *testing.T) (*memory.Store, *Registry, uuid.UUID, store.Item) {
	t.Helper()
	mem := memory.New()
	p, err := mem.EnsureProfile(context.Background(), store.NewProfile{ClerkID: "user_s"})
	require.NoError(t, err)
	item := mem.PutItem(store.Item{Kind: store.KindVideo, Title: "Tafsir of al-Fatiha", RewardBP: 50, IsActive: true})
	return mem, NewRegistry(ledger.NewService(mem)), p.ID, item
}

func TestAnonymousSnapshot(t *testing.T) {
	_, reg, _, item := setup(t)
	s := reg.Anonymous()

	snap, err := s.Refresh(context.Background(), today)
	require.NoError(t, err)
	assert.Nil(t, snap.UserID)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, 0, snap.Progress.TotalBP)
	assert.Equal(t, 1, snap.Progress.Level)
	assert.Equal(t, "Ṣābir", snap.Progress.Maqam)

	_, err = s.Toggle(context.Background(), store.KindVideo, item.ID, today, true)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestToggleUpdatesSnapshot(t *testing.T) {
	_, reg, user, item := setup(t)
	s := reg.For(user)
	ctx := context.Background()

	res, err := s.Toggle(ctx, store.KindVideo, item.ID, today, true)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	snap := s.Snapshot()
	assert.True(t, snap.Completed(store.KindVideo, item.ID))
	require.NotNil(t, snap.Profile)
	assert.Equal(t, 50, snap.Profile.TotalBP)
	assert.Equal(t, 2, snap.Progress.Level)
	assert.Equal(t, 1, snap.EffectiveStreak)

	_, err = s.Toggle(ctx, store.KindVideo, item.ID, today, false)
	require.NoError(t, err)
	snap = s.Snapshot()
	assert.False(t, snap.Completed(store.KindVideo, item.ID))
	assert.Equal(t, 0, snap.Profile.TotalBP)
}

func TestFailedToggleReverts(t *testing.T) {
	mem, reg, user, item := setup(t)
	s := reg.For(user)
	ctx := context.Background()

	item.IsActive = false
	mem.PutItem(item)

	_, err := s.Toggle(ctx, store.KindVideo, item.ID, today, true)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.False(t, s.Snapshot().Completed(store.KindVideo, item.ID))
}

func TestSnapshotIsACopy(t *testing.T) {
	_, reg, user, item := setup(t)
	s := reg.For(user)

	snap := s.Snapshot()
	snap.CompletedToday[store.KindVideo][item.ID] = true
	assert.False(t, s.Snapshot().Completed(store.KindVideo, item.ID))
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	mem, _, user, _ := setup(t)
	gate := &gateStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	reg := NewRegistry(ledger.NewService(gate))
	s := reg.For(user)
	ctx := context.Background()

	errs := make(chan error, 1)
	go func() {
		_, err := s.Refresh(ctx, today)
		errs <- err
	}()
	<-gate.entered

	snap, err := s.Refresh(ctx, today)
	require.NoError(t, err)
	require.NotNil(t, snap.Profile)

	close(gate.release)
	assert.ErrorIs(t, <-errs, apperr.ErrStaleReadDiscarded)
}

func TestSignOutMakesInFlightRefreshStale(t *testing.T) {
	mem, _, user, _ := setup(t)
	gate := &gateStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	reg := NewRegistry(ledger.NewService(gate))
	s := reg.For(user)

	errs := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background(), today)
		errs <- err
	}()
	<-gate.entered

	assert.True(t, reg.SignOut(user))
	close(gate.release)

	assert.ErrorIs(t, <-errs, apperr.ErrStaleReadDiscarded)
	assert.Nil(t, s.Snapshot().Profile)
	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.SignOut(user))
}

func TestRegistryReusesSessions(t *testing.T) {
	_, reg, user, _ := setup(t)

	a := reg.For(user)
	b := reg.For(user)
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, user, *a.UserID())

	other := reg.For(uuid.New())
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistrySweepDropsIdleSessions(t *testing.T) {
	_, reg, user, item := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	active := reg.For(user)
	_, err := active.Toggle(ctx, store.KindVideo, item.ID, today, true)
	require.NoError(t, err)
	idle := reg.For(uuid.New())

	now = now.Add(20 * time.Minute)
	assert.Same(t, active, reg.For(user))

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, reg.Sweep(30*time.Minute))
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, active, reg.For(user))
	assert.True(t, active.Snapshot().Completed(store.KindVideo, item.ID))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, reg.Sweep(30*time.Minute))
	assert.Zero(t, reg.Len())
	assert.NotNil(t, idle.Snapshot().CompletedToday, "a dropped session stays usable")

	fresh := reg.For(user)
	assert.NotSame(t, active, fresh)
	snap, err := fresh.Refresh(ctx, today)
	require.NoError(t, err)
	assert.True(t, snap.Completed(store.KindVideo, item.ID))
}
