package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"barakahAPI/internal/ledger"
	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	sweeps atomic.Int32
	calls  atomic.Int32
	err    error
}

func (c *countingReconciler) SweepUnreconciled(ctx context.Context) (int, error) {
	c.sweeps.Add(1)
	return 0, nil
}

func (c *countingReconciler) RecoverPending(ctx context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestReconcileWorkerTicksUntilCancelled(t *testing.T) {
	r := &countingReconciler{err: errors.New("store down")}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartReconcileWorker(ctx, r, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	stopped := r.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, r.calls.Load())
	assert.Equal(t, int32(1), r.sweeps.Load())
}

func TestReconcileWorkerRepairsTotalsLostBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := memory.New()
	p, err := mem.EnsureProfile(ctx, store.NewProfile{ClerkID: "user_restart"})
	require.NoError(t, err)
	item := mem.PutItem(store.Item{Kind: store.KindVideo, Title: "Night prayer", RewardBP: 25, IsActive: true})
	day := civil.Date{Year: 2026, Month: 2, Day: 20}
	// committed by a process that died before patching the total
	_, err = mem.InsertCompletion(ctx, store.CompletionKey{UserID: p.ID, Kind: store.KindVideo, ItemID: item.ID, Date: day}, item.RewardBP)
	require.NoError(t, err)

	l := ledger.NewService(mem)
	done := StartReconcileWorker(ctx, l, time.Hour)

	assert.Eventually(t, func() bool {
		got, err := mem.ReadProfile(ctx, p.ID)
		return err == nil && got.TotalBP == 25 && got.LastActivityDate != nil && len(l.PendingUsers()) == 0
	}, time.Second, 5*time.Millisecond)

	got, err := mem.ReadProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStreak)
	require.NotNil(t, got.LastActivityDate)
	assert.Equal(t, day, *got.LastActivityDate)

	cancel()
	<-done
}

type countingSweeper struct {
	idle  atomic.Int64
	calls atomic.Int32
}

func (c *countingSweeper) Sweep(idle time.Duration) int {
	c.idle.Store(int64(idle))
	c.calls.Add(1)
	return 2
}

func TestSessionSweeperTicksUntilCancelled(t *testing.T) {
	s := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := startSessionSweeper(ctx, s, 30*time.Minute, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(30*time.Minute), s.idle.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
