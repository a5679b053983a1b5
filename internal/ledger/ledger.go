package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/catalog"
	"barakahAPI/internal/logger"
	"barakahAPI/internal/observance"
	"barakahAPI/internal/progression"
	"barakahAPI/internal/store"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 50 * time.Millisecond

	// reconcileTimeout bounds the profile patch, which runs detached from the request
	// once the ledger write has committed.
	reconcileTimeout = 5 * time.Second
)

var (
	errAmbiguousWrite = errors.New("ledger write outcome unknown after retry")
	errLedgerDrift    = errors.New("total disagrees with completion ledger")
)

// Recorder receives ledger events for metrics.
type Recorder interface {
	Toggle(kind store.ItemKind, on, changed bool)
	Drift()
	PendingReconciliation()
	Recovered()
	Retry(op string)
}

type nopRecorder struct{}

func (nopRecorder) Toggle(store.ItemKind, bool, bool) {}
func (nopRecorder) Drift()                            {}
func (nopRecorder) PendingReconciliation()            {}
func (nopRecorder) Recovered()                        {}
func (nopRecorder) Retry(string)                      {}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithRetry sets how many times idempotent store calls are attempted and the base
// backoff between attempts (multiplied by the attempt number).
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// WithCalendar sets the observance calendar that decides which scheduled items can be
// completed on a date. Without it only unscheduled items can be completed.
func WithCalendar(cal observance.Calendar) Option {
	return func(s *Service) {
		s.calendar = cal
	}
}

// Result is the outcome of a toggle.
type Result struct {
	Key       store.CompletionKey `json:"-"`
	Completed bool                `json:"completed"`
	Changed   bool                `json:"changed"`
	// Profile is the authoritative profile re-read after the mutation. It is nil when
	// that read failed; the ledger change itself still stands.
	Profile *store.Profile `json:"profile"`
}

// Outcome is delivered on the channel returned by ToggleAsync.
type Outcome struct {
	Result *Result
	Err    error
}

// Service records completions and keeps the point total consistent with them.
type Service struct {
	store       store.Store
	rec         Recorder
	maxAttempts int
	backoff     time.Duration
	calendar    observance.Calendar
	serial      *serializer
	gate        userGate

	mu    sync.Mutex
	seq   uint64
	dirty map[uuid.UUID]pendingState
}

// pendingState is a user whose total must be rebuilt from the ledger. activity is the
// latest completion date whose streak update may have been lost.
type pendingState struct {
	activity *civil.Date
	seq      uint64
}

func NewService(s store.Store, opts ...Option) *Service {
	svc := &Service{
		store:       s,
		rec:         nopRecorder{},
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
		serial:      newSerializer(),
		dirty:       make(map[uuid.UUID]pendingState),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IsCompletedToday reports whether the user has a completion for the item on today.
// There is nothing to report without a user.
func (s *Service) IsCompletedToday(ctx context.Context, userID *uuid.UUID, kind store.ItemKind, itemID uuid.UUID, today civil.Date) (bool, error) {
	if userID == nil {
		return false, nil
	}
	done, err := s.completedSet(ctx, *userID, kind, today)
	if err != nil {
		return false, err
	}
	return done[itemID], nil
}

// CompletedSet returns the ids of items of kind the user completed on date.
func (s *Service) CompletedSet(ctx context.Context, userID *uuid.UUID, kind store.ItemKind, date civil.Date) (map[uuid.UUID]bool, error) {
	if userID == nil {
		return map[uuid.UUID]bool{}, nil
	}
	return s.completedSet(ctx, *userID, kind, date)
}

func (s *Service) completedSet(ctx context.Context, userID uuid.UUID, kind store.ItemKind, date civil.Date) (map[uuid.UUID]bool, error) {
	ids, _, err := retry(ctx, s, "list_completions", func(ctx context.Context) ([]uuid.UUID, error) {
		return s.store.ListCompletions(ctx, userID, kind, date)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Complete inserts the completion. It reports created=false when the record already
// existed. A missing or deactivated item is a conflict, and so is a scheduled item on a
// date that is not its observance day.
func (s *Service) Complete(ctx context.Context, key store.CompletionKey) (created bool, rewardBP int, err error) {
	created, rewardBP, _, err = s.complete(ctx, key)
	return created, rewardBP, err
}

func (s *Service) complete(ctx context.Context, key store.CompletionKey) (created bool, rewardBP int, ambiguous bool, err error) {
	item, _, err := retry(ctx, s, "get_item", func(ctx context.Context) (*store.Item, error) {
		return s.store.GetItem(ctx, key.Kind, key.ItemID)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, 0, false, apperr.Conflict("%s %s does not exist", key.Kind, key.ItemID)
		}
		return false, 0, false, fmt.Errorf("failed to load item: %w", err)
	}
	if !item.IsActive {
		return false, 0, false, apperr.Conflict("%s %s is not active", key.Kind, key.ItemID)
	}
	if !catalog.Available(*item, s.calendar.DayOf(key.Date)) {
		return false, 0, false, apperr.Conflict("%s %s is not available on %s", key.Kind, key.ItemID, key.Date)
	}

	created, attempts, err := retry(ctx, s, "insert_completion", func(ctx context.Context) (bool, error) {
		return s.store.InsertCompletion(ctx, key, item.RewardBP)
	})
	if err != nil {
		return false, 0, false, fmt.Errorf("failed to insert completion: %w", err)
	}
	// An earlier attempt may have committed before its response was lost.
	ambiguous = !created && attempts > 1
	return created, item.RewardBP, ambiguous, nil
}

// Uncomplete deletes the completion, reporting the reward it had been granted.
func (s *Service) Uncomplete(ctx context.Context, key store.CompletionKey) (deleted bool, rewardBP int, err error) {
	deleted, rewardBP, _, err = s.uncomplete(ctx, key)
	return deleted, rewardBP, err
}

type deleteResult struct {
	deleted  bool
	rewardBP int
}

func (s *Service) uncomplete(ctx context.Context, key store.CompletionKey) (bool, int, bool, error) {
	res, attempts, err := retry(ctx, s, "delete_completion", func(ctx context.Context) (deleteResult, error) {
		deleted, reward, err := s.store.DeleteCompletion(ctx, key)
		return deleteResult{deleted: deleted, rewardBP: reward}, err
	})
	if err != nil {
		return false, 0, false, fmt.Errorf("failed to delete completion: %w", err)
	}
	return res.deleted, res.rewardBP, !res.deleted && attempts > 1, nil
}

// Toggle sets the completion state of an item for a date and reconciles the total.
// Calls for the same (user, item, date) apply in the order they were issued.
func (s *Service) Toggle(ctx context.Context, userID *uuid.UUID, kind store.ItemKind, itemID uuid.UUID, date civil.Date, on bool) (*Result, error) {
	out := <-s.ToggleAsync(ctx, userID, kind, itemID, date, on)
	return out.Result, out.Err
}

// ToggleAsync issues a toggle and returns immediately. The toggle's place in the per-key
// order is fixed before ToggleAsync returns.
func (s *Service) ToggleAsync(ctx context.Context, userID *uuid.UUID, kind store.ItemKind, itemID uuid.UUID, date civil.Date, on bool) <-chan Outcome {
	out := make(chan Outcome, 1)
	if userID == nil {
		out <- Outcome{Err: apperr.ErrNotAuthenticated}
		return out
	}

	key := store.CompletionKey{UserID: *userID, Kind: kind, ItemID: itemID, Date: date}
	wait, done := s.serial.enqueue(key)

	go func() {
		if wait != nil {
			<-wait
		}
		res, err := s.apply(ctx, key, on)
		done()
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

func (s *Service) apply(ctx context.Context, key store.CompletionKey, on bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	changed, err := s.mutate(ctx, key, on)
	if err != nil {
		return nil, err
	}
	s.rec.Toggle(key.Kind, on, changed)

	res := &Result{Key: key, Completed: on, Changed: changed}

	// The ledger write has committed; the re-read must not be abandoned with the request.
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()
	p, err := s.Profile(readCtx, &key.UserID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", key.UserID.String()).Msg("failed to re-read profile after toggle")
	} else {
		res.Profile = p
	}
	return res, nil
}

// mutate writes the ledger and, when the store leaves totals to us, patches the total.
// Both happen under the user's gate so a recovery never sees one without the other.
func (s *Service) mutate(ctx context.Context, key store.CompletionKey, on bool) (bool, error) {
	gate := s.gate.stripe(key.UserID)
	gate.RLock()
	defer gate.RUnlock()

	var (
		changed   bool
		delta     int
		ambiguous bool
		activity  *civil.Date
	)
	if on {
		created, reward, amb, err := s.complete(ctx, key)
		if err != nil {
			return false, err
		}
		changed, delta, ambiguous = created, reward, amb
		date := key.Date
		activity = &date
	} else {
		deleted, reward, amb, err := s.uncomplete(ctx, key)
		if err != nil {
			return false, err
		}
		changed, delta, ambiguous = deleted, -reward, amb
	}

	if !s.store.ReconcilesTotals() {
		switch {
		case changed:
			s.reconcile(ctx, key, store.ProfilePatch{BPDelta: delta, LastActivityDate: activity})
		case ambiguous:
			s.markDirty(key.UserID, activity, errAmbiguousWrite)
		}
	}
	return changed, nil
}

// reconcile applies the delta patch once. On failure the user is marked dirty so the
// next profile read rebuilds the total from the ledger.
func (s *Service) reconcile(ctx context.Context, key store.CompletionKey, patch store.ProfilePatch) {
	patchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	if _, err := s.store.UpdateProfile(patchCtx, key.UserID, patch); err != nil {
		s.markDirty(key.UserID, patch.LastActivityDate, err)
	}
}

func (s *Service) markDirty(userID uuid.UUID, activity *civil.Date, cause error) {
	s.mu.Lock()
	prev, already := s.dirty[userID]
	if activity != nil && (prev.activity == nil || prev.activity.Before(*activity)) {
		d := *activity
		prev.activity = &d
	}
	s.seq++
	prev.seq = s.seq
	s.dirty[userID] = prev
	s.mu.Unlock()

	s.rec.PendingReconciliation()
	logger.Warn().
		Err(cause).
		Str("user_id", userID.String()).
		Bool("already_pending", already).
		Msg("profile reconciliation pending")
}

func (s *Service) pendingFor(userID uuid.UUID) (pendingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.dirty[userID]
	return st, ok
}

func (s *Service) clearDirty(userID uuid.UUID, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// a newer failure may have landed while we were recovering
	if cur, ok := s.dirty[userID]; ok && cur.seq == seq {
		delete(s.dirty, userID)
	}
}

// PendingReconciliation reports whether the user's total is waiting to be rebuilt.
func (s *Service) PendingReconciliation(userID uuid.UUID) bool {
	_, pending := s.pendingFor(userID)
	return pending
}

// Profile reads the authoritative profile, first completing any pending reconciliation
// and correcting a stored level that disagrees with the total.
func (s *Service) Profile(ctx context.Context, userID *uuid.UUID) (*store.Profile, error) {
	if userID == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	id := *userID

	var (
		p   *store.Profile
		err error
	)
	if st, pending := s.pendingFor(id); pending {
		p, err = s.recover(ctx, id, st)
	} else {
		p, _, err = retry(ctx, s, "read_profile", func(ctx context.Context) (*store.Profile, error) {
			return s.store.ReadProfile(ctx, id)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if want := progression.LevelFromTotalBP(p.TotalBP); p.CurrentLevel != want {
		s.rec.Drift()
		logger.Warn().
			Str("user_id", id.String()).
			Int("total_bp", p.TotalBP).
			Int("stored_level", p.CurrentLevel).
			Int("derived_level", want).
			Msg("stored level disagrees with total, re-deriving")

		if fixed, err := s.store.UpdateProfile(ctx, id, store.ProfilePatch{}); err == nil {
			p = fixed
		} else {
			p.CurrentLevel = want
			p.CurrentMaqam = progression.MaqamForLevel(want).Name
		}
	}
	return p, nil
}

func (s *Service) recover(ctx context.Context, userID uuid.UUID, st pendingState) (*store.Profile, error) {
	gate := s.gate.stripe(userID)
	gate.Lock()
	defer gate.Unlock()

	// a failure recorded while we waited for the gate is covered by this recompute too
	if cur, ok := s.pendingFor(userID); ok {
		st = cur
	}

	p, _, err := retry(ctx, s, "recompute_total", func(ctx context.Context) (*store.Profile, error) {
		return s.store.RecomputeTotal(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if activity := st.activity; activity != nil {
		// advancing to an already-recorded date is a no-op, so this is safe to repeat
		p, _, err = retry(ctx, s, "advance_streak", func(ctx context.Context) (*store.Profile, error) {
			return s.store.UpdateProfile(ctx, userID, store.ProfilePatch{LastActivityDate: activity})
		})
		if err != nil {
			return nil, err
		}
	}
	s.clearDirty(userID, st.seq)
	s.rec.Recovered()
	logger.Info().
		Str("user_id", userID.String()).
		Int("total_bp", p.TotalBP).
		Msg("pending reconciliation resolved from ledger")
	return p, nil
}

// PendingUsers lists the users whose totals are waiting to be rebuilt.
func (s *Service) PendingUsers() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	return ids
}

// RecoverPending rebuilds every pending total from the ledger. Users whose recovery
// fails stay pending for the next attempt.
func (s *Service) RecoverPending(ctx context.Context) (recovered int, err error) {
	var errs []error
	for _, id := range s.PendingUsers() {
		st, ok := s.pendingFor(id)
		if !ok {
			continue
		}
		if _, rerr := s.recover(ctx, id, st); rerr != nil {
			if errors.Is(rerr, apperr.ErrNotFound) {
				// the profile was deleted, nothing left to rebuild
				s.clearDirty(id, st.seq)
				continue
			}
			errs = append(errs, fmt.Errorf("user %s: %w", id, rerr))
			continue
		}
		recovered++
	}
	return recovered, errors.Join(errs...)
}

// SweepUnreconciled marks every profile whose stored total disagrees with its ledger as
// pending, so RecoverPending rebuilds it. Pending markers live in memory only; this
// finds the patches lost to a restart. It does nothing when the store reconciles totals.
func (s *Service) SweepUnreconciled(ctx context.Context) (int, error) {
	if s.store.ReconcilesTotals() {
		return 0, nil
	}
	drifted, _, err := retry(ctx, s, "list_unreconciled", func(ctx context.Context) ([]store.Unreconciled, error) {
		return s.store.ListUnreconciled(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list unreconciled profiles: %w", err)
	}
	for _, u := range drifted {
		// the latest completion may be the one whose streak update was lost
		s.markDirty(u.UserID, u.LastCompletion, fmt.Errorf("%w: total %d, ledger %d", errLedgerDrift, u.TotalBP, u.LedgerBP))
	}
	return len(drifted), nil
}

// Today loads the catalog and the user's completions for date concurrently and returns
// the pending and done views. Without a user nothing is done.
func (s *Service) Today(ctx context.Context, userID *uuid.UUID, kind store.ItemKind, date civil.Date, day observance.State) (*catalog.View, error) {
	var (
		items     []store.Item
		completed map[uuid.UUID]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, _, err = retry(gctx, s, "list_items", func(ctx context.Context) ([]store.Item, error) {
			return s.store.ListActiveItems(ctx, kind)
		})
		if err != nil {
			return fmt.Errorf("failed to list %s items: %w", kind, err)
		}
		return nil
	})
	if userID != nil {
		g.Go(func() error {
			var err error
			completed, err = s.completedSet(gctx, *userID, kind, date)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := catalog.Build(kind, date.String(), day, items, completed)
	return &view, nil
}
