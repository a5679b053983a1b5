package session

import (
	"sync"
	"time"

	"barakahAPI/internal/ledger"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may go unused before Sweep drops it.
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Registry keeps one session per signed-in user.
type Registry struct {
	ledger *ledger.Service
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

func NewRegistry(l *ledger.Service) *Registry {
	return &Registry{
		ledger:   l,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// For returns the user's session, creating it on first use.
func (r *Registry) For(userID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok {
		e.lastUsed = r.now()
		return e.session
	}
	s := newSession(r.ledger, &userID)
	r.sessions[userID] = &entry{session: s, lastUsed: r.now()}
	return s
}

// Anonymous returns a fresh session with no user: no ledger, no profile, zero BP.
func (r *Registry) Anonymous() *Session {
	return newSession(r.ledger, nil)
}

// SignOut drops the user's session. It reports whether one existed.
func (r *Registry) SignOut(userID uuid.UUID) bool {
	r.mu.Lock()
	e, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		e.session.SignOut()
	}
	return ok
}

// Sweep drops sessions unused for longer than idle and reports how many went. Unlike
// SignOut it leaves the dropped sessions intact, so a request still holding one finishes
// normally; the user's next request starts a fresh session from the store.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	dropped := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
