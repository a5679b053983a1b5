package ledger

import (
	"sync"

	"barakahAPI/internal/store"

	"github.com/google/uuid"
)

// serializer orders operations on the same completion key. Each operation waits for the
// one enqueued before it, so operations apply in the order enqueue was called.
type serializer struct {
	mu    sync.Mutex
	tails map[store.CompletionKey]chan struct{}
}

func newSerializer() *serializer {
	return &serializer{tails: make(map[store.CompletionKey]chan struct{})}
}

// enqueue reserves the next slot for key. The caller must receive from wait (when non-nil)
// before running and must call done exactly once afterwards.
func (s *serializer) enqueue(key store.CompletionKey) (wait <-chan struct{}, done func()) {
	ch := make(chan struct{})

	s.mu.Lock()
	prev := s.tails[key]
	s.tails[key] = ch
	s.mu.Unlock()

	done = func() {
		close(ch)
		s.mu.Lock()
		if s.tails[key] == ch {
			delete(s.tails, key)
		}
		s.mu.Unlock()
	}
	if prev == nil {
		return nil, done
	}
	return prev, done
}

func (s *serializer) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}

const gateStripes = 64

// userGate separates ledger mutations from total recomputation for the same user. A
// mutation writes the ledger and then patches the total; a recompute that lands between
// the two would count the change twice. Users share stripes, mutations share the read side.
type userGate struct {
	stripes [gateStripes]sync.RWMutex
}

func (g *userGate) stripe(userID uuid.UUID) *sync.RWMutex {
	return &g.stripes[int(userID[15])%gateStripes]
}
