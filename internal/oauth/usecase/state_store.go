package usecase

import (
	"sync"
	"time"
)

// PendingAuth is the per-state PKCE context stored between the authorize
// redirect and the provider callback.
type PendingAuth struct {
	UserID    string
	Service   string
	Verifier  string
	CreatedAt time.Time
}

// StateStore holds pending authorization states. The in-memory
// implementation below fits a single process; a shared store can replace it
// for multi-instance deployments.
type StateStore interface {
	Put(state string, auth PendingAuth)
	// Take removes and returns the pending auth for a state, if present
	// and not expired.
	Take(state string) (PendingAuth, bool)
}

type memoryStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]PendingAuth
	stop    chan struct{}
}

// NewMemoryStateStore creates a store whose entries expire after ttl.
// Eviction runs on a single ticker loop, not a timer per entry.
func NewMemoryStateStore(ttl time.Duration) *memoryStateStore {
	s := &memoryStateStore{
		ttl:     ttl,
		entries: make(map[string]PendingAuth),
		stop:    make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

func (s *memoryStateStore) Put(state string, auth PendingAuth) {
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.entries[state] = auth
	s.mu.Unlock()
}

func (s *memoryStateStore) Take(state string) (PendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.entries[state]
	if !ok {
		return PendingAuth{}, false
	}
	delete(s.entries, state)

	if time.Since(auth.CreatedAt) > s.ttl {
		return PendingAuth{}, false
	}
	return auth, true
}

func (s *memoryStateStore) Close() {
	close(s.stop)
}

func (s *memoryStateStore) evictLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for state, auth := range s.entries {
				if auth.CreatedAt.Before(cutoff) {
					delete(s.entries, state)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
