package session

import (
	"fmt"
	"sync"

	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
)

var (
	_ Repo   = (*InMemoryRepo)(nil)
	_ Pruner = (*InMemoryRepo)(nil)
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Persisted
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Persisted),
	}
}

// Load retrieves the session stored under key
func (r *InMemoryRepo) Load(key string) (Persisted, error) {
	if key == "" {
		return Persisted{}, fmt.Errorf("key is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.sessions[key]
	if !ok {
		return Persisted{}, fleeterrors.ErrSessionNotFound
	}
	return p, nil
}

// Save stores or replaces the session under key
func (r *InMemoryRepo) Save(key string, p Persisted) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[key] = p
	return nil
}

// Delete removes the session stored under key
func (r *InMemoryRepo) Delete(key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key) // Already absent is not an error
	return nil
}

// Prune removes the sessions stale selects
func (r *InMemoryRepo) Prune(stale func(key string, p Persisted) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, p := range r.sessions {
		if stale(key, p) {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}
