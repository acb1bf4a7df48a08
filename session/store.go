// Package session holds the console's authoritative authentication state.
//
// A Store is the single writer of the session triple (authenticated flag,
// access token, decoded user). Every reader calls Get for a fresh snapshot;
// nothing caches a copy across requests.
package session

import (
	"sync"

	"github.com/jrsteele09/fleet-console/claims"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/rs/zerolog/log"
)

// DefaultStorageKey is the key the persisted session is stored under.
const DefaultStorageKey = "auth-storage"

// Snapshot is an immutable view of the session at one point in time.
// IsAuthenticated is true exactly when AccessToken is non-empty.
type Snapshot struct {
	IsAuthenticated bool           `json:"isAuthenticated"`
	AccessToken     string         `json:"accessToken,omitempty"`
	User            *claims.Claims `json:"user"`
}

// Role returns the session's role, RoleUnknown when there is no user.
func (s Snapshot) Role() claims.Role {
	if s.User == nil {
		return claims.RoleUnknown
	}
	return s.User.Role
}

// Store is the session service shared by the HTTP client wrapper and the guards.
type Store struct {
	mu          sync.RWMutex
	snapshot    Snapshot
	generation  uint64
	subscribers map[int]func(Snapshot)
	nextSubID   int

	repo Repo
	key  string
}

// Option configures a Store.
type Option func(*Store)

// WithRepo persists the session under key so it survives a restart.
func WithRepo(repo Repo, key string) Option {
	return func(s *Store) {
		s.repo = repo
		if key != "" {
			s.key = key
		}
	}
}

// New creates an empty store. When a repo is configured the persisted
// session, if any, is restored and its user re-derived from the token.
func New(opts ...Option) *Store {
	s := &Store{
		subscribers: make(map[int]func(Snapshot)),
		key:         DefaultStorageKey,
	}
	for _, o := range opts {
		o(s)
	}
	if s.repo != nil {
		s.restore()
	}
	return s
}

// Get returns the current session.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// Generation increases with every write. Callers that start asynchronous work
// capture it to detect that the session changed underneath them.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// View returns the current session together with its generation.
func (s *Store) View() (Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone(), s.generation
}

// Set installs token as the current session. When user is nil it is derived
// from the token; an undecodable token then leaves the store cleared.
func (s *Store) Set(token string, user *claims.Claims) error {
	_, err := s.set(nil, token, user)
	return err
}

// SetIfGeneration installs token only if no other write happened since gen.
func (s *Store) SetIfGeneration(gen uint64, token string, user *claims.Claims) (bool, error) {
	return s.set(&gen, token, user)
}

// Clear resets the store to the empty session. Clearing an empty store leaves
// the snapshot untouched but still advances the generation.
func (s *Store) Clear() {
	s.clear(nil)
}

// ClearIfGeneration clears only if no other write happened since gen.
func (s *Store) ClearIfGeneration(gen uint64) bool {
	return s.clear(&gen)
}

// Subscribe registers fn to be called after every change. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) set(gen *uint64, token string, user *claims.Claims) (bool, error) {
	if token == "" {
		return false, fleeterrors.ErrEmptyToken
	}

	if user == nil {
		decoded, err := claims.Decode(token)
		if err != nil {
			s.clear(gen)
			return false, err
		}
		user = &decoded
	} else {
		u := *user
		user = &u
	}

	next := Snapshot{IsAuthenticated: true, AccessToken: token, User: user}

	s.mu.Lock()
	if gen != nil && *gen != s.generation {
		s.mu.Unlock()
		return false, nil
	}
	s.snapshot = next
	s.generation++
	s.persistLocked(next)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, next)
	return true, nil
}

func (s *Store) clear(gen *uint64) bool {
	s.mu.Lock()
	if gen != nil && *gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.generation++
	if !s.snapshot.IsAuthenticated {
		s.mu.Unlock()
		return true
	}
	s.snapshot = Snapshot{}
	s.persistLocked(Snapshot{})
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, Snapshot{})
	return true
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap.clone())
	}
}

// persistLocked runs under mu so the repo sees writes in store order.
func (s *Store) persistLocked(snap Snapshot) {
	if s.repo == nil {
		return
	}
	var err error
	if snap.IsAuthenticated {
		err = s.repo.Save(s.key, Persisted{AccessToken: snap.AccessToken, IsAuthenticated: true})
	} else {
		err = s.repo.Delete(s.key)
	}
	if err != nil {
		log.Err(err).Str("key", s.key).Msg("Failed to persist session")
	}
}

func (s *Store) restore() {
	p, err := s.repo.Load(s.key)
	if err != nil {
		if !fleeterrors.Is(err, fleeterrors.ErrSessionNotFound) {
			log.Err(err).Str("key", s.key).Msg("Failed to load persisted session")
		}
		return
	}
	if !p.IsAuthenticated || p.AccessToken == "" {
		return
	}

	user, err := claims.Decode(p.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("Discarding persisted session with malformed token")
		if err := s.repo.Delete(s.key); err != nil {
			log.Err(err).Str("key", s.key).Msg("Failed to delete persisted session")
		}
		return
	}

	s.mu.Lock()
	s.snapshot = Snapshot{IsAuthenticated: true, AccessToken: p.AccessToken, User: &user}
	s.generation++
	s.mu.Unlock()
}

func (s Snapshot) clone() Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
