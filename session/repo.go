package session

import (
	"time"

	"github.com/jrsteele09/fleet-console/claims"
)

// Persisted is the part of a session that survives a restart. The user is
// never persisted; it is re-derived from the token on load.
type Persisted struct {
	AccessToken     string `json:"accessToken"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Repo stores persisted sessions by key. Load returns ErrSessionNotFound
// (internal/errors) when nothing is stored under key.
type Repo interface {
	Load(key string) (Persisted, error)
	Save(key string, p Persisted) error
	Delete(key string) error
}

// Pruner is implemented by repos that can drop sessions in bulk.
type Pruner interface {
	// Prune deletes every entry for which stale returns true and reports how
	// many were removed.
	Prune(stale func(key string, p Persisted) bool) int
}

// Stale reports whether p can no longer restore a session at now: it is
// unauthenticated, its token is malformed, or its token has expired.
func Stale(p Persisted, now time.Time) bool {
	if !p.IsAuthenticated || p.AccessToken == "" {
		return true
	}
	c, err := claims.Decode(p.AccessToken)
	if err != nil {
		return true
	}
	return c.Expired(now)
}
