package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/authflow"
	"github.com/jrsteele09/fleet-console/fleetapi"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/metrics"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/rs/zerolog/log"
)

// Console is everything one browser owns: its session, the API client bound
// to that session and the services built on it.
type Console struct {
	ID        string
	Store     *session.Store
	Client    *apiclient.Client
	Flow      *authflow.Flow
	Admin     *fleetapi.AdminService
	Inventory *fleetapi.InventoryService

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *Console) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Console) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// ConsoleConfig configures how consoles reach the fleet API.
type ConsoleConfig struct {
	APIURL      string
	Timeout     time.Duration
	RefreshPath string
	Repo        session.Repo // Optional; persists sessions across restarts
	IdleTimeout time.Duration
	Metrics     *metrics.Metrics
}

// Consoles is a thread-safe registry of consoles keyed by console id.
type Consoles struct {
	mu       sync.RWMutex
	consoles map[string]*Console
	cfg      ConsoleConfig
}

func NewConsoles(cfg ConsoleConfig) *Consoles {
	return &Consoles{
		consoles: make(map[string]*Console),
		cfg:      cfg,
	}
}

// StorageKey is the repo key of a console's persisted session.
func StorageKey(consoleID string) string {
	return session.DefaultStorageKey + ":" + consoleID
}

// Get returns a live console.
func (c *Consoles) Get(id string) (*Console, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	con, ok := c.consoles[id]
	return con, ok
}

// Open returns the console for id. A console that is not in memory is
// rebuilt only when its session was persisted; otherwise a new console with
// a fresh id is created, so callers must re-issue the cookie when the
// returned id differs.
func (c *Consoles) Open(id string) (*Console, error) {
	if id != "" {
		if con, ok := c.Get(id); ok {
			con.touch(time.Now())
			return con, nil
		}
		if c.persisted(id) {
			return c.create(id)
		}
	}
	return c.create(uuid.NewString())
}

// Remove drops a console from memory. Its persisted session is kept.
func (c *Consoles) Remove(id string) {
	c.mu.Lock()
	delete(c.consoles, id)
	n := len(c.consoles)
	c.mu.Unlock()
	c.cfg.Metrics.SetConsoles(n)
}

// Sweep removes consoles idle for longer than the idle timeout. When the repo
// supports it, persisted sessions that belong to no live console and can no
// longer be restored are dropped as well.
func (c *Consoles) Sweep(now time.Time) int {
	if c.cfg.IdleTimeout <= 0 {
		return 0
	}

	c.mu.Lock()
	removed := 0
	live := make(map[string]bool, len(c.consoles))
	for id, con := range c.consoles {
		if now.Sub(con.idleSince()) > c.cfg.IdleTimeout {
			delete(c.consoles, id)
			removed++
			continue
		}
		live[StorageKey(id)] = true
	}
	n := len(c.consoles)
	c.mu.Unlock()

	c.cfg.Metrics.SetConsoles(n)
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", n).Msg("Swept idle consoles")
	}

	if pruner, ok := c.cfg.Repo.(session.Pruner); ok {
		pruned := pruner.Prune(func(key string, p session.Persisted) bool {
			return !live[key] && session.Stale(p, now)
		})
		if pruned > 0 {
			log.Debug().Int("pruned", pruned).Msg("Pruned stale persisted sessions")
		}
	}
	return removed
}

func (c *Consoles) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.consoles)
}

func (c *Consoles) persisted(id string) bool {
	if c.cfg.Repo == nil {
		return false
	}
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	p, err := c.cfg.Repo.Load(StorageKey(id))
	if err != nil {
		if !fleeterrors.Is(err, fleeterrors.ErrSessionNotFound) {
			log.Err(err).Str("consoleId", id).Msg("Failed to look up persisted session")
		}
		return false
	}
	return p.IsAuthenticated
}

func (c *Consoles) create(id string) (*Console, error) {
	var storeOpts []session.Option
	if c.cfg.Repo != nil {
		storeOpts = append(storeOpts, session.WithRepo(c.cfg.Repo, StorageKey(id)))
	}
	store := session.New(storeOpts...)

	clientOpts := []apiclient.Option{apiclient.WithMetrics(c.cfg.Metrics)}
	if c.cfg.Timeout > 0 {
		clientOpts = append(clientOpts, apiclient.WithTimeout(c.cfg.Timeout))
	}
	if c.cfg.RefreshPath != "" {
		clientOpts = append(clientOpts, apiclient.WithRefreshPath(c.cfg.RefreshPath))
	}
	client, err := apiclient.New(c.cfg.APIURL, store, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("[Consoles create] %w", err)
	}

	con := &Console{
		ID:        id,
		Store:     store,
		Client:    client,
		Flow:      authflow.New(client),
		Admin:     fleetapi.NewAdminService(client),
		Inventory: fleetapi.NewInventoryService(client),
		lastSeen:  time.Now(),
	}

	c.mu.Lock()
	if existing, ok := c.consoles[id]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.consoles[id] = con
	n := len(c.consoles)
	c.mu.Unlock()

	c.cfg.Metrics.SetConsoles(n)
	return con, nil
}
