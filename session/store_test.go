package session_test

import (
	"errors"
	"sync"
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/fleet-console/claims"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/internal/fakebackend"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenantAdminToken() string {
	return fakebackend.Token(jwtlib.MapClaims{
		"id":         "u1",
		"email":      "admin@acme.test",
		"role":       "TENANT_ADMIN",
		"tenantId":   "t1",
		"tenantName": "Acme",
	})
}

// requireConsistent checks the authenticated flag always matches the token
func requireConsistent(t *testing.T, s session.Snapshot) {
	t.Helper()
	require.Equal(t, s.AccessToken != "", s.IsAuthenticated)
	if !s.IsAuthenticated {
		require.Nil(t, s.User)
	}
}

func TestStore_StartsEmpty(t *testing.T) {
	s := session.New()
	snap := s.Get()
	require.False(t, snap.IsAuthenticated)
	require.Empty(t, snap.AccessToken)
	require.Nil(t, snap.User)
	require.Equal(t, claims.RoleUnknown, snap.Role())
}

func TestStore_SetDerivesUserFromToken(t *testing.T) {
	s := session.New()
	token := tenantAdminToken()

	require.NoError(t, s.Set(token, nil))

	snap := s.Get()
	requireConsistent(t, snap)
	require.True(t, snap.IsAuthenticated)
	require.Equal(t, token, snap.AccessToken)
	require.NotNil(t, snap.User)
	require.Equal(t, "u1", snap.User.ID)
	require.Equal(t, claims.RoleTenantAdmin, snap.Role())
}

func TestStore_SetWithExplicitUser(t *testing.T) {
	s := session.New()
	user := &claims.Claims{ID: "override", Role: claims.RolePlatformAdmin}

	require.NoError(t, s.Set(tenantAdminToken(), user))
	require.Equal(t, "override", s.Get().User.ID)

	// The store keeps its own copy
	user.ID = "mutated"
	require.Equal(t, "override", s.Get().User.ID)
}

func TestStore_SetEmptyTokenRejected(t *testing.T) {
	s := session.New()
	err := s.Set("", nil)
	require.True(t, errors.Is(err, fleeterrors.ErrEmptyToken))
	require.False(t, s.Get().IsAuthenticated)
}

func TestStore_MalformedTokenClears(t *testing.T) {
	s := session.New()
	require.NoError(t, s.Set(tenantAdminToken(), nil))

	err := s.Set("not-a-token", nil)
	require.True(t, errors.Is(err, fleeterrors.ErrMalformedToken))

	snap := s.Get()
	requireConsistent(t, snap)
	require.False(t, snap.IsAuthenticated)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	s := session.New()
	require.NoError(t, s.Set(tenantAdminToken(), nil))

	s.Clear()
	first := s.Get()
	s.Clear()
	second := s.Get()

	require.Equal(t, first, second)
	require.Equal(t, session.Snapshot{}, second)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := session.New()
	require.NoError(t, s.Set(tenantAdminToken(), nil))

	snap := s.Get()
	snap.User.Role = claims.RolePlatformAdmin
	require.Equal(t, claims.RoleTenantAdmin, s.Get().Role())
}

func TestStore_Subscribe(t *testing.T) {
	s := session.New()

	var seen []session.Snapshot
	unsubscribe := s.Subscribe(func(snap session.Snapshot) {
		seen = append(seen, snap)
	})

	require.NoError(t, s.Set(tenantAdminToken(), nil))
	s.Clear()
	s.Clear() // No change, no notification

	require.Len(t, seen, 2)
	require.True(t, seen[0].IsAuthenticated)
	require.False(t, seen[1].IsAuthenticated)

	unsubscribe()
	require.NoError(t, s.Set(tenantAdminToken(), nil))
	require.Len(t, seen, 2)
}

func TestStore_GenerationGuards(t *testing.T) {
	s := session.New()
	require.NoError(t, s.Set(tenantAdminToken(), nil))

	gen := s.Generation()
	s.Clear() // A logout lands while a refresh is in flight

	applied, err := s.SetIfGeneration(gen, tenantAdminToken(), nil)
	require.NoError(t, err)
	require.False(t, applied)
	require.False(t, s.Get().IsAuthenticated)

	require.False(t, s.ClearIfGeneration(gen))

	gen = s.Generation()
	applied, err = s.SetIfGeneration(gen, tenantAdminToken(), nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.True(t, s.Get().IsAuthenticated)

	require.True(t, s.ClearIfGeneration(s.Generation()))
	require.False(t, s.Get().IsAuthenticated)
}

func TestStore_ClearEmptyAdvancesGeneration(t *testing.T) {
	s := session.New()
	gen := s.Generation()
	s.Clear()
	require.Greater(t, s.Generation(), gen)
}

func TestStore_ConcurrentWritersStayConsistent(t *testing.T) {
	s := session.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Set(tenantAdminToken(), nil)
		}()
		go func() {
			defer wg.Done()
			s.Clear()
			snap := s.Get()
			assert.Equal(t, snap.AccessToken != "", snap.IsAuthenticated)
		}()
	}
	wg.Wait()
	requireConsistent(t, s.Get())
}

func TestStore_RestoresFromRepo(t *testing.T) {
	repo := session.NewInMemoryRepo()
	token := tenantAdminToken()

	first := session.New(session.WithRepo(repo, "auth-storage:abc"))
	require.NoError(t, first.Set(token, nil))

	persisted, err := repo.Load("auth-storage:abc")
	require.NoError(t, err)
	require.Equal(t, session.Persisted{AccessToken: token, IsAuthenticated: true}, persisted)

	second := session.New(session.WithRepo(repo, "auth-storage:abc"))
	snap := second.Get()
	require.True(t, snap.IsAuthenticated)
	require.Equal(t, token, snap.AccessToken)
	require.Equal(t, claims.RoleTenantAdmin, snap.Role())

	second.Clear()
	_, err = repo.Load("auth-storage:abc")
	require.True(t, errors.Is(err, fleeterrors.ErrSessionNotFound))
}

func TestStore_DiscardsMalformedPersistedToken(t *testing.T) {
	repo := session.NewInMemoryRepo()
	require.NoError(t, repo.Save(session.DefaultStorageKey, session.Persisted{AccessToken: "garbage", IsAuthenticated: true}))

	s := session.New(session.WithRepo(repo, ""))
	require.False(t, s.Get().IsAuthenticated)

	_, err := repo.Load(session.DefaultStorageKey)
	require.True(t, errors.Is(err, fleeterrors.ErrSessionNotFound))
}
