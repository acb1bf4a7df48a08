package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/fleet-console/apiclient"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/internal/fakebackend"
	"github.com/jrsteele09/fleet-console/metrics"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@acme.test"
	testPassword = "Secret123"
)

type testFixture struct {
	backend  *fakebackend.Backend
	store    *session.Store
	client   *apiclient.Client
	registry *prometheus.Registry
}

// setupTestFixture creates a client bound to an empty store and a fake backend
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	backend := fakebackend.New(t)
	backend.AddAccount(fakebackend.Account{
		Email:      testEmail,
		Password:   testPassword,
		Role:       "TENANT_ADMIN",
		TenantID:   "t1",
		TenantName: "Acme",
	})

	reg := prometheus.NewRegistry()
	store := session.New()
	client, err := apiclient.New(backend.URL(), store, apiclient.WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	return &testFixture{backend: backend, store: store, client: client, registry: reg}
}

// login authenticates through the backend so the client holds a refresh cookie
func (f *testFixture) login(t *testing.T) string {
	t.Helper()

	var resp struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	err := f.client.Post(context.Background(), "/auth/login", map[string]string{
		"email":    testEmail,
		"password": testPassword,
	}, &resp)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(resp.Data.AccessToken, nil))
	return resp.Data.AccessToken
}

func TestNew_Validation(t *testing.T) {
	_, err := apiclient.New("http://localhost:3000", nil)
	require.Error(t, err)

	_, err = apiclient.New("localhost", session.New())
	require.Error(t, err)

	c, err := apiclient.New("http://localhost:3000/", session.New(), apiclient.WithTimeout(time.Second))
	require.NoError(t, err)
	require.NotNil(t, c.Store())
}

func TestDo_AttachesCurrentBearer(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.NoError(t, err)

	calls := f.backend.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, token, calls[0].Token)
}

func TestDo_NoSessionSendsNoBearer(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.RejectRefresh.Store(true)

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))
	require.Empty(t, f.backend.Calls()[0].Token)
}

func TestDo_DecodesBodyAndQuery(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.Handle("GET /warehouses", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "ok",
			"data":    map[string]string{"search": r.URL.Query().Get("search")},
		})
	})

	var out struct {
		Data struct {
			Search string `json:"search"`
		} `json:"data"`
	}
	err := f.client.Get(context.Background(), "/warehouses", map[string][]string{"search": {"north"}}, &out)
	require.NoError(t, err)
	require.Equal(t, "north", out.Data.Search)
	require.Equal(t, "search=north", f.backend.Calls()[0].Query)
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)
	f.backend.Handle("GET /warehouses/missing", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Warehouse not found")
	})
	f.backend.Handle("POST /warehouses", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "code is required"})
	})

	err := f.client.Get(context.Background(), "/warehouses/missing", nil, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrNotFound))
	require.False(t, errors.Is(err, fleeterrors.ErrUnauthorized))

	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "NOT_FOUND", apiErr.Code)
	require.Equal(t, "Warehouse not found", apiclient.UserMessage(err, "fallback"))

	err = f.client.Post(context.Background(), "/warehouses", map[string]string{}, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrInvalidRequest))
	require.Equal(t, "code is required", apiclient.UserMessage(err, "fallback"))
	require.Equal(t, http.StatusBadRequest, apiclient.StatusCode(err))

	require.Equal(t, int32(0), f.backend.RefreshCalls.Load())
	require.Equal(t, token, f.store.Get().AccessToken)
}

func TestDo_SilentRefreshAndReplay(t *testing.T) {
	f := setupTestFixture(t)
	oldToken := f.login(t)
	f.backend.RevokeAll()

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.NoError(t, err)

	require.Equal(t, int32(1), f.backend.RefreshCalls.Load())
	snap := f.store.Get()
	require.True(t, snap.IsAuthenticated)
	require.NotEqual(t, oldToken, snap.AccessToken)

	calls := f.backend.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, oldToken, calls[0].Token)
	require.Equal(t, snap.AccessToken, calls[1].Token)
	expected := `
# HELP fleet_console_replayed_requests_total Total requests replayed after a 401
# TYPE fleet_console_replayed_requests_total counter
fleet_console_replayed_requests_total 1
`
	require.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "fleet_console_replayed_requests_total"))
}

func TestDo_ReplaysBodyUnchanged(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RevokeAll()

	err := f.client.Post(context.Background(), "/stocks/add", map[string]any{"quantity": 5}, nil)
	require.NoError(t, err)

	calls := f.backend.Calls()
	require.Len(t, calls, 2)
	require.JSONEq(t, `{"quantity":5}`, calls[0].Body)
	require.JSONEq(t, calls[0].Body, calls[1].Body)
}

func TestDo_RefreshFailureClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RevokeAll()
	f.backend.RejectRefresh.Store(true)

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))

	require.Equal(t, int32(1), f.backend.RefreshCalls.Load())
	require.Equal(t, 1, f.backend.CallsTo(http.MethodGet, "/warehouses"))
	require.Equal(t, session.Snapshot{}, f.store.Get())
}

func TestDo_RetriesAtMostOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RejectAll.Store(true)

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))

	require.Equal(t, 2, f.backend.CallsTo(http.MethodGet, "/warehouses"))
	require.Equal(t, int32(1), f.backend.RefreshCalls.Load())
	require.False(t, f.store.Get().IsAuthenticated)
}

func TestDo_ReusedRequestRefreshesEachTime(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	req := &apiclient.Request{Method: http.MethodGet, Path: "/warehouses"}

	f.backend.RevokeAll()
	require.NoError(t, f.client.Do(context.Background(), req, nil))

	f.backend.RevokeAll()
	require.NoError(t, f.client.Do(context.Background(), req, nil))

	require.Equal(t, int32(2), f.backend.RefreshCalls.Load())
	require.Equal(t, 4, f.backend.CallsTo(http.MethodGet, "/warehouses"))
	require.True(t, f.store.Get().IsAuthenticated)
}

func TestDo_RefreshEndpointNeverRecurses(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RejectRefresh.Store(true)

	err := f.client.Post(context.Background(), apiclient.DefaultRefreshPath, nil, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))

	require.Equal(t, int32(1), f.backend.RefreshCalls.Load())
	require.False(t, f.store.Get().IsAuthenticated)
}

func TestDo_NoRefreshRequestsSurface401(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)
	f.backend.Handle("POST /auth/accept-invite", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteError(w, http.StatusUnauthorized, "INVITE_EXPIRED", "Invite has expired")
	})

	err := f.client.Do(context.Background(), &apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/accept-invite",
		Body:      map[string]string{"token": "x"},
		NoRefresh: true,
	}, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))
	require.Equal(t, "Invite has expired", apiclient.UserMessage(err, "fallback"))

	require.Equal(t, int32(0), f.backend.RefreshCalls.Load())
	require.Equal(t, token, f.store.Get().AccessToken)
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RevokeAll()
	f.backend.RefreshDelay.Store(int64(100 * time.Millisecond))

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.client.Get(context.Background(), "/inventory-items", nil, nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), f.backend.RefreshCalls.Load())
	require.True(t, f.store.Get().IsAuthenticated)
}

func TestDo_LogoutDuringRefreshWins(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RevokeAll()
	f.backend.OnRefresh(func() {
		f.store.Clear()
	})

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))

	require.Equal(t, int32(1), f.backend.RefreshCalls.Load())
	require.False(t, f.store.Get().IsAuthenticated)
	require.Equal(t, 1, f.backend.CallsTo(http.MethodGet, "/warehouses"))
}

func TestDo_TransportErrorWrapped(t *testing.T) {
	f := setupTestFixture(t)
	token := f.login(t)
	f.backend.Server.Close()

	err := f.client.Get(context.Background(), "/warehouses", nil, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, fleeterrors.ErrUnauthorized))
	require.Contains(t, err.Error(), "GET /warehouses")
	require.Equal(t, token, f.store.Get().AccessToken)
}

func TestRefresh_Superseded(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.OnRefresh(func() {
		f.store.Clear()
	})

	_, err := f.client.Refresh(context.Background())
	require.True(t, errors.Is(err, fleeterrors.ErrSessionSuperseded))
	require.False(t, f.store.Get().IsAuthenticated)
}

func TestRefresh_InstallsToken(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	token, err := f.client.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, token, f.store.Get().AccessToken)
}

func TestRefresh_FailureIsRefreshFailed(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.RejectRefresh.Store(true)

	_, err := f.client.Refresh(context.Background())
	require.True(t, errors.Is(err, fleeterrors.ErrRefreshFailed))
	require.True(t, errors.Is(err, fleeterrors.ErrUnauthorized))
	require.False(t, f.store.Get().IsAuthenticated)
}
