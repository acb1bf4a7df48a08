package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/fleet-console/internal/config"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/internal/fakebackend"
	"github.com/jrsteele09/fleet-console/metrics"
	"github.com/jrsteele09/fleet-console/server"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail  = "root@fleet.test"
	tenantEmail = "owner@acme.test"
	opsEmail    = "ops@acme.test"
	password    = "Secret123"
)

type testFixture struct {
	backend  *fakebackend.Backend
	repo     *session.InMemoryRepo
	consoles *server.Consoles
	server   *httptest.Server
}

// setupTestFixture serves the console in front of a fake fleet API
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")

	backend := fakebackend.New(t)
	backend.AddAccount(fakebackend.Account{Email: adminEmail, Password: password, Role: "PLATFORM_ADMIN"})
	backend.AddAccount(fakebackend.Account{Email: tenantEmail, Password: password, Role: "TENANT_ADMIN", TenantID: "t1", TenantName: "Acme"})
	backend.AddAccount(fakebackend.Account{Email: opsEmail, Password: password, Role: "OPERATIONS_MANAGER", TenantID: "t1"})

	cfg, err := config.New()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := session.NewInMemoryRepo()
	consoles := server.NewConsoles(server.ConsoleConfig{
		APIURL:      backend.URL(),
		Timeout:     5 * time.Second,
		Repo:        repo,
		IdleTimeout: time.Hour,
		Metrics:     m,
	})
	ts := httptest.NewServer(server.New(cfg, consoles, server.WithMetrics(m, reg)))
	t.Cleanup(ts.Close)

	return &testFixture{backend: backend, repo: repo, consoles: consoles, server: ts}
}

// browser is a cookie-keeping client that does not follow redirects
func (f *testFixture) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *testFixture) do(t *testing.T, c *http.Client, method, path string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *testFixture) getJSON(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	return f.do(t, c, http.MethodGet, path, nil, http.Header{"Accept": {"application/json"}})
}

func (f *testFixture) sendJSON(t *testing.T, c *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return f.do(t, c, method, path, strings.NewReader(string(raw)), http.Header{"Content-Type": {"application/json"}})
}

func (f *testFixture) postForm(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	return f.do(t, c, http.MethodPost, path, strings.NewReader(form.Encode()), http.Header{"Content-Type": {"application/x-www-form-urlencoded"}})
}

func (f *testFixture) login(t *testing.T, c *http.Client, email string) {
	t.Helper()
	resp := f.sendJSON(t, c, http.MethodPost, server.RouteLogin, map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type validationBody struct {
	Error struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func consoleCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "fleetConsoleId" {
			return c
		}
	}
	return nil
}

func TestLogin_JSONLandsByRole(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		email   string
		landing string
	}{
		{adminEmail, server.RouteAdmin},
		{tenantEmail, server.RouteTenant},
		{opsEmail, server.RouteOpsManager},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			resp := f.sendJSON(t, f.browser(t), http.MethodPost, server.RouteLogin, map[string]string{"email": tt.email, "password": password})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			cookie := consoleCookie(resp)
			require.NotNil(t, cookie)
			require.True(t, cookie.HttpOnly)
			require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

			body := decode[map[string]string](t, resp)
			require.Equal(t, tt.landing, body["redirect"])
		})
	}
}

func TestSession_NeverExposesToken(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	resp := f.getJSON(t, b, server.RouteSession)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "accessToken")

	var view struct {
		IsAuthenticated bool   `json:"isAuthenticated"`
		Landing         string `json:"landing"`
		User            struct {
			Email  string `json:"email"`
			Role   string `json:"role"`
			Tenant struct {
				Name string `json:"name"`
			} `json:"tenant"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(raw, &view))
	require.True(t, view.IsAuthenticated)
	require.Equal(t, server.RouteTenant, view.Landing)
	require.Equal(t, tenantEmail, view.User.Email)
	require.Equal(t, "TENANT_ADMIN", view.User.Role)
	require.Equal(t, "Acme", view.User.Tenant.Name)
}

func TestLogin_FormFailureRedirectsBackWithMessage(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.postForm(t, f.browser(t), server.RouteLogin, url.Values{"email": {tenantEmail}, "password": {"wrong"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, server.RouteLogin, loc.Path)
	require.Equal(t, "Invalid email or password", loc.Query().Get("error"))
	require.Zero(t, f.backend.RefreshCalls.Load())
}

func TestLogin_FormSuccessRedirectsToLanding(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.postForm(t, f.browser(t), server.RouteLogin, url.Values{"email": {adminEmail}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteAdmin, resp.Header.Get("Location"))
}

func TestLogin_ValidationErrors(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.sendJSON(t, f.browser(t), http.MethodPost, server.RouteLogin, map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[validationBody](t, resp)
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Equal(t, "Invalid email address", body.Error.Fields["email"])
	require.Equal(t, "Password is required", body.Error.Fields["password"])
}

func TestGuards(t *testing.T) {
	f := setupTestFixture(t)
	anon := f.browser(t)
	tenant := f.browser(t)
	f.login(t, tenant, tenantEmail)

	tests := []struct {
		name     string
		client   *http.Client
		path     string
		status   int
		location string
	}{
		{"anonymous to admin", anon, server.RouteAdmin, http.StatusSeeOther, server.RouteLogin},
		{"anonymous to tenant data", anon, server.RouteTenantWarehouses, http.StatusSeeOther, server.RouteLogin},
		{"anonymous to login", anon, server.RouteLogin, http.StatusOK, ""},
		{"tenant admin to admin", tenant, server.RouteAdmin, http.StatusSeeOther, server.RouteTenant},
		{"tenant admin to ops", tenant, server.RouteOpsManager, http.StatusSeeOther, server.RouteTenant},
		{"tenant admin to tenant", tenant, server.RouteTenant, http.StatusOK, ""},
		{"tenant admin to login", tenant, server.RouteLogin, http.StatusSeeOther, server.RouteTenant},
		{"tenant admin to root", tenant, server.RouteHome, http.StatusSeeOther, server.RouteTenant},
		{"anonymous to root", anon, server.RouteHome, http.StatusSeeOther, server.RouteLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, tt.client, http.MethodGet, tt.path, nil, nil)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.location, resp.Header.Get("Location"))
		})
	}
}

func TestGuards_HTMXRedirect(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, f.browser(t), http.MethodGet, server.RouteAdmin, nil, http.Header{"Hx-Request": {"true"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("HX-Redirect"))
}

func TestAdminTenants_StatusFilter(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, adminEmail)

	f.backend.Handle("GET /tenants/pending", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{
				"data": []map[string]string{{"tenantId": "t9", "name": "Pending Co", "status": "PENDING"}},
				"meta": map[string]int{"total": 1, "page": 1, "limit": 10, "totalPages": 1},
			},
		})
	})

	resp := f.getJSON(t, b, server.RouteAdminTenants+"?status=pending&page=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Data []struct {
			TenantID string `json:"tenantId"`
		} `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Data, 1)
	require.Equal(t, "t9", page.Data[0].TenantID)
	require.Equal(t, 1, page.Meta.Total)

	calls := f.backend.Calls()
	require.Equal(t, "/tenants/pending", calls[len(calls)-1].Path)
	require.Contains(t, calls[len(calls)-1].Query, "page=2")

	resp = f.getJSON(t, b, server.RouteAdminTenants+"?status=bogus")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminVerifyTenant(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, adminEmail)

	resp := f.sendJSON(t, b, http.MethodPost, "/admin/tenants/t9/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Tenant verified", decode[map[string]string](t, resp)["message"])

	calls := f.backend.Calls()
	require.Equal(t, "/tenants/verify", calls[len(calls)-1].Path)
	require.JSONEq(t, `{"tenantId":"t9"}`, calls[len(calls)-1].Body)
}

func TestTenant_RefreshIsTransparent(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	f.backend.RevokeAll()

	resp := f.getJSON(t, b, server.RouteTenantWarehouses)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, f.backend.RefreshCalls.Load())
	require.Equal(t, 2, f.backend.CallsTo(http.MethodGet, "/warehouses"))
}

func TestTenant_RefreshFailureEndsSession(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	f.backend.RevokeAll()
	f.backend.RejectRefresh.Store(true)

	resp := f.getJSON(t, b, server.RouteTenantWarehouses)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, b, http.MethodGet, server.RouteTenant, nil, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
}

func TestTenant_TransferValidatedBeforeUpstream(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	resp := f.sendJSON(t, b, http.MethodPost, server.RouteTenantStockTransfer, map[string]any{
		"sourceWarehouseId":      "w1",
		"destinationWarehouseId": "w1",
		"inventoryItemId":        "i1",
		"quantity":               5,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, f.backend.CallsTo(http.MethodPost, "/stocks/transfer"))
}

func TestTenant_AddStock(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	f.backend.Handle("POST /stocks/add", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Stock added",
			"data":    map[string]any{"id": "s1", "warehouseId": "w1", "inventoryItemId": "i1", "quantity": 15},
		})
	})

	resp := f.sendJSON(t, b, http.MethodPost, server.RouteTenantStockAdd, map[string]any{
		"warehouseId":     "w1",
		"inventoryItemId": "i1",
		"quantity":        5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Quantity int `json:"quantity"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 15, body.Data.Quantity)
}

func TestTenant_UpstreamErrorPassedThrough(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	f.backend.Handle("GET /warehouses/missing", func(w http.ResponseWriter, r *http.Request) {
		fakebackend.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Warehouse not found")
	})

	resp := f.getJSON(t, b, "/tenant/warehouses/missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
	require.Equal(t, "Warehouse not found", body.Error.Message)
}

func TestTenant_InviteOpsManager(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	resp := f.sendJSON(t, b, http.MethodPost, server.RouteTenantOpsManagers, map[string]string{"name": "O", "email": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.sendJSON(t, b, http.MethodPost, server.RouteTenantOpsManagers, map[string]string{"name": "Olive", "email": "olive@acme.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, f.backend.CallsTo(http.MethodPost, "/users/operations-managers/invite"))
}

func TestLogout_EndsSession(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	resp := f.do(t, b, http.MethodPost, server.RouteLogout, nil, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
	require.EqualValues(t, 1, f.backend.LogoutCalls.Load())

	resp = f.do(t, b, http.MethodGet, server.RouteTenant, nil, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteLogin, resp.Header.Get("Location"))
}

func TestLogout_GetOnlyRendersConfirmation(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.login(t, b, tenantEmail)

	resp := f.do(t, b, http.MethodGet, server.RouteLogout, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		View string `json:"view"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Equal(t, "logout", page.View)
	require.EqualValues(t, 0, f.backend.LogoutCalls.Load())

	resp = f.do(t, b, http.MethodGet, server.RouteTenant, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsoles_AreIsolatedPerBrowser(t *testing.T) {
	f := setupTestFixture(t)
	alice := f.browser(t)
	bob := f.browser(t)

	f.login(t, alice, tenantEmail)
	f.do(t, bob, http.MethodGet, server.RouteLogin, nil, nil)

	require.Equal(t, http.StatusOK, f.do(t, alice, http.MethodGet, server.RouteTenant, nil, nil).StatusCode)
	require.Equal(t, http.StatusSeeOther, f.do(t, bob, http.MethodGet, server.RouteTenant, nil, nil).StatusCode)
	require.Equal(t, 2, f.consoles.Len())
}

func TestConsoles_RebuiltFromPersistedSession(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	resp := f.sendJSON(t, b, http.MethodPost, server.RouteLogin, map[string]string{"email": tenantEmail, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := consoleCookie(resp).Value

	f.consoles.Remove(id)
	require.Zero(t, f.consoles.Len())

	resp = f.do(t, b, http.MethodGet, server.RouteTenant, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, consoleCookie(resp), "a rebuilt console keeps its id")

	con, ok := f.consoles.Get(id)
	require.True(t, ok)
	require.True(t, con.Store.Get().IsAuthenticated)
}

func TestConsoles_UnknownIDGetsFreshConsole(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	u, err := url.Parse(f.server.URL)
	require.NoError(t, err)
	b.Jar.SetCookies(u, []*http.Cookie{{Name: "fleetConsoleId", Value: "chosen-by-attacker", Path: "/"}})

	resp := f.do(t, b, http.MethodGet, server.RouteLogin, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := consoleCookie(resp)
	require.NotNil(t, cookie)
	require.NotEqual(t, "chosen-by-attacker", cookie.Value)
}

func TestConsoles_Sweep(t *testing.T) {
	f := setupTestFixture(t)
	f.do(t, f.browser(t), http.MethodGet, server.RouteLogin, nil, nil)
	require.Equal(t, 1, f.consoles.Len())

	require.Zero(t, f.consoles.Sweep(time.Now()))
	require.Equal(t, 1, f.consoles.Sweep(time.Now().Add(2*time.Hour)))
	require.Zero(t, f.consoles.Len())
}

func TestConsoles_SweepPrunesExpiredSessionsOfEvictedConsoles(t *testing.T) {
	f := setupTestFixture(t)

	var keys []string
	for range 2 {
		resp := f.sendJSON(t, f.browser(t), http.MethodPost, server.RouteLogin, map[string]string{"email": tenantEmail, "password": password})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		keys = append(keys, server.StorageKey(consoleCookie(resp).Value))
	}

	// Tokens have expired but both consoles are still live
	require.Zero(t, f.consoles.Sweep(time.Now().Add(30*time.Minute)))
	for _, key := range keys {
		_, err := f.repo.Load(key)
		require.NoError(t, err)
	}

	require.Equal(t, 2, f.consoles.Sweep(time.Now().Add(2*time.Hour)))
	for _, key := range keys {
		_, err := f.repo.Load(key)
		require.ErrorIs(t, err, fleeterrors.ErrSessionNotFound)
	}
}

func TestRegisterTenant_ContinuesToOTP(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.sendJSON(t, f.browser(t), http.MethodPost, server.RouteRegisterTenant, map[string]string{
		"name":         "Acme Logistics",
		"contactEmail": "ops@acme.test",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/auth/verify-otp?email=ops%40acme.test&type=tenant", decode[map[string]string](t, resp)["redirect"])
}

func TestVerifyOTP_FormErrorKeepsQuery(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.postForm(t, f.browser(t), server.RouteVerifyOTP+"?email=ops%40acme.test&type=user", url.Values{"otp": {"12"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, server.RouteVerifyOTP, loc.Path)
	require.Equal(t, "ops@acme.test", loc.Query().Get("email"))
	require.Equal(t, "user", loc.Query().Get("type"))
	require.Equal(t, "OTP must be 6 characters", loc.Query().Get("error"))
}

func TestCORS(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	resp := f.do(t, b, http.MethodOptions, server.RouteLogin, nil, http.Header{
		"Origin":                        {"http://localhost:5173"},
		"Access-Control-Request-Method": {"POST"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = f.do(t, b, http.MethodGet, server.RouteLogin, nil, http.Header{"Origin": {"https://evil.test"}})
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	f.do(t, b, http.MethodGet, server.RouteAdmin, nil, nil)

	resp := f.getJSON(t, b, server.RouteHealth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode[map[string]any](t, resp)["status"])

	resp = f.do(t, b, http.MethodGet, server.RouteMetrics, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `fleet_console_guard_decisions_total{guard="protected",outcome="redirect"} 1`)
	require.Contains(t, string(raw), "fleet_console_active_consoles 1")
}
