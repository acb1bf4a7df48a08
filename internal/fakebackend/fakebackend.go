// Package fakebackend is an in-process stand-in for the fleet REST API.
// It issues real HS256 tokens, keeps the refresh artifact in a cookie and
// rejects stale bearer tokens with 401 so that refresh behaviour can be
// exercised end to end.
package fakebackend

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RefreshCookieName = "refreshToken"
	signingSecret     = "fake-backend-secret"
)

// publicPaths answer without a bearer token.
var publicPaths = map[string]bool{
	"/tenants/register":    true,
	"/auth/register-admin": true,
	"/auth/verify-otp":     true,
	"/auth/resend-otp":     true,
	"/auth/accept-invite":  true,
}

// Account is a user the fake backend can log in.
type Account struct {
	Email      string
	Password   string
	ID         string
	Role       string
	TenantID   string
	TenantName string
}

// Call records a request that reached a routed endpoint.
type Call struct {
	Method string
	Path   string
	Query  string
	Token  string
	Body   string
}

// Backend is a fake fleet API served by httptest.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	accounts  map[string]Account // email -> account
	tokens    map[string]string  // access token -> email
	refreshes map[string]string  // refresh cookie -> email
	routes    map[string]http.HandlerFunc
	calls     []Call
	onRefresh func()

	// RejectRefresh makes /auth/refresh answer 401.
	RejectRefresh atomic.Bool
	// RejectAll makes every protected route answer 401 regardless of token.
	RejectAll atomic.Bool
	// FailLogout makes /auth/logout answer 500.
	FailLogout atomic.Bool
	// RefreshDelay holds /auth/refresh before it answers.
	RefreshDelay atomic.Int64

	RefreshCalls atomic.Int32
	LogoutCalls  atomic.Int32
}

// New starts a fake backend that is closed with the test.
func New(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		accounts:  make(map[string]Account),
		tokens:    make(map[string]string),
		refreshes: make(map[string]string),
		routes:    make(map[string]http.HandlerFunc),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the base URL of the fake API.
func (b *Backend) URL() string {
	return b.Server.URL
}

// AddAccount registers a user that can log in.
func (b *Backend) AddAccount(a Account) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[a.Email] = a
}

// Handle registers a protected route. Pattern is "METHOD /path".
func (b *Backend) Handle(pattern string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[pattern] = h
}

// OnRefresh runs fn at the start of every /auth/refresh call.
func (b *Backend) OnRefresh(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRefresh = fn
}

// Issue mints a valid access token for a registered account.
func (b *Backend) Issue(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

// Revoke invalidates a previously issued access token.
func (b *Backend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// RevokeAll invalidates every issued access token.
func (b *Backend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

// Calls returns the protected requests seen so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo counts protected requests matching method and path.
func (b *Backend) CallsTo(method, path string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) issueLocked(email string) string {
	a := b.accounts[email]
	token := Token(jwtlib.MapClaims{
		"id":         a.ID,
		"email":      a.Email,
		"role":       a.Role,
		"tenantId":   a.TenantID,
		"tenantName": a.TenantName,
	})
	b.tokens[token] = email
	return token
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		b.login(w, r)
	case "POST /auth/refresh":
		b.refresh(w, r)
	case "POST /auth/logout":
		b.logout(w, r)
	default:
		b.protected(w, r)
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}

	b.mu.Lock()
	a, ok := b.accounts[body.Email]
	if !ok || a.Password != body.Password {
		b.mu.Unlock()
		WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	token := b.issueLocked(a.Email)
	refresh := uuid.NewString()
	b.refreshes[refresh] = a.Email
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: refresh, Path: "/", HttpOnly: true})
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"data":    map[string]string{"accessToken": token},
	})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.RefreshCalls.Add(1)
	b.mu.Lock()
	hook := b.onRefresh
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	if d := b.RefreshDelay.Load(); d > 0 {
		time.Sleep(time.Duration(d))
	}
	if b.RejectRefresh.Load() {
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token expired")
		return
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing refresh token")
		return
	}

	b.mu.Lock()
	email, ok := b.refreshes[cookie.Value]
	if !ok {
		b.mu.Unlock()
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid refresh token")
		return
	}
	token := b.issueLocked(email)
	b.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Token refreshed",
		"tokens":  map[string]string{"accessToken": token, "refreshToken": cookie.Value},
	})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	b.LogoutCalls.Add(1)
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		b.mu.Lock()
		delete(b.refreshes, cookie.Value)
		b.mu.Unlock()
	}
	if b.FailLogout.Load() {
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "logout failed")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: "/", MaxAge: -1})
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (b *Backend) protected(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.calls = append(b.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Token: token, Body: string(body)})
	_, valid := b.tokens[token]
	h, routed := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if publicPaths[r.URL.Path] {
		valid = true
	}
	if !valid || b.RejectAll.Load() {
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	if !routed {
		WriteJSON(w, http.StatusOK, map[string]any{"message": "ok", "data": map[string]string{"path": r.URL.Path}})
		return
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	h(w, r)
}

// Token signs claims with the fake backend's key. A unique jti keeps every
// token distinct even when claims repeat.
func Token(claims jwtlib.MapClaims) string {
	c := jwtlib.MapClaims{
		"jti": uuid.NewString(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(15 * time.Minute).Unix(),
	}
	for k, v := range claims {
		c[k] = v
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString([]byte(signingSecret))
	if err != nil {
		panic("fakebackend: signing token: " + err.Error())
	}
	return signed
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the fleet API error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}
