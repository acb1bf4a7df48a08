// Package apiclient is the single HTTP client the console uses to talk to the
// fleet API. It attaches the current access token to every request and turns
// an expired token into one silent refresh and one replay.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/metrics"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultRefreshPath = "/auth/refresh"

	maxErrorBody = 1 << 20
)

// Request describes one call to the fleet API. Body, when set, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
	// NoRefresh returns a 401 as is. Used by credential endpoints where a
	// 401 means bad input rather than an expired token.
	NoRefresh bool
}

// Client is the HTTP Client Wrapper. It reads the session store on every send
// and never caches the token.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	store       *session.Store
	metrics     *metrics.Metrics
	refreshPath string

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. A client without a cookie
// jar gets one, since the refresh credential travels as a cookie.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMetrics records refresh and upstream metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRefreshPath overrides the refresh endpoint path.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// New creates a client for the fleet API at baseURL bound to store.
func New(baseURL string, store *session.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid api url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:     u,
		http:        &http.Client{Timeout: DefaultTimeout},
		store:       store,
		refreshPath: DefaultRefreshPath,
	}
	for _, o := range opts {
		o(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create cookie jar")
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Store returns the session store the client reads tokens from.
func (c *Client) Store() *session.Store {
	return c.store
}

// Do sends req and decodes a 2xx JSON body into out (which may be nil).
// A 401 triggers at most one refresh and one replay of req; the refresh
// endpoint itself is never retried.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	payload, err := encodeBody(req.Body)
	if err != nil {
		return err
	}

	retried := false
	for {
		snap, gen := c.store.View()
		err := c.send(ctx, req, payload, snap.AccessToken, retried, out)
		if !fleeterrors.Is(err, fleeterrors.ErrUnauthorized) || req.NoRefresh {
			return err
		}

		if retried || c.isRefreshPath(req.Path) {
			c.store.ClearIfGeneration(gen)
			return err
		}
		retried = true

		current, currentGen := c.store.View()
		switch {
		case current.AccessToken != snap.AccessToken && !current.IsAuthenticated:
			// Logged out while the request was in flight
			return err
		case current.AccessToken != snap.AccessToken:
			log.Debug().Str("path", req.Path).Msg("Token already refreshed, replaying")
		default:
			if _, rerr := c.refresh(ctx, currentGen); rerr != nil {
				log.Debug().Err(rerr).Str("path", req.Path).Msg("Refresh failed, surfacing original error")
				return err
			}
		}
		c.metrics.RecordReplay()
	}
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends a POST request with body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put sends a PUT request with body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch sends a PATCH request with body as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) isRefreshPath(path string) bool {
	return path == c.refreshPath
}

func (c *Client) send(ctx context.Context, req *Request, payload []byte, token string, replay bool, out any) error {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s %s", req.Method, req.Path)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordUpstream(req.Method, 0)
		return errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream(req.Method, resp.StatusCode)

	log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Bool("replay", replay).
		Msg("fleet api")

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}
	return data, nil
}
