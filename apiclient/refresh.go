package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/metrics"
	"github.com/rs/zerolog/log"
)

const refreshKey = "refresh"

type refreshResponse struct {
	Message string `json:"message"`
	Tokens  struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
	Data struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

func (r refreshResponse) accessToken() string {
	if r.Tokens.AccessToken != "" {
		return r.Tokens.AccessToken
	}
	return r.Data.AccessToken
}

// Refresh obtains a new access token using the refresh cookie and installs it
// in the store. Concurrent callers share a single call. A session change
// while the call is in flight wins over its result.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx, c.store.Generation())
}

func (c *Client) refresh(ctx context.Context, gen uint64) (string, error) {
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx), gen)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doRefresh(ctx context.Context, gen uint64) (string, error) {
	start := time.Now()

	var resp refreshResponse
	err := c.send(ctx, &Request{Method: http.MethodPost, Path: c.refreshPath}, nil, "", false, &resp)
	if err == nil && resp.accessToken() == "" {
		err = fmt.Errorf("%w: response carried no access token", fleeterrors.ErrMalformedToken)
	}
	if err != nil {
		c.store.ClearIfGeneration(gen)
		c.metrics.RecordRefresh(metrics.RefreshFailure, time.Since(start))
		log.Warn().Err(err).Msg("Silent refresh failed, session cleared")
		return "", fmt.Errorf("%w: %w", fleeterrors.ErrRefreshFailed, err)
	}

	token := resp.accessToken()
	applied, err := c.store.SetIfGeneration(gen, token, nil)
	if err != nil {
		c.metrics.RecordRefresh(metrics.RefreshFailure, time.Since(start))
		log.Warn().Err(err).Msg("Refreshed token could not be decoded")
		return "", fmt.Errorf("%w: %w", fleeterrors.ErrRefreshFailed, err)
	}
	if !applied {
		c.metrics.RecordRefresh(metrics.RefreshSuperseded, time.Since(start))
		log.Info().Msg("Session changed during refresh, discarding new token")
		return "", fleeterrors.ErrSessionSuperseded
	}

	c.metrics.RecordRefresh(metrics.RefreshSuccess, time.Since(start))
	log.Debug().Dur("elapsed", time.Since(start)).Msg("Access token refreshed")
	return token, nil
}
