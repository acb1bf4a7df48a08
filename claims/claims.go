// Package claims decodes fleet access tokens into the identity they carry.
//
// Decoding is best-effort and unverified: the fleet API is the only party that
// validates signatures. The console only needs the identity to pick a landing
// page and to gate routes.
package claims

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
)

const unknownTenantName = "Unknown Tenant"

// Claims is the identity extracted from an access token. Every field is optional.
type Claims struct {
	ID         string    `json:"id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Role       Role      `json:"role,omitempty"`
	TenantID   string    `json:"tenantId,omitempty"`
	TenantName string    `json:"tenantName,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitzero"`
}

// TenantRef identifies the tenant a user belongs to.
type TenantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tenant returns the user's tenant, or nil for platform users.
func (c Claims) Tenant() *TenantRef {
	if c.TenantID == "" {
		return nil
	}
	name := c.TenantName
	if name == "" {
		name = unknownTenantName
	}
	return &TenantRef{ID: c.TenantID, Name: name}
}

// Expired reports whether the token carried an expiry that has passed at now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// tokenClaims mirrors the payload the fleet API signs.
type tokenClaims struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	jwtlib.RegisteredClaims
}

// Decode extracts the claims from token without verifying its signature.
// It fails only when the token is structurally malformed.
func Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, fmt.Errorf("%w: %w", fleeterrors.ErrMalformedToken, fleeterrors.ErrEmptyToken)
	}

	tc := &tokenClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, tc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", fleeterrors.ErrMalformedToken, err)
	}

	c := Claims{
		ID:         tc.ID,
		Email:      tc.Email,
		Role:       ParseRole(tc.Role),
		TenantID:   tc.TenantID,
		TenantName: tc.TenantName,
	}
	if c.ID == "" {
		c.ID = tc.Subject
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
