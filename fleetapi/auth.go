package fleetapi

import (
	"context"
	"net/http"

	"github.com/jrsteele09/fleet-console/apiclient"
)

// Auth endpoints
const (
	PathLogin          = "/auth/login"
	PathLogout         = "/auth/logout"
	PathRegisterTenant = "/tenants/register"
	PathRegisterAdmin  = "/auth/register-admin"
	PathVerifyOTP      = "/auth/verify-otp"
	PathResendOTP      = "/auth/resend-otp"
	PathAcceptInvite   = "/auth/accept-invite"
)

// OTPType says which kind of account an OTP confirms.
type OTPType string

const (
	OTPTenant OTPType = "tenant"
	OTPUser   OTPType = "user"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterTenantRequest struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry,omitempty"`
	ContactEmail string   `json:"contactEmail"`
	ContactPhone string   `json:"contactPhone,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

type RegisterAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId,omitempty"`
}

type VerifyOTPRequest struct {
	Email string  `json:"email"`
	OTP   string  `json:"otp"`
	Type  OTPType `json:"type"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AuthService wraps the authentication endpoints. None of them trigger a
// silent refresh on 401.
type AuthService struct {
	client *apiclient.Client
}

func NewAuthService(client *apiclient.Client) *AuthService {
	return &AuthService{client: client}
}

// Login exchanges credentials for an access token. The refresh credential is
// kept by the client's cookie jar.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	var resp Envelope[struct {
		AccessToken string `json:"accessToken"`
	}]
	if err := s.post(ctx, PathLogin, req, &resp); err != nil {
		return "", err
	}
	return resp.Data.AccessToken, nil
}

// RegisterTenant submits a new organisation for verification.
func (s *AuthService) RegisterTenant(ctx context.Context, req RegisterTenantRequest) (string, error) {
	var resp Envelope[any]
	err := s.post(ctx, PathRegisterTenant, req, &resp)
	return resp.Message, err
}

// RegisterTenantAdmin creates the first administrator of a tenant.
func (s *AuthService) RegisterTenantAdmin(ctx context.Context, req RegisterAdminRequest) (string, error) {
	var resp Envelope[any]
	err := s.post(ctx, PathRegisterAdmin, req, &resp)
	return resp.Message, err
}

func (s *AuthService) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (string, error) {
	var resp Envelope[any]
	err := s.post(ctx, PathVerifyOTP, req, &resp)
	return resp.Message, err
}

func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	return s.post(ctx, PathResendOTP, map[string]string{"email": email}, nil)
}

func (s *AuthService) AcceptInvite(ctx context.Context, req AcceptInviteRequest) error {
	return s.post(ctx, PathAcceptInvite, req, nil)
}

// Logout revokes the refresh credential on the backend.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.post(ctx, PathLogout, nil, nil)
}

func (s *AuthService) post(ctx context.Context, path string, body, out any) error {
	return s.client.Do(ctx, &apiclient.Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		NoRefresh: true,
	}, out)
}
