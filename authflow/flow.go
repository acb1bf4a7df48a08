// Package authflow runs the console's login, logout and registration flows on
// top of the session store and the fleet API.
package authflow

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/claims"
	"github.com/jrsteele09/fleet-console/fleetapi"
	"github.com/jrsteele09/fleet-console/guard"
	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/rs/zerolog/log"
)

// Fallback messages shown when the backend gives no reason.
const (
	MsgLoginFailed        = "Login failed. Please check your credentials."
	MsgRegistrationFailed = "Registration failed. Please try again."
	MsgInvalidOTP         = "Invalid OTP. Please try again."
	MsgResendOTPFailed    = "Failed to resend OTP."
	MsgAcceptInviteFailed = "Failed to accept invite."
)

// PathVerifyOTP is where a registration continues.
const PathVerifyOTP = "/auth/verify-otp"

// FlowError is a failed flow step. Message is safe to show to the user.
type FlowError struct {
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	return e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func failure(err error, fallback string) *FlowError {
	return &FlowError{Message: apiclient.UserMessage(err, fallback), Err: err}
}

// Flow is bound to one console: its store, client and auth service.
type Flow struct {
	client   *apiclient.Client
	store    *session.Store
	auth     *fleetapi.AuthService
	validate *validator.Validate
}

func New(client *apiclient.Client) *Flow {
	return &Flow{
		client:   client,
		store:    client.Store(),
		auth:     fleetapi.NewAuthService(client),
		validate: newValidator(),
	}
}

// Login authenticates and installs the session. It returns the landing
// route for the user's role.
func (f *Flow) Login(ctx context.Context, form LoginForm) (string, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := f.validateForm(form); err != nil {
		return "", err
	}

	token, err := f.auth.Login(ctx, fleetapi.LoginRequest{Email: form.Email, Password: form.Password})
	if err != nil {
		log.Info().Err(err).Str("email", form.Email).Msg("Login rejected")
		return "", failure(err, MsgLoginFailed)
	}
	if token == "" {
		return "", &FlowError{Message: MsgLoginFailed, Err: fleeterrors.ErrEmptyToken}
	}
	user, err := claims.Decode(token)
	if err != nil {
		log.Warn().Err(err).Str("email", form.Email).Msg("Login returned an unusable token")
		f.store.Clear()
		return "", &FlowError{Message: MsgLoginFailed, Err: err}
	}
	if err := f.store.Set(token, &user); err != nil {
		return "", &FlowError{Message: MsgLoginFailed, Err: err}
	}

	// The session may already have changed again; answer from the decoded token
	log.Info().Str("userId", user.ID).Str("role", user.Role.String()).Msg("User logged in")
	return guard.Landing(user.Role), nil
}

// Logout revokes the session on the backend if it can and always clears it
// locally. It returns the login route.
func (f *Flow) Logout(ctx context.Context) string {
	if err := f.auth.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("Logout failed")
	}
	f.store.Clear()
	return guard.PathLogin
}

// RegisterTenant submits a tenant and returns the OTP verification route.
func (f *Flow) RegisterTenant(ctx context.Context, form TenantRegisterForm) (string, error) {
	if err := f.validateForm(form); err != nil {
		return "", err
	}

	req := fleetapi.RegisterTenantRequest{
		Name:         form.Name,
		Industry:     form.Industry,
		ContactEmail: form.ContactEmail,
		ContactPhone: form.ContactPhone,
	}
	addr := fleetapi.Address{
		Line1:      form.AddressLine1,
		City:       form.City,
		State:      form.State,
		PostalCode: form.PostalCode,
		Country:    form.Country,
	}
	if addr != (fleetapi.Address{}) {
		req.Address = &addr
	}

	if _, err := f.auth.RegisterTenant(ctx, req); err != nil {
		return "", failure(err, MsgRegistrationFailed)
	}
	return verifyOTPPath(form.ContactEmail, fleetapi.OTPTenant), nil
}

// RegisterTenantAdmin registers a tenant's administrator and returns the OTP
// verification route.
func (f *Flow) RegisterTenantAdmin(ctx context.Context, form TenantAdminRegisterForm) (string, error) {
	if err := f.validateForm(form); err != nil {
		return "", err
	}

	_, err := f.auth.RegisterTenantAdmin(ctx, fleetapi.RegisterAdminRequest{
		TenantID: form.TenantID,
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		return "", failure(err, MsgRegistrationFailed)
	}
	return verifyOTPPath(form.Email, fleetapi.OTPUser), nil
}

// VerifyOTP confirms a registration and returns the login route.
func (f *Flow) VerifyOTP(ctx context.Context, form VerifyOTPForm) (string, error) {
	if form.Type == "" {
		form.Type = string(fleetapi.OTPTenant)
	}
	if err := f.validateForm(form); err != nil {
		return "", err
	}

	_, err := f.auth.VerifyOTP(ctx, fleetapi.VerifyOTPRequest{
		Email: form.Email,
		OTP:   form.OTP,
		Type:  fleetapi.OTPType(form.Type),
	})
	if err != nil {
		return "", failure(err, MsgInvalidOTP)
	}
	return guard.PathLogin, nil
}

func (f *Flow) ResendOTP(ctx context.Context, form ResendOTPForm) error {
	if err := f.validateForm(form); err != nil {
		return err
	}
	if err := f.auth.ResendOTP(ctx, form.Email); err != nil {
		return failure(err, MsgResendOTPFailed)
	}
	return nil
}

// AcceptInvite sets an invited user's password and returns the login route.
func (f *Flow) AcceptInvite(ctx context.Context, form AcceptInviteForm) (string, error) {
	if err := f.validateForm(form); err != nil {
		return "", err
	}
	err := f.auth.AcceptInvite(ctx, fleetapi.AcceptInviteRequest{Token: form.Token, Password: form.Password})
	if err != nil {
		return "", failure(err, MsgAcceptInviteFailed)
	}
	return guard.PathLogin, nil
}

// Validate checks any of the package's forms.
func (f *Flow) Validate(form any) error {
	return f.validateForm(form)
}

// Restore tries one silent refresh when the console has no session, so a
// browser holding a valid refresh cookie is signed straight back in.
func (f *Flow) Restore(ctx context.Context) bool {
	if f.store.Get().IsAuthenticated {
		return true
	}
	if _, err := f.client.Refresh(ctx); err != nil {
		log.Debug().Err(err).Msg("No session to restore")
		return false
	}
	return true
}

func verifyOTPPath(email string, t fleetapi.OTPType) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("type", string(t))
	return PathVerifyOTP + "?" + q.Encode()
}
