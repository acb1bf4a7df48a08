package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/fleet-console/authflow"
	"github.com/jrsteele09/fleet-console/claims"
	"github.com/jrsteele09/fleet-console/guard"
)

// pageView describes the view a browser should render for a page route.
type pageView struct {
	View  string            `json:"view"`
	Error string            `json:"error,omitempty"`
	Query map[string]string `json:"query,omitempty"`
	User  *userView         `json:"user,omitempty"`
}

// sessionView is the session as the browser may see it. The access token
// never leaves the console.
type sessionView struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	User            *userView `json:"user"`
	Landing         string    `json:"landing,omitempty"`
}

type userView struct {
	ID     string            `json:"id,omitempty"`
	Email  string            `json:"email,omitempty"`
	Role   claims.Role       `json:"role,omitempty"`
	Tenant *claims.TenantRef `json:"tenant,omitempty"`
}

func sessionOf(con *Console) sessionView {
	snap := con.Store.Get()
	if !snap.IsAuthenticated || snap.User == nil {
		return sessionView{}
	}
	return sessionView{
		IsAuthenticated: true,
		User:            toUserView(snap.User),
		Landing:         guard.Landing(snap.Role()),
	}
}

func toUserView(c *claims.Claims) *userView {
	if c == nil {
		return nil
	}
	return &userView{ID: c.ID, Email: c.Email, Role: c.Role, Tenant: c.Tenant()}
}

// PageHandler describes a page, echoing the listed query keys and any
// error carried back by a failed form post.
func (s *Server) PageHandler(view string, queryKeys ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := pageView{View: view, Error: q.Get("error")}
		for _, key := range queryKeys {
			if v := q.Get(key); v != "" {
				if page.Query == nil {
					page.Query = make(map[string]string)
				}
				page.Query[key] = v
			}
		}
		if con := consoleFrom(r); con != nil {
			page.User = sessionOf(con).User
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// SessionHandler reports the current session, first trying a silent restore
// when there is none.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		con := consoleFrom(r)
		con.Flow.Restore(r.Context())
		writeJSON(w, http.StatusOK, sessionOf(con))
	}
}

func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form authflow.LoginForm
		if err := decodeForm(r, &form); err != nil {
			badRequest(w, err)
			return
		}

		next, err := consoleFrom(r).Flow.Login(r.Context(), form)
		if err != nil {
			respondFlowError(w, r, RouteLogin, err)
			return
		}
		respondNext(w, r, next, "Login successful")
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := consoleFrom(r).Flow.Logout(r.Context())
		respondNext(w, r, next, "Logged out")
	}
}

func (s *Server) RegisterTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form authflow.TenantRegisterForm
		if err := decodeForm(r, &form); err != nil {
			badRequest(w, err)
			return
		}

		next, err := consoleFrom(r).Flow.RegisterTenant(r.Context(), form)
		if err != nil {
			respondFlowError(w, r, RouteRegisterTenant, err)
			return
		}
		respondNext(w, r, next, "Registration submitted")
	}
}

func (s *Server) RegisterAdminHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form authflow.TenantAdminRegisterForm
		if err := decodeForm(r, &form); err != nil {
			badRequest(w, err)
			return
		}
		// The invitation link carries the tenant
		if form.TenantID == "" {
			form.TenantID = r.URL.Query().Get("tenantId")
		}

		next, err := consoleFrom(r).Flow.RegisterTenantAdmin(r.Context(), form)
		if err != nil {
			respondFlowError(w, r, formPath(RouteRegisterAdmin, "tenantId", form.TenantID), err)
			return
		}
		respondNext(w, r, next, "Registration submitted")
	}
}

func (s *Server) VerifyOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form authflow.VerifyOTPForm
		if err := decodeForm(r, &form); err != nil {
			badRequest(w, err)
			return
		}
		q := r.URL.Query()
		if form.Email == "" {
			form.Email = q.Get("email")
		}
		if form.Type == "" {
			form.Type = q.Get("type")
		}

		next, err := consoleFrom(r).Flow.VerifyOTP(r.Context(), form)
		if err != nil {
			respondFlowError(w, r, formPath(RouteVerifyOTP, "email", form.Email, "type", form.Type), err)
			return
		}
		respondNext(w, r, next, "Verification successful")
	}
}

func (s *Server) ResendOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form authflow.ResendOTPForm
		if err := decodeForm(r, &form); err != nil {
			badRequest(w, err)
			return
		}

		back := formPath(RouteVerifyOTP, "email", form.Email, "type", r.URL.Query().Get("type"))
		if err := consoleFrom(r).Flow.ResendOTP(r.Context(), form); err != nil {
			respondFlowError(w, r, back, err)
			return
		}
		respondNext(w, r, back, "OTP sent")
	}
}

func (s *Server) AcceptInviteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form authflow.AcceptInviteForm
		if err := decodeForm(r, &form); err != nil {
			badRequest(w, err)
			return
		}
		if form.Token == "" {
			form.Token = r.URL.Query().Get("token")
		}

		next, err := consoleFrom(r).Flow.AcceptInvite(r.Context(), form)
		if err != nil {
			respondFlowError(w, r, formPath(RouteAcceptInvite, "token", form.Token), err)
			return
		}
		respondNext(w, r, next, "Invite accepted")
	}
}

// formPath rebuilds a form route with the query values it was opened with.
// kv holds alternating keys and values; empty values are skipped.
func formPath(path string, kv ...string) string {
	q := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q = append(q, url.QueryEscape(kv[i])+"="+url.QueryEscape(kv[i+1]))
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + strings.Join(q, "&")
}
