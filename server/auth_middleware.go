package server

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/claims"
	"github.com/jrsteele09/fleet-console/guard"
)

// Guard names as they appear in metrics
const (
	guardPublic    = "public"
	guardProtected = "protected"
)

// RequirePublic admits only visitors without a session. Signed-in users are
// sent to the landing page of their role.
func (s *Server) RequirePublic() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			con := consoleFrom(r)
			d := guard.Public(con.Store.Get())
			s.metrics.RecordGuard(guardPublic, d.Admit)
			if !d.Admit {
				redirectSuccess(w, r, d.Redirect)
				return
			}
			next(w, r)
		}
	}
}

// RequireSession admits any signed-in user.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return s.RequireRole(claims.RoleUnknown)
}

// RequireRole admits only users holding role. RoleUnknown admits any
// signed-in user.
func (s *Server) RequireRole(role claims.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			con := consoleFrom(r)
			d := guard.Protected(con.Store.Get(), role)
			s.metrics.RecordGuard(guardProtected, d.Admit)
			if !d.Admit {
				redirectSuccess(w, r, d.Redirect)
				return
			}
			next(w, r)
		}
	}
}
