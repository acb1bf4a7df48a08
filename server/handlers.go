package server

import (
	"net/http"
)

// IndexHandler is the console root. Signed-in users are sent to their
// landing page; everyone else to the login page.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		con := consoleFrom(r)
		con.Flow.Restore(r.Context())

		view := sessionOf(con)
		switch {
		case wantsJSON(r):
			writeJSON(w, http.StatusOK, view)
		case !view.IsAuthenticated:
			redirectSuccess(w, r, RouteLogin)
		case view.Landing != RouteHome:
			redirectSuccess(w, r, view.Landing)
		default:
			// Roles without a dashboard stay on the root
			writeJSON(w, http.StatusOK, view)
		}
	}
}

type healthBody struct {
	Status   string `json:"status"`
	Consoles int    `json:"consoles"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthBody{Status: "ok", Consoles: s.consoles.Len()})
	}
}
