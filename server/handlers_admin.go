package server

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/fleetapi"
)

func (s *Server) AdminTenantsHandler() http.HandlerFunc {
	list := listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.Tenant], error) {
		q := r.URL.Query()
		return con.Admin.ListTenants(r.Context(), fleetapi.TenantFilter(q.Get("status")), fleetapi.ParsePageParams(q))
	})
	return func(w http.ResponseWriter, r *http.Request) {
		switch fleetapi.TenantFilter(r.URL.Query().Get("status")) {
		case fleetapi.TenantsAll, fleetapi.TenantsPending, fleetapi.TenantsRejected:
			list(w, r)
		default:
			invalidQuery(w, "status")
		}
	}
}

func (s *Server) AdminVerifyTenantHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Admin.VerifyTenant(r.Context(), r.PathValue("id"))
	}, "Tenant verified")
}

func (s *Server) AdminRejectTenantHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Admin.RejectTenant(r.Context(), r.PathValue("id"))
	}, "Tenant rejected")
}

func (s *Server) AdminUsersHandler() http.HandlerFunc {
	return listHandler(func(con *Console, r *http.Request) (fleetapi.Page[fleetapi.User], error) {
		return con.Admin.ListUsers(r.Context(), userFilter(r))
	})
}

func (s *Server) AdminBlockUserHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Admin.BlockUser(r.Context(), r.PathValue("id"))
	}, "User blocked")
}

func (s *Server) AdminUnblockUserHandler() http.HandlerFunc {
	return actionHandler(func(con *Console, r *http.Request) error {
		return con.Admin.UnblockUser(r.Context(), r.PathValue("id"))
	}, "User unblocked")
}

func userFilter(r *http.Request) fleetapi.UserFilter {
	q := r.URL.Query()
	return fleetapi.UserFilter{PageParams: fleetapi.ParsePageParams(q), Status: q.Get("status")}
}
