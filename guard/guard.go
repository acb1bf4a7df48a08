// Package guard decides whether a session may see a route. Guards are pure
// projections of a session snapshot: they never mutate the session and never
// call the network.
package guard

import (
	"github.com/jrsteele09/fleet-console/claims"
	"github.com/jrsteele09/fleet-console/session"
)

// Route roots
const (
	PathHome       = "/"
	PathLogin      = "/auth/login"
	PathAdmin      = "/admin"
	PathTenant     = "/tenant"
	PathOpsManager = "/ops-manager"
)

// Decision is the outcome of a guard. When Admit is false, Redirect is set.
type Decision struct {
	Admit    bool   `json:"admit"`
	Redirect string `json:"redirect,omitempty"`
}

var landings = map[claims.Role]string{
	claims.RolePlatformAdmin:     PathAdmin,
	claims.RoleTenantAdmin:       PathTenant,
	claims.RoleOperationsManager: PathOpsManager,
}

// Landing returns the default route for role.
func Landing(role claims.Role) string {
	if path, ok := landings[role]; ok {
		return path
	}
	return PathHome
}

// Public guards routes only an anonymous visitor should see.
func Public(s session.Snapshot) Decision {
	if s.IsAuthenticated {
		return redirect(Landing(s.Role()))
	}
	return admit()
}

// Protected guards routes that need a session and, when required is not
// RoleUnknown, exactly that role.
func Protected(s session.Snapshot, required claims.Role) Decision {
	if !s.IsAuthenticated {
		return redirect(PathLogin)
	}
	if required != claims.RoleUnknown && s.Role() != required {
		return redirect(Landing(s.Role()))
	}
	return admit()
}

func admit() Decision {
	return Decision{Admit: true}
}

func redirect(path string) Decision {
	return Decision{Redirect: path}
}
