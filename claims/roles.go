package claims

// Role is the access role carried in an access token.
// Unrecognised roles parse to RoleUnknown, which grants no elevated access.
type Role string

const (
	RoleUnknown Role = ""

	// Platform-level roles
	RolePlatformAdmin Role = "PLATFORM_ADMIN" // Manages tenants and platform users

	// Tenant-level roles
	RoleTenantAdmin       Role = "TENANT_ADMIN"       // Manages a tenant's warehouses, inventory and team
	RoleOperationsManager Role = "OPERATIONS_MANAGER" // Runs day-to-day operations for a tenant
	RoleWarehouseManager  Role = "WAREHOUSE_MANAGER"
	RoleDriver            Role = "DRIVER"
)

var knownRoles = map[Role]struct{}{
	RolePlatformAdmin:     {},
	RoleTenantAdmin:       {},
	RoleOperationsManager: {},
	RoleWarehouseManager:  {},
	RoleDriver:            {},
}

// ParseRole maps a raw claim value onto the closed role set.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := knownRoles[r]; ok {
		return r
	}
	return RoleUnknown
}

// Known reports whether r is one of the recognised roles.
func (r Role) Known() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "UNKNOWN"
	}
	return string(r)
}

// UnmarshalText normalises unknown roles instead of failing.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}
