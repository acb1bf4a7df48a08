package server

// Route path constants
// All console routes are defined here to ensure consistency and prevent typos
const (
	RouteHome    = "/"
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// Auth Routes - public guard
	RouteLogin          = "/auth/login"
	RouteRegisterTenant = "/auth/register-tenant"
	RouteRegisterAdmin  = "/auth/register-admin"
	RouteVerifyOTP      = "/auth/verify-otp"
	RouteResendOTP      = "/auth/resend-otp"
	RouteAcceptInvite   = "/auth/accept-invite"

	// Auth Routes - any session
	RouteLogout  = "/auth/logout"
	RouteSession = "/auth/session"

	// Platform admin routes
	RouteAdmin             = "/admin"
	RouteAdminTenants      = "/admin/tenants"
	RouteAdminTenantVerify = "/admin/tenants/{id}/verify"
	RouteAdminTenantReject = "/admin/tenants/{id}/reject"
	RouteAdminUsers        = "/admin/users"
	RouteAdminUserBlock    = "/admin/users/{id}/block"
	RouteAdminUserUnblock  = "/admin/users/{id}/unblock"

	// Tenant admin routes
	RouteTenant                  = "/tenant"
	RouteTenantWarehouses        = "/tenant/warehouses"
	RouteTenantWarehouse         = "/tenant/warehouses/{id}"
	RouteTenantWarehouseStatus   = "/tenant/warehouses/{id}/status"
	RouteTenantWarehouseStock    = "/tenant/warehouses/{id}/stock"
	RouteTenantItems             = "/tenant/inventory/items"
	RouteTenantItem              = "/tenant/inventory/items/{id}"
	RouteTenantItemStatus        = "/tenant/inventory/items/{id}/status"
	RouteTenantStocks            = "/tenant/inventory/stocks"
	RouteTenantStock             = "/tenant/inventory/stocks/{id}"
	RouteTenantStockAdd          = "/tenant/inventory/stocks/add"
	RouteTenantStockRemove       = "/tenant/inventory/stocks/remove"
	RouteTenantStockAdjust       = "/tenant/inventory/stocks/adjust"
	RouteTenantStockTransfer     = "/tenant/inventory/stocks/transfer"
	RouteTenantTransactions      = "/tenant/inventory/transactions"
	RouteTenantTransaction       = "/tenant/inventory/transactions/{id}"
	RouteTenantOpsManagers       = "/tenant/team/operations-managers"
	RouteTenantOpsManagerBlock   = "/tenant/team/operations-managers/{id}/block"
	RouteTenantOpsManagerUnblock = "/tenant/team/operations-managers/{id}/unblock"

	// Operations manager routes
	RouteOpsManager = "/ops-manager"
)
