package server

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/claims"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.RegisterRouteHandler("GET /{$}", s.page(s.IndexHandler()))
	s.RegisterRouteHandler("GET "+RouteSession, s.page(s.SessionHandler()))
	s.RegisterRouteHandler("OPTIONS /", s.page(http.NotFound))

	// AUTH - anonymous visitors only
	public := s.RequirePublic()
	s.RegisterRouteHandler("GET "+RouteLogin, s.page(s.PageHandler("login"), public))
	s.RegisterRouteHandler("POST "+RouteLogin, s.page(s.LoginSubmissionHandler(), public))
	s.RegisterRouteHandler("GET "+RouteRegisterTenant, s.page(s.PageHandler("register-tenant"), public))
	s.RegisterRouteHandler("POST "+RouteRegisterTenant, s.page(s.RegisterTenantHandler(), public))
	s.RegisterRouteHandler("GET "+RouteRegisterAdmin, s.page(s.PageHandler("register-admin", "tenantId"), public))
	s.RegisterRouteHandler("POST "+RouteRegisterAdmin, s.page(s.RegisterAdminHandler(), public))
	s.RegisterRouteHandler("GET "+RouteVerifyOTP, s.page(s.PageHandler("verify-otp", "email", "type"), public))
	s.RegisterRouteHandler("POST "+RouteVerifyOTP, s.page(s.VerifyOTPHandler(), public))
	s.RegisterRouteHandler("POST "+RouteResendOTP, s.page(s.ResendOTPHandler(), public))
	s.RegisterRouteHandler("GET "+RouteAcceptInvite, s.page(s.PageHandler("accept-invite", "token"), public))
	s.RegisterRouteHandler("POST "+RouteAcceptInvite, s.page(s.AcceptInviteHandler(), public))

	// Logout works with or without a session. GET only shows the confirmation
	// so that a link or prefetch cannot end a session.
	s.RegisterRouteHandler("GET "+RouteLogout, s.page(s.PageHandler("logout")))
	s.RegisterRouteHandler("POST "+RouteLogout, s.page(s.LogoutHandler()))

	// PLATFORM ADMIN
	admin := s.RequireRole(claims.RolePlatformAdmin)
	s.RegisterRouteHandler("GET "+RouteAdmin, s.page(s.PageHandler("admin-dashboard"), admin))
	s.RegisterRouteHandler("GET "+RouteAdminTenants, s.page(s.AdminTenantsHandler(), admin))
	s.RegisterRouteHandler("POST "+RouteAdminTenantVerify, s.page(s.AdminVerifyTenantHandler(), admin))
	s.RegisterRouteHandler("POST "+RouteAdminTenantReject, s.page(s.AdminRejectTenantHandler(), admin))
	s.RegisterRouteHandler("GET "+RouteAdminUsers, s.page(s.AdminUsersHandler(), admin))
	s.RegisterRouteHandler("POST "+RouteAdminUserBlock, s.page(s.AdminBlockUserHandler(), admin))
	s.RegisterRouteHandler("POST "+RouteAdminUserUnblock, s.page(s.AdminUnblockUserHandler(), admin))

	// TENANT ADMIN
	tenant := s.RequireRole(claims.RoleTenantAdmin)
	s.RegisterRouteHandler("GET "+RouteTenant, s.page(s.PageHandler("tenant-dashboard"), tenant))

	s.RegisterRouteHandler("GET "+RouteTenantWarehouses, s.page(s.WarehousesHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantWarehouses, s.page(s.CreateWarehouseHandler(), tenant))
	s.RegisterRouteHandler("GET "+RouteTenantWarehouse, s.page(s.WarehouseHandler(), tenant))
	s.RegisterRouteHandler("PUT "+RouteTenantWarehouse, s.page(s.UpdateWarehouseHandler(), tenant))
	s.RegisterRouteHandler("DELETE "+RouteTenantWarehouse, s.page(s.ArchiveWarehouseHandler(), tenant))
	s.RegisterRouteHandler("PATCH "+RouteTenantWarehouseStatus, s.page(s.UpdateWarehouseStatusHandler(), tenant))
	s.RegisterRouteHandler("GET "+RouteTenantWarehouseStock, s.page(s.WarehouseStockHandler(), tenant))

	s.RegisterRouteHandler("GET "+RouteTenantItems, s.page(s.ItemsHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantItems, s.page(s.CreateItemHandler(), tenant))
	s.RegisterRouteHandler("GET "+RouteTenantItem, s.page(s.ItemHandler(), tenant))
	s.RegisterRouteHandler("PUT "+RouteTenantItem, s.page(s.UpdateItemHandler(), tenant))
	s.RegisterRouteHandler("DELETE "+RouteTenantItem, s.page(s.ArchiveItemHandler(), tenant))
	s.RegisterRouteHandler("PATCH "+RouteTenantItemStatus, s.page(s.UpdateItemStatusHandler(), tenant))

	s.RegisterRouteHandler("GET "+RouteTenantStocks, s.page(s.StocksHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantStocks, s.page(s.CreateStockHandler(), tenant))
	s.RegisterRouteHandler("GET "+RouteTenantStock, s.page(s.StockHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantStockAdd, s.page(s.AddStockHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantStockRemove, s.page(s.RemoveStockHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantStockAdjust, s.page(s.AdjustStockHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantStockTransfer, s.page(s.TransferStockHandler(), tenant))

	s.RegisterRouteHandler("GET "+RouteTenantTransactions, s.page(s.TransactionsHandler(), tenant))
	s.RegisterRouteHandler("GET "+RouteTenantTransaction, s.page(s.TransactionHandler(), tenant))

	s.RegisterRouteHandler("GET "+RouteTenantOpsManagers, s.page(s.OpsManagersHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantOpsManagers, s.page(s.InviteOpsManagerHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantOpsManagerBlock, s.page(s.BlockOpsManagerHandler(), tenant))
	s.RegisterRouteHandler("POST "+RouteTenantOpsManagerUnblock, s.page(s.UnblockOpsManagerHandler(), tenant))

	// OPERATIONS MANAGER
	ops := s.RequireRole(claims.RoleOperationsManager)
	s.RegisterRouteHandler("GET "+RouteOpsManager, s.page(s.PageHandler("ops-manager-dashboard"), ops))
}

// page wraps a console route in the console middleware and the given guards.
func (s *Server) page(h http.HandlerFunc, guards ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	return ChainMiddleware(h, s.ConsoleMiddleware(guards...)...)
}
