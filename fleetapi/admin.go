package fleetapi

import (
	"context"
	"net/url"

	"github.com/jrsteele09/fleet-console/apiclient"
)

// TenantFilter selects which tenants ListTenants returns.
type TenantFilter string

const (
	TenantsAll      TenantFilter = ""
	TenantsPending  TenantFilter = "pending"
	TenantsRejected TenantFilter = "rejected"
)

// UserFilter narrows a user listing.
type UserFilter struct {
	PageParams
	Status string `json:"status,omitempty"`
}

func (f UserFilter) values() url.Values {
	v := f.PageParams.values()
	setIf(v, "status", f.Status)
	return v
}

// InviteRequest invites a new team member by email.
type InviteRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AdminService covers platform administration and tenant team management.
type AdminService struct {
	client *apiclient.Client
}

func NewAdminService(client *apiclient.Client) *AdminService {
	return &AdminService{client: client}
}

// ListTenants lists tenants, optionally only pending or rejected ones.
func (s *AdminService) ListTenants(ctx context.Context, filter TenantFilter, params PageParams) (Page[Tenant], error) {
	path := "/tenants"
	if filter != TenantsAll {
		path += "/" + string(filter)
	}
	return getPage[Tenant](ctx, s.client, path, params.values())
}

// VerifyTenant approves a pending tenant.
func (s *AdminService) VerifyTenant(ctx context.Context, tenantID string) error {
	return s.client.Post(ctx, "/tenants/verify", map[string]string{"tenantId": tenantID}, nil)
}

// RejectTenant rejects a pending tenant.
func (s *AdminService) RejectTenant(ctx context.Context, tenantID string) error {
	return s.client.Post(ctx, "/tenants/reject", map[string]string{"tenantId": tenantID}, nil)
}

func (s *AdminService) ListUsers(ctx context.Context, filter UserFilter) (Page[User], error) {
	return getPage[User](ctx, s.client, "/users", filter.values())
}

func (s *AdminService) BlockUser(ctx context.Context, userID string) error {
	return s.client.Post(ctx, "/users/block", map[string]string{"userId": userID}, nil)
}

func (s *AdminService) UnblockUser(ctx context.Context, userID string) error {
	return s.client.Post(ctx, "/users/unblock", map[string]string{"userId": userID}, nil)
}

// ListOperationsManagers lists the operations managers of the caller's tenant.
func (s *AdminService) ListOperationsManagers(ctx context.Context, filter UserFilter) (Page[User], error) {
	return getPage[User](ctx, s.client, "/users/operations-managers", filter.values())
}

// InviteOperationsManager sends an invitation email.
func (s *AdminService) InviteOperationsManager(ctx context.Context, req InviteRequest) error {
	return s.client.Post(ctx, "/users/operations-managers/invite", req, nil)
}

func (s *AdminService) BlockOperationsManager(ctx context.Context, userID string) error {
	return s.client.Post(ctx, "/users/operations-managers/block", map[string]string{"userId": userID}, nil)
}

func (s *AdminService) UnblockOperationsManager(ctx context.Context, userID string) error {
	return s.client.Post(ctx, "/users/operations-managers/unblock", map[string]string{"userId": userID}, nil)
}

func getPage[T any](ctx context.Context, c *apiclient.Client, path string, query url.Values) (Page[T], error) {
	var resp pageEnvelope[T]
	if err := c.Get(ctx, path, query, &resp); err != nil {
		return Page[T]{}, err
	}
	if resp.Result.Data == nil {
		resp.Result.Data = []T{}
	}
	return resp.Result, nil
}

func getOne[T any](ctx context.Context, c *apiclient.Client, path string) (T, error) {
	var resp Envelope[T]
	err := c.Get(ctx, path, nil, &resp)
	return resp.Data, err
}

func resourcePath(collection, id string, rest ...string) string {
	p := collection + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}
