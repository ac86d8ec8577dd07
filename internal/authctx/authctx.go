// Package authctx resolves the already-authenticated request identity
// into a typed AuthContext, and enforces the flat role hierarchy and
// tenant-isolation checks every operation relies on. It performs no
// authentication itself: headers are assumed to have already been
// verified upstream.
package authctx

import (
	"strings"

	"github.com/rcourtman/insightctl/internal/apierror"
)

// Role is one of the flat RBAC roles declared per-route.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleAnalyst  Role = "analyst"
	RoleViewer   Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleOwner: true, RoleAdmin: true, RoleOperator: true, RoleAnalyst: true, RoleViewer: true,
}

// Context is the resolved {tenantId, userId, role, channel} identity
// threaded through every C-component call.
type Context struct {
	TenantID string
	UserID   string
	Role     Role
	Channel  string
}

// Header name constants for the transport mapping.
const (
	HeaderTenantID = "x-tenant-id"
	HeaderUserID   = "x-user-id"
	HeaderRole     = "x-user-role"
	HeaderChannel  = "x-channel-id"
)

// Resolve builds a Context from a case-insensitive header map. It fails
// with MissingTenant (400) when the tenant header is absent or blank.
func Resolve(headers map[string]string) (Context, error) {
	get := func(name string) string {
		if v, ok := headers[name]; ok {
			return v
		}
		for k, v := range headers {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}

	tenantID := strings.TrimSpace(get(HeaderTenantID))
	if tenantID == "" {
		return Context{}, apierror.BadRequest("missing required header %q", HeaderTenantID)
	}

	userID := strings.TrimSpace(get(HeaderUserID))
	if userID == "" {
		userID = "system"
	}

	role := Role(strings.ToLower(strings.TrimSpace(get(HeaderRole))))
	if role == "" {
		role = RoleViewer
	}
	if !validRoles[role] {
		return Context{}, apierror.BadRequest("unknown role %q", role)
	}

	channel := strings.TrimSpace(get(HeaderChannel))

	return Context{TenantID: tenantID, UserID: userID, Role: role, Channel: channel}, nil
}

// RequireRole fails with Forbidden (403) when ctx.Role is not in allowed.
func RequireRole(ctx Context, allowed ...Role) error {
	for _, r := range allowed {
		if ctx.Role == r {
			return nil
		}
	}
	return apierror.Forbidden("role %q is not permitted to perform this operation", ctx.Role)
}

// RequireTenant fails with Forbidden (403) when the context's tenant
// doesn't match the tenant named in a path/query parameter, enforcing
// tenant isolation at the boundary of every tenant-scoped route.
func RequireTenant(ctx Context, requestedTenantID string) error {
	if ctx.TenantID != requestedTenantID {
		return apierror.Forbidden("tenant %q is not accessible from this context", requestedTenantID)
	}
	return nil
}
