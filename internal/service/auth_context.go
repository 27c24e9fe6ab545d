package service

import "github.com/google/uuid"

// Roles, least to most privileged. Role assignment itself happens outside
// this service; callers arrive with a role already asserted.
const (
	RoleOperator   = "operator"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// AuthContext is the asserted identity passed explicitly into every service
// call. There is no ambient admin identity: a call without an AuthContext
// cannot touch anything.
type AuthContext struct {
	TenantID uuid.UUID
	Role     string
}

// CanAccess reports whether the caller may operate on lots owned by tenantID.
// Admins cross tenant boundaries; everyone else is confined to their own.
func (a AuthContext) CanAccess(tenantID uuid.UUID) bool {
	return a.Role == RoleAdmin || a.TenantID == tenantID
}
