package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AdminTokenPayload captures the data available when minting an admin JWT.
type AdminTokenPayload struct {
	ActorID  string
	Name     string
	Role     enums.AdminRole
	TenantID *uuid.UUID
	JTI      string
}

// AdminClaims is the typed JWT carried by owner panel and platform requests.
type AdminClaims struct {
	ActorID  string          `json:"actor_id"`
	Name     string          `json:"name,omitempty"`
	Role     enums.AdminRole `json:"role"`
	TenantID *uuid.UUID      `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// CanManageTenant reports whether the claims grant access to the tenant.
func (c *AdminClaims) CanManageTenant(tenantID uuid.UUID) bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case enums.AdminRolePlatform:
		return true
	case enums.AdminRoleOwner:
		return c.TenantID != nil && *c.TenantID == tenantID
	default:
		return false
	}
}
