// Package authz holds the stateless role checks applied to every protected route.
package authz

import (
	"github.com/vidaplus/hospital-api/internal/model"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

// Denial is the diagnostic payload attached to a FORBIDDEN error
type Denial struct {
	RequiredRoles []model.Role `json:"required_roles"`
	YourRole      model.Role   `json:"your_role"`
}

// Authorize allows the call when the claimed role is one of roles
func Authorize(claims *model.Claims, roles ...model.Role) error {
	if claims == nil {
		return apperrors.Unauthorized("authentication required", nil)
	}
	if hasRole(claims.Role, roles) {
		return nil
	}
	return deny(claims, roles)
}

// AuthorizeSelfOrRoles allows elevated roles, and a PATIENT acting on the
// record owned by their own identity.
func AuthorizeSelfOrRoles(claims *model.Claims, ownerIdentityID int64, elevated ...model.Role) error {
	if claims == nil {
		return apperrors.Unauthorized("authentication required", nil)
	}
	if hasRole(claims.Role, elevated) {
		return nil
	}
	if claims.Role == model.RolePatient && claims.IdentityID == ownerIdentityID {
		return nil
	}
	return deny(claims, elevated)
}

func hasRole(role model.Role, roles []model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func deny(claims *model.Claims, roles []model.Role) error {
	required := roles
	if required == nil {
		required = []model.Role{}
	}
	return apperrors.Forbidden("insufficient permissions").WithDetails(Denial{
		RequiredRoles: required,
		YourRole:      claims.Role,
	})
}
