package auth

import (
	"github.com/spec-kit/talent-client/internal/domain"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

// RequireRole ensures an identity is present and holds one of the allowed
// roles. With no roles given any authenticated identity passes.
func RequireRole(identity *domain.UserIdentity, allowed ...domain.Role) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return apperrors.NewForbidden("insufficient role")
}

// RequireStudent ensures the identity is a student linked to a student profile.
func RequireStudent(identity *domain.UserIdentity) error {
	if err := RequireRole(identity, domain.RoleStudent); err != nil {
		return err
	}
	if identity.StudentIDOrEmpty() == "" {
		return apperrors.NewForbidden("student profile required")
	}
	return nil
}
