package security

import (
	"fmt"
	"strings"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"
)

// Require is the single authorization check every service operation runs
// before it touches a repository. It performs no I/O.
func Require(claims *Claims, allowed ...model.Role) error {
	if claims == nil {
		return fmt.Errorf("no verified identity: %w", common.ErrForbidden)
	}
	for _, role := range allowed {
		if claims.Role == role {
			return nil
		}
	}
	return fmt.Errorf("role %q is not one of [%s]: %w", claims.Role, joinRoles(allowed), common.ErrForbidden)
}

// RequireSelfOr passes when the caller is the target identity or holds one of
// the allowed roles.
func RequireSelfOr(claims *Claims, targetID int64, allowed ...model.Role) error {
	if claims != nil && claims.UserID == targetID {
		return nil
	}
	return Require(claims, allowed...)
}

func joinRoles(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
