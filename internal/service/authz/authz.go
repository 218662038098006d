// Package authz holds the pure authorization decisions. Callers load the
// resource first; these functions only compare the principal against roles
// or owner ids and never touch storage.
package authz

import (
	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

// Authorize allows the principal when its role is in the required set.
func Authorize(principal model.Principal, roles ...model.Role) error {
	for _, role := range roles {
		if principal.Role == role {
			return nil
		}
	}
	return apperrors.Forbidden("role " + string(principal.Role) + " is not authorized for this action")
}

// AuthorizeOwnership allows the principal when it is one of the resource's
// owners, or an admin. Used for update/cancel actions where only the
// booking's own patient or doctor may act.
func AuthorizeOwnership(principal model.Principal, ownerIDs ...uuid.UUID) error {
	if principal.IsAdmin() {
		return nil
	}
	for _, id := range ownerIDs {
		if principal.UserID == id {
			return nil
		}
	}
	return apperrors.Forbidden("not authorized to act on this resource")
}
