package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/0111v/projeto-faculdade/api/responses"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

// RoleLookup reads the role stored on a user's profile. An empty role means
// the profile no longer exists.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (enums.UserRole, error)
}

// RequireRole admits callers whose token claim and stored profile both carry
// role, so a demoted account loses access before its token expires. A nil
// lookup trusts the token claim alone.
func RequireRole(role enums.UserRole, profiles RoleLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			forbidden := pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s role required", role))
			if RoleFromContext(ctx) != string(role) {
				responses.WriteError(ctx, logg, w, forbidden)
				return
			}
			if profiles != nil {
				userID, ok := UserUUIDFromContext(ctx)
				if !ok {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
					return
				}
				current, err := profiles.RoleOf(ctx, userID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile role"))
					return
				}
				if current != role {
					responses.WriteError(ctx, logg, w, forbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
