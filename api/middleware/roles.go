package middleware

import (
	"net/http"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

// RequireRole admits only actors holding one of roles. It must run after Auth.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	allowed := make(map[enums.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"role": actor.Role}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
