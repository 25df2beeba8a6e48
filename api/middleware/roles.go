package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/ordergenie-backend/api/responses"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

// RequireRoles rejects requests whose actor role is not in the allowed set.
func RequireRoles(logg *logger.Logger, roles ...enums.MemberRole) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[string(role)] = struct{}{}
		names = append(names, string(role))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if _, ok := allowed[role]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required").
					WithDetails(map[string]any{"allowed_roles": strings.Join(names, ",")}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
