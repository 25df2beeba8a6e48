package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/ordergenie-backend/api/responses"
	pkgAuth "github.com/angelmondragon/ordergenie-backend/pkg/auth"
	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

// Auth requires a bearer token and seeds the request context with its
// claims for the role and scope checks further down the chain.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role"))
				return
			}

			var storeID string
			if claims.StoreID != nil {
				storeID = claims.StoreID.String()
			}
			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if storeID != "" {
				ctx = WithStoreID(ctx, storeID)
			}
			if logg != nil {
				ctx = logg.WithActor(ctx, claims.UserID.String(), storeID, string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" in any case, or a bare token.
func bearerToken(header string) (string, bool) {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token, token != "" && !strings.EqualFold(token, "bearer")
}
