package middleware

import (
	"context"
	"net/http"

	"reservation_app/internal/common"
	"reservation_app/internal/common/security"
	"reservation_app/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const ClaimsCtxKey contextKey = "claims"

// Authenticator validates the bearer token of every request and stores the
// verified claims on the request context. Authorization decisions are left to
// the services.
func Authenticator(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := jwtauth.TokenFromHeader(r)
			if raw == "" {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				common.RespondWithDomainError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, ClaimsCtxKey, claims)
}

// ClaimsFromContext returns the verified claims placed by Authenticator, or
// nil on unauthenticated routes.
func ClaimsFromContext(ctx context.Context) *security.Claims {
	claims, _ := ctx.Value(ClaimsCtxKey).(*security.Claims)
	return claims
}

// AdminOnly rejects callers whose verified role is not admin. It must run
// after Authenticator.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := security.Require(ClaimsFromContext(r.Context()), model.RoleAdmin); err != nil {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
