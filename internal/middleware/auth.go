package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hongminglow/cardsavvy-be/internal/auth"
	"github.com/hongminglow/cardsavvy-be/internal/http/respond"
	"github.com/hongminglow/cardsavvy-be/internal/logger"
)

type claimsKey struct{}

// RequireUser rejects requests without a valid bearer token and stores the
// verified claims on the request context.
func RequireUser(tokens *auth.TokenManager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, ok := tokens.Verify(token)
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logger.ContextWithUserID(ctx, claims.Subject)
			next(w, r.WithContext(ctx))
		}
	}
}

// ClaimsFromContext returns the claims stored by RequireUser.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
