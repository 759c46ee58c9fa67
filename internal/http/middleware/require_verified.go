package middleware

import (
	"net/http"

	"github.com/flower-app/flower/internal/httputil"
)

// RequireVerified gates a route on a verified email address. Must run
// after Auth, which puts the token claims on the context.
func RequireVerified() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !claims.EmailVerified {
				httputil.Error(w, http.StatusForbidden, "email verification required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
