package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/flower-app/flower/internal/httputil"
)

// Recover creates middleware that turns panics into 500 responses. When
// Sentry is configured the panic is also reported there.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
						hub.RecoverWithContext(r.Context(), rec)
					} else {
						sentry.CurrentHub().Recover(rec)
					}
					httputil.Error(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
