package admin

import (
	"log/slog"
	"net/http"

	"trustdir/pkg/platform/middleware/auth"
	request "trustdir/pkg/platform/middleware/request"
	"trustdir/pkg/requestcontext"
)

// RequireRole rejects authenticated callers whose token does not carry role.
// It must run after auth.RequireAuth.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if auth.GetRole(ctx) != role {
				logger.WarnContext(ctx, "role check failed",
					"actor", requestcontext.Actor(ctx),
					"required_role", role,
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"insufficient role"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
