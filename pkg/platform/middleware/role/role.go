package role

import (
	"log/slog"
	"net/http"
	"slices"

	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/httputil"
	"workguard/pkg/requestcontext"
)

// Require admits only principals whose role is in allowed. It must run after
// auth.RequireAuth.
func Require(logger *slog.Logger, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if got := requestcontext.Role(ctx); !slices.Contains(allowed, got) {
				logger.WarnContext(ctx, "forbidden - role not permitted",
					"role", got,
					"user_id", requestcontext.UserID(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
