package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/httputil"
	"workguard/pkg/requestcontext"
)

// Principal is the identity a bearer token resolves to after the session
// row has been checked.
type Principal struct {
	UserID    id.UserID
	SessionID id.SessionID
	Role      string
}

//go:generate mockgen -source=auth.go -destination=mocks/mocks.go -package=mocks Authenticator

// Authenticator validates a bearer token against its signature and the
// session it is bound to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

const bearerPrefix = "Bearer "

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// RequireAuth rejects requests without a valid, ACTIVE session and stores the
// principal in context.
func RequireAuth(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			principal, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				switch {
				case dErrors.HasCode(err, dErrors.CodeSessionInvalidated):
					logger.WarnContext(ctx, "unauthorized access - session not active",
						"request_id", requestID,
					)
				case dErrors.HasCode(err, dErrors.CodeUnauthorized):
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestID,
					)
				default:
					logger.ErrorContext(ctx, "failed to authenticate request",
						"error", err,
						"request_id", requestID,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithUserID(ctx, principal.UserID)
			ctx = requestcontext.WithSessionID(ctx, principal.SessionID)
			ctx = requestcontext.WithRole(ctx, principal.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
