package testutil

import (
	"net/http"

	id "workguard/pkg/domain"
	"workguard/pkg/requestcontext"
)

// WithPrincipal sets what auth.RequireAuth would place in the request
// context for an authenticated caller.
func WithPrincipal(req *http.Request, userID id.UserID, sessionID id.SessionID, role string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithClient sets the headers the metadata middleware derives client IP and
// user agent from.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	req.Header.Set("X-Forwarded-For", ip)
	req.Header.Set("User-Agent", userAgent)
	return req
}
