package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/httputil"
	"workguard/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the auth operations exposed over HTTP.
type Service interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
	ListSessions(ctx context.Context, userID id.UserID, current id.SessionID) ([]models.SessionSummary, error)
	LogoutDevice(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
	ListLoginAttempts(ctx context.Context, filter models.AttemptFilter) ([]models.LoginAttempt, error)
	UserPresence(ctx context.Context, userID id.UserID) (*models.UserPresence, error)
}

// Handler serves login, logout and session management endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// RegisterPublic registers routes that take no bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterSession registers routes that must run behind auth.RequireAuth.
func (h *Handler) RegisterSession(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/sessions", h.HandleListSessions)
	r.Post("/auth/logout-device/{sessionId}", h.HandleLogoutDevice)
}

// RegisterAdmin registers routes that must run behind the admin role check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/login-attempts", h.HandleListLoginAttempts)
	r.Get("/admin/users/{userId}/presence", h.HandleUserPresence)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.auth.Login(ctx, models.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: requestcontext.UserAgent(ctx),
		IPAddress: requestcontext.ClientIP(ctx),
	})
	if err != nil {
		h.logFailure(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:     true,
		Token:       result.Token,
		SessionID:   result.SessionID.String(),
		User:        result.User,
		SessionInfo: result.SessionInfo,
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.auth.Logout(ctx, requestcontext.UserID(ctx), requestcontext.SessionID(ctx)); err != nil {
		h.logFailure(ctx, "logout failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Logged out successfully"})
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := h.auth.ListSessions(ctx, requestcontext.UserID(ctx), requestcontext.SessionID(ctx))
	if err != nil {
		h.logFailure(ctx, "failed to list sessions", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SessionsResponse{Success: true, Sessions: sessions})
}

func (h *Handler) HandleLogoutDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Session not found or already logged out"))
		return
	}

	if err := h.auth.LogoutDevice(ctx, requestcontext.UserID(ctx), sessionID); err != nil {
		h.logFailure(ctx, "device logout failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Device logged out successfully"})
}

func (h *Handler) HandleListLoginAttempts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := models.AttemptFilter{Email: query.Get("email")}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("userId")); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userId is invalid"))
			return
		}
		filter.UserID = &userID
	}

	attempts, err := h.auth.ListLoginAttempts(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "failed to list login attempts", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AttemptsResponse{Success: true, Attempts: attempts})
}

func (h *Handler) HandleUserPresence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userId is invalid"))
		return
	}

	presence, err := h.auth.UserPresence(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to read user presence", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PresenceResponse{Success: true, Presence: *presence})
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if de, ok := dErrors.From(err); ok && de.Code != dErrors.CodeInternal && de.Code != dErrors.CodeTimeout {
		h.logger.WarnContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
