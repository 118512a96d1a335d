package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"workguard/internal/notification/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/httputil"
	"workguard/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the admin inbox.
type Service interface {
	List(ctx context.Context, adminID id.UserID, filter models.ListFilter) (*models.Inbox, error)
	MarkRead(ctx context.Context, adminID id.UserID, notificationID id.NotificationID) error
	MarkAllRead(ctx context.Context, adminID id.UserID) (int, error)
	Delete(ctx context.Context, adminID id.UserID, notificationID id.NotificationID) error
}

type Handler struct {
	notifications Service
	logger        *slog.Logger
}

func New(notifications Service, logger *slog.Logger) *Handler {
	return &Handler{notifications: notifications, logger: logger}
}

// Register registers the inbox routes. They must run behind the admin role
// check; every operation is scoped to the caller's own rows.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.HandleList)
	r.Put("/notifications/read-all", h.HandleMarkAllRead)
	r.Put("/notifications/{id}/read", h.HandleMarkRead)
	r.Delete("/notifications/{id}", h.HandleDelete)
}

type listResponse struct {
	Success bool `json:"success"`
	*models.Inbox
}

type markAllResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := models.ListFilter{}
	if raw := r.URL.Query().Get("unreadOnly"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadOnly must be a boolean"))
			return
		}
		filter.UnreadOnly = unread
	}

	inbox, err := h.notifications.List(ctx, requestcontext.UserID(ctx), filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list notifications",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Success: true, Inbox: inbox})
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, ok := h.notificationID(w, r)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(ctx, requestcontext.UserID(ctx), notificationID); err != nil {
		h.logger.WarnContext(ctx, "failed to mark notification read",
			"error", err,
			"notification_id", notificationID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notifications.MarkAllRead(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to mark notifications read",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, markAllResponse{Success: true, Updated: n})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, ok := h.notificationID(w, r)
	if !ok {
		return
	}
	if err := h.notifications.Delete(ctx, requestcontext.UserID(ctx), notificationID); err != nil {
		h.logger.WarnContext(ctx, "failed to delete notification",
			"error", err,
			"notification_id", notificationID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// notificationID parses the {id} path parameter. A malformed id cannot name
// a row the caller owns, so it is reported as not found.
func (h *Handler) notificationID(w http.ResponseWriter, r *http.Request) (id.NotificationID, bool) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Notification not found"))
		return id.NotificationID{}, false
	}
	return notificationID, true
}
