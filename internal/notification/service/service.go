package service

import (
	"context"
	"errors"
	"log/slog"

	authmodels "workguard/internal/auth/models"
	"workguard/internal/notification/metrics"
	"workguard/internal/notification/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AdminDirectory,EventPublisher

type Store interface {
	InsertMany(ctx context.Context, batch []*models.Notification) error
	ListByUser(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID id.UserID) (int, error)
	MarkRead(ctx context.Context, userID id.UserID, notificationID id.NotificationID) error
	MarkAllRead(ctx context.Context, userID id.UserID) (int, error)
	Delete(ctx context.Context, userID id.UserID, notificationID id.NotificationID) error
}

// AdminDirectory lists the accounts that receive fan-out.
type AdminDirectory interface {
	ListIDsByRole(ctx context.Context, role authmodels.Role) ([]id.UserID, error)
}

// EventPublisher streams a persisted batch to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, batch []*models.Notification) error
}

// Service owns the admin inbox: fan-out on write, caller-scoped reads and updates.
type Service struct {
	store     Store
	admins    AdminDirectory
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, admins AdminDirectory, opts ...Option) *Service {
	s := &Service{
		store:  store,
		admins: admins,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FanOut writes one copy of draft to every admin and returns the rows
// written. Rows are not de-duplicated across calls. The event stream is
// best-effort and never fails the fan-out.
func (s *Service) FanOut(ctx context.Context, draft models.Draft) ([]*models.Notification, error) {
	if err := draft.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid notification")
	}

	admins, err := s.admins.ListIDsByRole(ctx, authmodels.RoleAdmin)
	if err != nil {
		s.incFanOutFailure(draft.Type)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list admins")
	}
	if len(admins) == 0 {
		s.logger.DebugContext(ctx, "no admins to notify", "type", draft.Type)
		return nil, nil
	}

	at := requestcontext.Now(ctx)
	batch := make([]*models.Notification, 0, len(admins))
	for _, admin := range admins {
		batch = append(batch, draft.For(admin, at))
	}
	if err := s.store.InsertMany(ctx, batch); err != nil {
		s.incFanOutFailure(draft.Type)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notifications")
	}
	if s.metrics != nil {
		s.metrics.ObserveFanOut(string(draft.Type), len(batch))
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, batch); err != nil {
			s.logger.WarnContext(ctx, "failed to publish notification event",
				"error", err,
				"type", draft.Type,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return batch, nil
}

// List returns the admin's notifications newest first plus the unread total.
func (s *Service) List(ctx context.Context, adminID id.UserID, filter models.ListFilter) (*models.Inbox, error) {
	if adminID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	rows, err := s.store.ListByUser(ctx, adminID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	unread, err := s.store.CountUnread(ctx, adminID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	if rows == nil {
		rows = []*models.Notification{}
	}
	return &models.Inbox{Notifications: rows, UnreadCount: unread}, nil
}

func (s *Service) MarkRead(ctx context.Context, adminID id.UserID, notificationID id.NotificationID) error {
	if err := s.store.MarkRead(ctx, adminID, notificationID); err != nil {
		return wrapStoreErr(err, "failed to update notification")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, adminID id.UserID) (int, error) {
	n, err := s.store.MarkAllRead(ctx, adminID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update notifications")
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, adminID id.UserID, notificationID id.NotificationID) error {
	if err := s.store.Delete(ctx, adminID, notificationID); err != nil {
		return wrapStoreErr(err, "failed to delete notification")
	}
	return nil
}

func (s *Service) incFanOutFailure(t models.Type) {
	if s.metrics != nil {
		s.metrics.IncFanOutFailure(string(t))
	}
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "Notification not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
