package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	authmetrics "workguard/internal/auth/metrics"
	"workguard/internal/auth/models"
	"workguard/internal/auth/policy"
	"workguard/internal/jwttoken"
	notificationmodels "workguard/internal/notification/models"
	id "workguard/pkg/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,SessionStore,AttemptStore,PresenceStore,TokenIssuer,PasswordHasher,LoginPolicy,Notifier

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetOnline(ctx context.Context, userID id.UserID, online bool, at time.Time) error
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	ListActiveByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	CountActiveByUser(ctx context.Context, userID id.UserID) (int, error)
	CloseIfActive(ctx context.Context, sessionID id.SessionID, status models.SessionStatus, reason string) (*models.Session, error)
	TouchActivity(ctx context.Context, sessionID id.SessionID, at time.Time) error
}

type AttemptStore interface {
	Append(ctx context.Context, attempt *models.LoginAttempt) error
	List(ctx context.Context, filter models.AttemptFilter) ([]models.LoginAttempt, error)
}

// PresenceStore is the cross-instance online registry.
type PresenceStore interface {
	Touch(ctx context.Context, userID id.UserID) error
	SetOffline(ctx context.Context, userID id.UserID) error
	IsOnline(ctx context.Context, userID id.UserID) (bool, error)
}

type TokenIssuer interface {
	Issue(userID id.UserID, sessionID id.SessionID, role string) (string, error)
	Validate(token string) (*jwttoken.Claims, error)
}

type PasswordHasher interface {
	Compare(hash, password string) error
	CompareDummy(password string)
}

type LoginPolicy interface {
	MobileRestricted(ctx context.Context, in policy.Input) bool
}

// Notifier fans a draft out to every admin.
type Notifier interface {
	FanOut(ctx context.Context, draft notificationmodels.Draft) ([]*notificationmodels.Notification, error)
}

// Service runs the login risk pipeline and the per-request session gate.
type Service struct {
	users    UserStore
	sessions SessionStore
	attempts AttemptStore
	tokens   TokenIssuer
	hasher   PasswordHasher

	presence PresenceStore
	policy   LoginPolicy
	notifier Notifier
	tx       AuthStoreTx
	logger   *slog.Logger
	metrics  *authmetrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithPresence(p PresenceStore) Option {
	return func(s *Service) {
		s.presence = p
	}
}

func WithPolicy(p LoginPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithTx sets the per-user transaction boundary. Defaults to an in-memory
// sharded lock.
func WithTx(tx AuthStoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *authmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(users UserStore, sessions SessionStore, attempts AttemptStore, tokens TokenIssuer, hasher PasswordHasher, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		attempts: attempts,
		tokens:   tokens,
		hasher:   hasher,
		policy:   builtinPolicy{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewInMemoryTx()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("workguard/internal/auth/service")
	}
	return s
}

type builtinPolicy struct{}

func (builtinPolicy) MobileRestricted(_ context.Context, in policy.Input) bool {
	return policy.Fallback(in)
}
