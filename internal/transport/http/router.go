package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "workguard/internal/auth/handler"
	authmodels "workguard/internal/auth/models"
	notificationhandler "workguard/internal/notification/handler"
	"workguard/internal/platform/metrics"
	"workguard/pkg/platform/httputil"
	"workguard/pkg/platform/middleware/auth"
	"workguard/pkg/platform/middleware/metadata"
	"workguard/pkg/platform/middleware/request"
	"workguard/pkg/platform/middleware/requesttime"
	"workguard/pkg/platform/middleware/role"
	"workguard/pkg/requestcontext"
)

const requestTimeout = 30 * time.Second

// HealthChecker is a dependency reported by /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps is everything the router mounts.
type Deps struct {
	Logger        *slog.Logger
	Auth          *authhandler.Handler
	Notifications *notificationhandler.Handler
	Authenticator auth.Authenticator
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Health        map[string]HealthChecker
}

// NewRouter wires the public, session and admin route groups.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/health", healthHandler(d.Health, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		d.Auth.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.Authenticator, d.Logger))
			d.Auth.RegisterSession(r)

			r.Group(func(r chi.Router) {
				r.Use(role.Require(d.Logger, string(authmodels.RoleAdmin)))
				d.Auth.RegisterAdmin(r)
				d.Notifications.Register(r)
			})
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"component", name,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
