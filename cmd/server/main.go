package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	authhandler "workguard/internal/auth/handler"
	authmetrics "workguard/internal/auth/metrics"
	"workguard/internal/auth/password"
	"workguard/internal/auth/policy"
	authservice "workguard/internal/auth/service"
	"workguard/internal/jwttoken"
	notificationhandler "workguard/internal/notification/handler"
	notificationmetrics "workguard/internal/notification/metrics"
	"workguard/internal/notification/publisher"
	notificationservice "workguard/internal/notification/service"
	"workguard/internal/platform/config"
	"workguard/internal/platform/httpserver"
	"workguard/internal/platform/kafka"
	"workguard/internal/platform/logger"
	"workguard/internal/platform/metrics"
	httptransport "workguard/internal/transport/http"
	"workguard/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("workguard stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires the stores, services and router, then serves until ctx ends.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// the default registry carries the Go and process collectors and the
	// presence store's package-level histogram
	reg := prometheus.NewRegistry()
	gatherer := prometheus.Gatherers{reg, prometheus.DefaultGatherer}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, hasher, log)
	if err != nil {
		return err
	}
	defer st.Close()

	nm := notificationmetrics.New(reg)
	notificationOpts := []notificationservice.Option{
		notificationservice.WithLogger(log),
		notificationservice.WithMetrics(nm),
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokersList(), cfg.NotificationTopic)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
			log.WarnContext(ctx, "notification topic not ensured", "topic", producer.Topic(), "error", err)
		}
		st.health["kafka"] = producer
		pub := publisher.New(producer,
			publisher.WithLogger(log),
			publisher.WithMetrics(nm),
			publisher.WithBreaker(circuit.New("notification-publisher", circuit.WithCooldown(30*time.Second))),
		)
		notificationOpts = append(notificationOpts, notificationservice.WithPublisher(pub))
	}
	notifications := notificationservice.New(st.notifications, st.users, notificationOpts...)

	loginPolicy, err := policy.New(ctx, log)
	if err != nil {
		return err
	}

	authOpts := []authservice.Option{
		authservice.WithPresence(st.presence),
		authservice.WithPolicy(loginPolicy),
		authservice.WithNotifier(notifications),
		authservice.WithLogger(log),
		authservice.WithMetrics(authmetrics.New(reg)),
	}
	if st.tx != nil {
		authOpts = append(authOpts, authservice.WithTx(st.tx))
	}
	auth := authservice.New(st.users, st.sessions, st.attempts,
		jwttoken.New(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTTTL),
		hasher,
		authOpts...,
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Auth:          authhandler.New(auth, log),
		Notifications: notificationhandler.New(notifications, log),
		Authenticator: httptransport.NewAuthenticator(auth),
		Metrics:       metrics.New(reg),
		Gatherer:      gatherer,
		Health:        st.health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting workguard", "addr", cfg.Addr, "env", cfg.Env, "store", st.kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down workguard")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
