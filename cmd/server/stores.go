package main

import (
	"context"
	"database/sql"
	"log/slog"

	authservice "workguard/internal/auth/service"
	attemptstore "workguard/internal/auth/store/attempt"
	presencestore "workguard/internal/auth/store/presence"
	sessionstore "workguard/internal/auth/store/session"
	userstore "workguard/internal/auth/store/user"
	notificationservice "workguard/internal/notification/service"
	notificationstore "workguard/internal/notification/store"
	"workguard/internal/platform/config"
	"workguard/internal/platform/postgres"
	"workguard/internal/platform/redis"
	"workguard/internal/seed"
	httptransport "workguard/internal/transport/http"
)

type userStore interface {
	authservice.UserStore
	notificationservice.AdminDirectory
	seed.UserStore
}

type stores struct {
	kind          string
	users         userStore
	sessions      authservice.SessionStore
	attempts      authservice.AttemptStore
	presence      authservice.PresenceStore
	notifications notificationservice.Store
	// tx is nil in memory mode; the service then uses its sharded lock.
	tx     authservice.AuthStoreTx
	health map[string]httptransport.HealthChecker

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type pingCheck struct {
	db *sql.DB
}

func (p pingCheck) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// openStores picks Postgres when DATABASE_URL is set and memory otherwise.
// Memory mode seeds the demo accounts so the server is usable immediately.
func openStores(ctx context.Context, cfg *config.Config, hasher seed.Hasher, log *slog.Logger) (*stores, error) {
	st := &stores{health: make(map[string]httptransport.HealthChecker)}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		users := userstore.NewPostgres(db)
		st.kind = "postgres"
		st.users = users
		st.sessions = sessionstore.NewPostgres(db)
		st.attempts = attemptstore.NewPostgres(db)
		st.notifications = notificationstore.NewPostgres(db)
		st.tx = newAuthPostgresTx(db, users)
		st.health["postgres"] = pingCheck{db: db}
	} else {
		users := userstore.New()
		res, err := seed.Run(ctx, users, hasher, seed.DemoAccounts, seed.DemoPassword, log)
		if err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "using in-memory stores with demo accounts", "created", res.Created)
		st.kind = "memory"
		st.users = users
		st.sessions = sessionstore.New()
		st.attempts = attemptstore.New()
		st.notifications = notificationstore.New()
	}

	client, err := redis.Open(ctx, cfg.Redis(), log)
	if err != nil {
		st.Close()
		return nil, err
	}
	if client != nil {
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.presence = presencestore.NewRedis(client.Client, cfg.PresenceTTL)
		st.health["redis"] = client
	} else {
		st.presence = presencestore.New(cfg.PresenceTTL)
	}
	return st, nil
}
