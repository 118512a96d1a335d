// seed creates the demo accounts in Postgres. Existing emails are skipped, so
// it is safe to run repeatedly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"workguard/internal/auth/password"
	userstore "workguard/internal/auth/store/user"
	"workguard/internal/platform/config"
	"workguard/internal/platform/logger"
	"workguard/internal/platform/postgres"
	"workguard/internal/seed"
)

func main() {
	pw := flag.String("password", seed.DemoPassword, "Password given to every seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, *pw, log); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, pw string, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; set it or create a .env file")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	res, err := seed.Run(ctx, userstore.NewPostgres(db), hasher, seed.DemoAccounts, pw, log)
	if err != nil {
		return err
	}
	log.Info("seed complete", "created", res.Created, "skipped", res.Skipped)
	return nil
}
