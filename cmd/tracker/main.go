// tracker is a reference desktop client for the activity timer. It reads one
// command per line from stdin:
//
//	input    record keyboard or mouse activity
//	resume   leave the idle state
//	status   print the current state as JSON
//	logout   stop the timer, clear its state and exit
//
// Work intervals and idle transitions are logged as they happen.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"workguard/internal/activity"
	"workguard/internal/platform/logger"
)

func main() {
	cfg := activity.DefaultConfig()
	flag.DurationVar(&cfg.IdleThreshold, "idle", cfg.IdleThreshold, "Inactivity after which the user is idle")
	flag.DurationVar(&cfg.WorkInterval, "interval", cfg.WorkInterval, "Accrued time between work interval reports")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr, *level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := activity.New(cfg,
		activity.WithLogger(log),
		activity.OnWorkInterval(func(w activity.WorkInterval) {
			log.Info("work interval", "elapsed_seconds", int64(w.Elapsed.Seconds()), "score", w.Score)
		}),
		activity.OnTransition(func(tr activity.Transition) {
			log.Info("activity transition", "kind", string(tr.Kind), "elapsed_seconds", int64(tr.Elapsed.Seconds()))
		}),
	)
	c := newConsole(tracker, os.Stdout)

	g, gctx := errgroup.WithContext(ctx)
	tracker.Start(gctx)
	g.Go(func() error {
		return c.Run(gctx, os.Stdin)
	})
	if err := g.Wait(); err != nil {
		log.Error("tracker stopped with error", "error", err)
		tracker.Stop()
		os.Exit(1)
	}
	tracker.Stop()
	fmt.Fprintln(os.Stdout, "bye")
}
