// Package main is the background worker of the nominations service.
//
// The worker runs the scheduled jobs without serving the API:
//   - close_expired_events deactivates events whose close time has passed
//
// Run exactly one worker per database. With -once it performs a single
// sweep and exits, which suits an external cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/valores-hub/nominations/config"
	"github.com/valores-hub/nominations/internal/app"
	"github.com/valores-hub/nominations/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run every job once and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, once bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewLogger(cfg).With(logger.Component("worker"))
	defer log.Sync()

	log.Info("starting nominations worker",
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.Bool("once", once),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DEPENDENCIES
	// ─────────────────────────────────────────────────────────────────────────
	svc, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer svc.Close()

	sched, err := svc.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}
	for _, job := range sched.ListJobs() {
		log.Info("registered job",
			logger.String("job", job.Name),
			logger.String("schedule", job.Schedule),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ONE-SHOT MODE
	// ─────────────────────────────────────────────────────────────────────────
	if once {
		for _, job := range sched.ListJobs() {
			result, err := sched.RunNow(ctx, job.Name)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			log.Info("job finished",
				logger.String("job", result.JobName),
				logger.Duration("duration", result.Duration),
			)
		}
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULED MODE
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop", logger.Err(err))
	}
	log.Info("worker stopped")
	return nil
}
