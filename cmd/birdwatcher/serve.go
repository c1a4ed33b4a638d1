package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"birdwatcher/internal/crawlqueue"
	"birdwatcher/pkg/auth"
	"birdwatcher/pkg/browser"
	"birdwatcher/pkg/extractor"
	"birdwatcher/pkg/ingest"
	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/ratelimit"
	"birdwatcher/pkg/scheduler"
	"birdwatcher/pkg/server"
	"birdwatcher/pkg/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the crawl scheduler",
	Long: `Run birdwatcher as a long-lived service.

The HTTP API handles subscriptions and post queries while the scheduler
crawls every subscribed account in staggered cycles, one account at a
time with a cooldown in between.`,
	Example: `  # Run with defaults (listens on :5000)
  birdwatcher serve

  # Run with a custom config file
  birdwatcher serve --config ./birdwatcher.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	creds := auth.NewFileStore(cfg.Auth.SessionFile)
	if !creds.Exists() {
		log.WithField("path", creds.Path()).Warn("session file not found, crawls will fail until it exists")
	}

	ext := extractor.New(browser.NewRodOpener(cfg.Crawl.Headless), creds, &cfg.Crawl, log)
	svc := ingest.NewService(st, ext, log)

	gate := ratelimit.NewGate(cfg.Scheduler.Cooldown, nil)
	pool := crawlqueue.NewWorkerPool(1, svc, gate, log)
	sched := scheduler.New(st, pool, scheduler.Options{
		CycleInterval: cfg.Scheduler.CycleInterval,
		Cooldown:      cfg.Scheduler.Cooldown,
		MaxItems:      cfg.Crawl.MaxPosts,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		sched.Run(ctx)
	}()

	api := server.New(st, sched.Trigger, log)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-schedulerDone
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}

	<-schedulerDone
	log.Info("shutdown complete")
	return nil
}
