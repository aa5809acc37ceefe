package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/config"
	"github.com/platinummonkey/envlink/pkg/drift"
	"github.com/platinummonkey/envlink/pkg/observability"
	"github.com/platinummonkey/envlink/pkg/storage"
	"github.com/platinummonkey/envlink/pkg/storage/postgres"
)

var runOnce = flag.Bool("run-once", false, "Run one drift check and exit (for testing)")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	var (
		store api.Storage
		pg    *postgres.PostgresStorage
	)
	switch cfg.Storage.Type {
	case "postgres":
		pg, err = postgres.NewPostgresStorage(cfg.Storage)
		if err != nil {
			logger.WithError(err).Error("failed to initialize postgres storage")
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	default:
		store, err = storage.NewFileSystemStorage(cfg.Storage.FilesystemRoot)
		if err != nil {
			logger.WithError(err).Error("failed to initialize filesystem storage")
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	opts := []drift.Option{
		drift.WithMetrics(metrics),
		drift.WithConcurrency(cfg.Drift.Concurrency),
	}
	// Redis lock keeps concurrent daemon replicas from double-checking.
	if pg != nil {
		if rc := pg.GetRedis(); rc != nil {
			opts = append(opts, drift.WithLocker(rc, cfg.Drift.LockTTL))
		}
	}
	checker := drift.NewChecker(store, opts...)

	runCheck := func() {
		defer observability.RecoverPanic(logger, "drift check")
		report, err := checker.Run(ctx)
		if err != nil {
			if errors.Is(err, drift.ErrLockHeld) {
				logger.Info("drift check skipped: lock held by another instance")
				return
			}
			logger.WithError(err).Error("drift check failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"checked":  report.Checked,
			"stale":    report.Stale,
			"errors":   report.Errors,
			"duration": report.Duration.String(),
		}).Info("drift check complete")
	}

	if *runOnce {
		runCheck()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Drift.Schedule, runCheck); err != nil {
		logger.WithError(err).Errorf("invalid drift schedule %q", cfg.Drift.Schedule)
		os.Exit(1)
	}

	logger.WithField("schedule", cfg.Drift.Schedule).Info("drift daemon started")
	c.Start()

	waitForSignal(logger)

	cronCtx := c.Stop()
	<-cronCtx.Done()
	logger.Info("drift daemon stopped")
}

func waitForSignal(logger *observability.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("received signal %s, shutting down", sig)
}
