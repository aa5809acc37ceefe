package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/config"
	"github.com/platinummonkey/envlink/pkg/observability"
	"github.com/platinummonkey/envlink/pkg/search"
	"github.com/platinummonkey/envlink/pkg/storage"
	"github.com/platinummonkey/envlink/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize OpenTelemetry")
			os.Exit(1)
		}
	}

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
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Error("failed to ensure database schema")
			os.Exit(1)
		}
		store = pg
		if rc := pg.GetRedis(); rc != nil {
			store = postgres.NewCachedStorage(pg, rc)
		}
	default:
		fs, err := storage.NewFileSystemStorage(cfg.Storage.FilesystemRoot)
		if err != nil {
			logger.WithError(err).Error("failed to initialize filesystem storage")
			os.Exit(1)
		}
		store = fs
	}
	logger.WithField("backend", cfg.Storage.Type).Info("storage initialized")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	opts := []api.Option{api.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, api.WithMetrics(metrics))
	}
	server := api.NewServer(store, opts...)
	if cfg.Observability.OTelEnabled {
		server.EnableTracing(cfg.Observability.OTelServiceName)
	}

	// Search rides on the SQL backend; the filesystem store has no query
	// surface to index.
	if pg != nil {
		svc := search.NewService(pg.GetDB())
		if err := svc.EnsureHistorySchema(ctx); err != nil {
			logger.WithError(err).Warn("failed to ensure search history schema")
		}
		server.RegisterRoutes(search.NewHandlers(svc))
	}

	// Ops server carries health probes and the metrics endpoint on a
	// separate port.
	var db *sql.DB
	var redisClient *redis.Client
	if pg != nil {
		db = pg.GetDB()
		if rc := pg.GetRedis(); rc != nil {
			redisClient = rc.GetClient()
		}
	}
	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}
	go func() {
		logger.WithField("addr", opsServer.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("ops server failed")
		}
	}()

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return opsServer.Shutdown(ctx)
	})
	if pg != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return pg.Close()
		})
	}
	if providers != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("envlink registry listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown completed with errors")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
