package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/canopyhq/canopy/pkg/config"
	"github.com/canopyhq/canopy/pkg/httputil"
	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/permcache"
	"github.com/canopyhq/canopy/pkg/rbac"
	"github.com/canopyhq/canopy/pkg/sections"
	"github.com/canopyhq/canopy/pkg/storage"
	"github.com/canopyhq/canopy/pkg/workspaces"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting canopyd")

	db, err := storage.NewPostgres(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	// Ordered: section_members references the roles table.
	for _, component := range []struct {
		name       string
		migrations []storage.Migration
	}{
		{"rbac", rbac.Migrations()},
		{"workspaces", workspaces.Migrations()},
		{"sections", sections.Migrations()},
	} {
		if err := storage.ApplyMigrations(ctx, db, component.name, component.migrations); err != nil {
			logger.WithError(err).WithField("component", component.name).Error("Failed to apply migrations")
			os.Exit(1)
		}
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// The cache/push backend is optional. Without redis the dispatcher is
	// a no-op and access checks always hit the store.
	var (
		redisClient *redis.Client
		cache       *permcache.Cache
		dispatcher  permcache.Dispatcher = permcache.NewNoopDispatcher()
		scheduler   *cron.Cron
	)
	if cfg.Cache.Enabled {
		redisClient, err = storage.NewRedis(cfg.Cache)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to redis")
			os.Exit(1)
		}
		defer redisClient.Close()

		cache, err = permcache.NewCache(redisClient, cfg.Cache.L1Size, cfg.Cache.SnapshotTTL, logger, metrics)
		if err != nil {
			logger.WithError(err).Error("Failed to create permission cache")
			os.Exit(1)
		}
		dispatcher = permcache.NewRedisDispatcher(redisClient, cfg.Cache.PushChannel, cache, logger, metrics)

		listenCtx, cancelListen := context.WithCancel(ctx)
		defer cancelListen()
		go func() {
			if err := cache.Listen(listenCtx, cfg.Cache.PushChannel); err != nil && listenCtx.Err() == nil {
				logger.WithError(err).Warn("Invalidation listener stopped")
			}
		}()

		scheduler = cron.New()
		if _, err := scheduler.AddFunc("@every "+cfg.Cache.SweepInterval.String(), func() {
			if removed := cache.SweepExpired(); removed > 0 {
				logger.WithField("removed", removed).Debug("Swept expired permission snapshots")
			}
		}); err != nil {
			logger.WithError(err).Error("Failed to schedule cache sweep")
			os.Exit(1)
		}
		scheduler.Start()
		logger.WithField("interval", cfg.Cache.SweepInterval.String()).Info("Permission cache enabled")
	}

	catalog := rbac.NewStore(db)
	workspaceStore := workspaces.NewStore(db)
	service := sections.NewPostgresService(db, workspaceStore, catalog, dispatcher, logger)
	handler := sections.NewHandler(service, cache, logger, metrics)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(httputil.LoggingMiddleware(logger))
	api.Use(httputil.RecoveryMiddleware(logger))
	api.Use(httputil.IdentityMiddleware)
	handler.RegisterRoutes(api)

	var rootHandler http.Handler = router
	if metrics != nil {
		rootHandler = metrics.InstrumentHandler("/api/v1", router)
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      rootHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, db, redisClient, registry)

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", server.Addr).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Health server shutdown failed")
	}
	logger.Info("Stopped")
}

func newHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", checker.Liveness)
	healthMux.HandleFunc("/readyz", checker.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}

	return &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
}
