package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/auth"
	"github.com/bitebase/intelligence-engine/pkg/cache"
	"github.com/bitebase/intelligence-engine/pkg/config"
	"github.com/bitebase/intelligence-engine/pkg/database"
	"github.com/bitebase/intelligence-engine/pkg/handlers"
	"github.com/bitebase/intelligence-engine/pkg/metrics"
	"github.com/bitebase/intelligence-engine/pkg/middleware"
	"github.com/bitebase/intelligence-engine/pkg/nlq"
	"github.com/bitebase/intelligence-engine/pkg/repositories"
	"github.com/bitebase/intelligence-engine/pkg/services"
	"github.com/bitebase/intelligence-engine/pkg/services/workqueue"
	"github.com/bitebase/intelligence-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsDir = "migrations"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.String("warehouse", cfg.Warehouse.Host),
		zap.Bool("redis_configured", cfg.Redis.Host != ""))

	metrics.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Engine store: query history and pattern aggregates.
	engineDB, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to engine store", zap.Error(err))
	}
	defer engineDB.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Analytics warehouse: read-only target for generated SQL.
	warehouseDB, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Warehouse.URL(),
		MaxConnections: cfg.Warehouse.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to warehouse", zap.Error(err))
	}
	defer warehouseDB.Close()

	store, cacheName, err := newCacheStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()
	logger.Info("Query cache ready", zap.String("backend", cacheName))

	// Pipeline stages.
	templates, err := nlq.LoadTemplates()
	if err != nil {
		logger.Fatal("Failed to load intent templates", zap.Error(err))
	}
	gazetteer := nlq.DefaultGazetteer()
	scorer, err := nlq.NewScorer(nlq.Weights{
		Intent:           cfg.NLQ.WeightIntent,
		Entity:           cfg.NLQ.WeightEntity,
		SQL:              cfg.NLQ.WeightSQL,
		DataAvailability: cfg.NLQ.WeightDataAvailability,
		Historical:       cfg.NLQ.WeightHistorical,
	})
	if err != nil {
		logger.Fatal("Failed to create confidence scorer", zap.Error(err))
	}

	historyRepo := repositories.NewHistoryRepository(engineDB)
	patternRepo := repositories.NewPatternRepository(engineDB)

	executor := warehouse.NewExecutor(warehouseDB, cfg.NLQ.MaxResultRows, logger)
	catalog := warehouse.NewCatalog(warehouseDB, cfg.Warehouse.Schema, logger)

	queryService := services.NewQueryService(
		templates, gazetteer, scorer,
		store, cacheName,
		historyRepo, patternRepo,
		executor, catalog,
		cfg.NLQ, logger)

	feedbackQueue := workqueue.New(logger)
	feedbackService := services.NewFeedbackService(historyRepo, feedbackQueue, logger)

	retentionService := services.NewRetentionService(historyRepo, cfg.Retention, logger)
	if err := retentionService.Start(); err != nil {
		logger.Fatal("Failed to start retention scheduler", zap.Error(err))
	}

	// Auth boundary: JWKS-verified bearer tokens from the identity service.
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	nlqHandler := handlers.NewNLQHandler(queryService, feedbackService, historyRepo, logger)
	nlqHandler.RegisterRoutes(mux, authMiddleware)

	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting bitebase-intelligence",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	retentionService.Stop()
	// Drain queued feedback before the pool closes under it.
	if err := feedbackService.Close(shutdownCtx); err != nil {
		logger.Error("Feedback applier drain failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

// newLogger builds the process logger: human-readable in local development,
// JSON in deployed environments.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations applies pending engine-store migrations through the stdlib
// driver golang-migrate expects.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return database.RunMigrations(sqlDB, migrationsDir, logger)
}

// newCacheStore picks the cache backend: Redis when configured, otherwise the
// in-process TTL map. Both are fail-open; the engine runs fine without Redis.
func newCacheStore(cfg *config.Config, logger *zap.Logger) (cache.Store, string, error) {
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, "", err
	}
	if redisClient == nil {
		return cache.NewMemoryStore(cfg.NLQ.CacheTTL()), "memory", nil
	}
	return cache.NewRedisStore(redisClient, cfg.NLQ.CacheTTL(), logger), "redis", nil
}
