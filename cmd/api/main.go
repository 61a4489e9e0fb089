package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/gamification/internal/achievement"
	"example.com/gamification/internal/api"
	"example.com/gamification/internal/auth"
	"example.com/gamification/internal/config"
	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/engine"
	"example.com/gamification/internal/formula"
	"example.com/gamification/internal/logging"
	"example.com/gamification/internal/outbox"
	persistence "example.com/gamification/internal/persistence/postgres"
	"example.com/gamification/internal/tracker"
	httptransport "example.com/gamification/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogMode, "gamification-api")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load achievement catalog", zap.String("path", cfg.CatalogPath), zap.Error(err))
	}

	repo := persistence.NewRepository(pool)
	service := buildService(repo, catalog, cfg)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	handler := api.NewHandler(service, repo, catalog)
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, handler.Router(authMiddleware))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	dispatcher.Wait()
}

// loadCatalog reads the configured TOML catalog, falling back to the built-in
// definitions when no path is set. A malformed catalog is fatal.
func loadCatalog(path string) (*achievement.Catalog, error) {
	defs := achievement.Default()
	if path != "" {
		loaded, err := achievement.LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = loaded
	}
	return achievement.NewCatalog(defs)
}

// buildService assembles the scoring pipeline with env-tunable caps.
func buildService(store domain.Store, catalog *achievement.Catalog, cfg config.Config) *domain.Service {
	registry := formula.NewRegistry(formula.DefaultTunables(), formula.DefaultCategories()...)

	engineCfg := engine.DefaultConfig()
	if cfg.SoftCapThreshold > 0 {
		engineCfg.SoftCapThreshold = cfg.SoftCapThreshold
	}
	if cfg.SoftCapDiscount > 0 {
		engineCfg.SoftCapDiscount = cfg.SoftCapDiscount
	}
	if cfg.MultiplierCeiling > 0 {
		engineCfg.MultiplierCeiling = cfg.MultiplierCeiling
	}

	trackerCfg := tracker.DefaultConfig()
	if cfg.GraceAllowance > 0 {
		trackerCfg.GraceAllowance = cfg.GraceAllowance
	}
	if cfg.GraceCadence == "weekly" {
		trackerCfg.ReplenishPeriod = domain.WeekStartOf
	}

	return domain.NewService(
		store,
		engine.New(registry, engineCfg),
		tracker.New(registry, trackerCfg),
		achievement.NewEvaluator(catalog),
		domain.WithGraceAllowance(trackerCfg.GraceAllowance),
	)
}
