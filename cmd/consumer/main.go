package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/gamification/internal/achievement"
	"example.com/gamification/internal/config"
	"example.com/gamification/internal/consumer"
	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/engine"
	"example.com/gamification/internal/formula"
	"example.com/gamification/internal/logging"
	persistence "example.com/gamification/internal/persistence/postgres"
	"example.com/gamification/internal/tracker"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogMode, "gamification-consumer")
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
	handler := consumer.NewScoringHandler(service, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		logger.Info("metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroup,
		Topic:           cfg.ActivityTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer reader.Close()

		logger.Info("consumer started",
			zap.String("topic", cfg.ActivityTopic),
			zap.String("group", cfg.ConsumerGroup),
		)
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped with error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	wg.Wait()
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
