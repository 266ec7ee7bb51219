package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/adapters/ai"
	"github.com/selivandex/trendcast/internal/adapters/clickhouse"
	"github.com/selivandex/trendcast/internal/adapters/config"
	"github.com/selivandex/trendcast/internal/adapters/database"
	"github.com/selivandex/trendcast/internal/adapters/redis"
	"github.com/selivandex/trendcast/internal/adapters/storage"
	"github.com/selivandex/trendcast/internal/adapters/telegram"
	"github.com/selivandex/trendcast/internal/analysis"
	"github.com/selivandex/trendcast/internal/api"
	"github.com/selivandex/trendcast/internal/backtest"
	"github.com/selivandex/trendcast/internal/workers"
	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/metrics"
	"github.com/selivandex/trendcast/pkg/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("trendcast starting",
		zap.Int("port", cfg.Server.Port),
		zap.Int("default_horizon_days", cfg.Forecast.DefaultHorizonDays),
	)

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.New(db.DB())

	// Request coalescing: cross-pod lock when Redis is up, in-process only
	// otherwise
	var lockFactory redis.LockFactory = redis.NewNoopLockFactory()
	var redisClient *redis.Client
	var trendCache analysis.TrendCache
	var invalidator workers.ShortlistInvalidator
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(&cfg.Redis, cfg.Forecast.CoalesceLockTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		lockFactory = redisClient.GetLockFactory()

		cache := redis.NewTrendCache(redisClient, cfg.Redis.ShortlistTTL)
		trendCache = cache
		invalidator = cache
	}
	coalescer := analysis.NewCoalescer(lockFactory)

	buffer := initMetrics(cfg)
	defer buffer.Close(context.Background())

	analyzer := backtest.NewAnalyzer().WithTopOutliers(cfg.Backtest.TopOutliers)
	if cfg.AI.Enabled {
		analyzer.WithSummarizer(ai.New(cfg.AI.OpenAIAPIKey, cfg.AI.Model))
		logger.Info("ai outlier summaries enabled", zap.String("model", cfg.AI.Model))
	}

	var alerts analysis.AlertSink
	if cfg.Telegram.Enabled {
		notifier, err := telegram.New(&cfg.Telegram)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		alerts = notifier
	}

	hub := api.NewHub()

	service, err := analysis.NewService(analysis.Deps{
		Store:     repo,
		Coalescer: coalescer,
		Analyzer:  analyzer,
		Metrics:   buffer,
		Alerts:    alerts,
		Broadcast: hub,
		Cache:     trendCache,
		Settings: analysis.Settings{
			DefaultHorizonDays: cfg.Forecast.DefaultHorizonDays,
			MaxHorizonDays:     cfg.Forecast.MaxHorizonDays,
			HistoryWindowDays:  cfg.Forecast.HistoryWindowDays,
			KeywordTimeout:     cfg.Forecast.KeywordTimeout,
			AnalysisTimeout:    cfg.Forecast.AnalysisTimeout,
			ShortlistSize:      cfg.Forecast.ShortlistSize,
			BacktestEnabled:    true,
			BacktestTimeout:    cfg.Backtest.Timeout,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create analysis service: %w", err)
	}

	workerGroup := worker.NewWorkerGroup(ctx)
	if cfg.Worker.RefreshEnabled {
		refresh := workers.NewRefreshWorker(service, repo, invalidator, cfg.Forecast.ConfidenceFloor)
		workerGroup.Add(refresh, cfg.Worker.RefreshInterval)
	}
	workerGroup.Start()

	checkers := map[string]api.HealthChecker{"postgres": db}
	if redisClient != nil {
		checkers["redis"] = redisClient
	}

	server := api.NewServer(&cfg.Server, service, hub, checkers)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")

	workerGroup.Stop(cfg.Worker.StopTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	return nil
}

// initDatabase initializes database connection with sqlx and runs migrations
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// initMetrics wires the ClickHouse analytics sink, or a no-op buffer when
// it is disabled
func initMetrics(cfg *config.Config) metrics.Buffer {
	if !cfg.ClickHouse.Enabled {
		return metrics.NoopBuffer{}
	}

	writer, err := clickhouse.New(cfg.ClickHouse.DSN)
	if err != nil {
		logger.Warn("clickhouse unavailable, analytics metrics disabled", zap.Error(err))
		return metrics.NoopBuffer{}
	}

	return metrics.NewBufferedMetrics(metrics.BufferConfig{Writer: writer})
}
