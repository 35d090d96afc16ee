package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/launchsignal/pageviews-pipeline/config"
	"github.com/launchsignal/pageviews-pipeline/pipeline"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting pageviews-etl",
		zap.String("execution_hour", cfg.Source.ExecutionHour),
		zap.String("base_url", cfg.Source.BaseURL),
		zap.String("postgres", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)))

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	dbpool, err := pgxpool.New(ctx, cfg.GetPostgresConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	runner := pipeline.NewRunner(cfg, dbpool, logger)
	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Error("pipeline run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	if summary.TopPage != nil {
		logger.Info("run result", zap.String("report", summary.TopPage.Report()))
	}
}

// newLogger builds a zap logger from the logging config section.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	if cfg.Logging.Format == "console" {
		zapCfg.Encoding = "console"
	}
	return zapCfg.Build()
}
