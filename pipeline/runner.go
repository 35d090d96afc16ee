package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/launchsignal/pageviews-pipeline/config"
)

// Names of the staging files derived from one snapshot.
const (
	extractedFileName   = "pageviews.txt"
	transformedFileName = "pageviews.csv"
)

// Runner wires the five stages into one strictly sequential pipeline run
// and reproduces the orchestrator retry policy as a wrapper around whole
// stage invocations. The stages themselves stay fail-fast and never retry.
type Runner struct {
	cfg         *config.Config
	logger      *zap.Logger
	downloader  *Downloader
	extractor   *Extractor
	transformer *Transformer
	loader      *Loader
	analyzer    *Analyzer

	sleep func(time.Duration)
}

func NewRunner(cfg *config.Config, db DB, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:         cfg,
		logger:      logger,
		downloader:  NewDownloader(cfg.DownloadTimeout(), logger),
		extractor:   NewExtractor(logger),
		transformer: NewTransformer(logger),
		loader:      NewLoader(db, logger),
		analyzer:    NewAnalyzer(db, cfg.Paths.AnalysisLog, logger),
		sleep:       time.Sleep,
	}
}

// SnapshotFileName builds the dump file name for one execution hour, by
// convention pageviews-{YYYYMMDD}-{HH}0000.gz.
func SnapshotFileName(executionHour string) string {
	return fmt.Sprintf("pageviews-%s0000.gz", executionHour)
}

// Run executes download, extract, transform, load and analyze in order,
// each output path becoming the next stage's input. After a successful
// run the summary is persisted; a summary write failure only warns.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	startedAt := timeNow()
	hour := r.cfg.Source.ExecutionHour
	fileName := SnapshotFileName(hour)
	url := strings.TrimSuffix(r.cfg.Source.BaseURL, "/") + "/" + fileName
	rawPath := filepath.Join(r.cfg.Paths.RawDir, fileName)
	textPath := filepath.Join(r.cfg.Paths.StagingDir, extractedFileName)
	csvPath := filepath.Join(r.cfg.Paths.StagingDir, transformedFileName)

	r.logger.Info("starting pipeline run",
		zap.String("execution_hour", hour),
		zap.String("url", url))

	summary := &RunSummary{
		ExecutionHour:  hour,
		StartedAt:      startedAt.UTC().Format(time.RFC3339),
		StageDurations: map[string]string{},
	}

	err := r.runStage(ctx, summary, "download", func() error {
		_, err := r.downloader.Download(ctx, url, rawPath)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.runStage(ctx, summary, "extract", func() error {
		_, err := r.extractor.Extract(rawPath, textPath)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.runStage(ctx, summary, "transform", func() error {
		_, err := r.transformer.Transform(textPath, csvPath, hour)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.runStage(ctx, summary, "load", func() error {
		inserted, skipped, err := r.loader.Load(ctx, csvPath)
		summary.RowsInserted = inserted
		summary.RowsSkipped = skipped
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.runStage(ctx, summary, "analyze", func() error {
		top, err := r.analyzer.Analyze(ctx)
		summary.TopPage = top
		return err
	})
	if err != nil {
		return nil, err
	}

	summary.Duration = timeNow().Sub(startedAt).String()
	if err := writeRunSummary(r.cfg.Paths.RunSummary, summary); err != nil {
		r.logger.Warn("failed to write run summary",
			zap.String("path", r.cfg.Paths.RunSummary),
			zap.Error(err))
	}

	r.logger.Info("pipeline run completed",
		zap.String("execution_hour", hour),
		zap.Int64("rows_inserted", summary.RowsInserted),
		zap.Int64("rows_skipped", summary.RowsSkipped),
		zap.String("duration", summary.Duration))
	return summary, nil
}

// runStage invokes one stage through the bounded retry wrapper and records
// how long it took overall.
func (r *Runner) runStage(ctx context.Context, summary *RunSummary, stage string, fn func() error) error {
	start := timeNow()
	err := r.withRetry(ctx, stage, fn)
	summary.StageDurations[stage] = timeNow().Sub(start).String()
	return err
}

// withRetry re-attempts a failed stage up to the configured number of
// retries with a fixed delay between attempts.
func (r *Runner) withRetry(ctx context.Context, stage string, fn func() error) error {
	attempts := r.cfg.Retry.Retries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.logger.Warn("retrying stage",
				zap.String("stage", stage),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts))
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			r.sleep(r.cfg.RetryDelay())
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		r.logger.Error("stage failed",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return fmt.Errorf("stage %s failed after %d attempts: %w", stage, attempts, err)
}

// timeNow is a variable to allow mocking in tests
var timeNow = time.Now
