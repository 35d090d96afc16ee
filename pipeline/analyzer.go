package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const topPageSQL = `
SELECT
	page_title,
	year,
	month,
	day,
	hour,
	SUM(pageviews) AS total_pageviews
FROM wikipedia_pageviews
GROUP BY page_title, year, month, day, hour
ORDER BY total_pageviews DESC
LIMIT 1;`

// TopPage is the page/time-window with the highest summed view count.
type TopPage struct {
	PageTitle      string `json:"page_title"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	Day            int    `json:"day"`
	Hour           int    `json:"hour"`
	TotalPageviews int64  `json:"total_pageviews"`
}

// Report formats the one-line human-readable analysis result.
func (p *TopPage) Report() string {
	return fmt.Sprintf(
		"Most viewed Wikipedia page: '%s' | Total views: %d | Time window: %d-%02d-%02d at %02d:00",
		p.PageTitle, p.TotalPageviews, p.Year, p.Month, p.Day, p.Hour,
	)
}

// Analyzer computes the most viewed page over everything currently stored
// and appends each result to a persistent analysis log.
type Analyzer struct {
	db      DB
	logPath string
	logger  *zap.Logger
}

func NewAnalyzer(db DB, logPath string, logger *zap.Logger) *Analyzer {
	return &Analyzer{db: db, logPath: logPath, logger: logger}
}

// Analyze returns the top page, or (nil, nil) when the store is empty.
// The empty store is a defined state, not a failure: it logs a warning and
// leaves the analysis log untouched. On ties between groups the store
// decides which row wins; the query carries no secondary sort key.
func (a *Analyzer) Analyze(ctx context.Context) (*TopPage, error) {
	a.logger.Info("running analysis: most viewed page with time context")

	var top TopPage
	err := a.db.QueryRow(ctx, topPageSQL).Scan(
		&top.PageTitle, &top.Year, &top.Month, &top.Day, &top.Hour, &top.TotalPageviews,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		a.logger.Warn("no data found in wikipedia_pageviews table")
		return nil, nil
	}
	if err != nil {
		a.logger.Error("analysis query failed", zap.Error(err))
		return nil, wrapf(ErrDataStore, err, "query top page")
	}

	report := top.Report()
	if err := a.appendReport(report); err != nil {
		a.logger.Error("failed to write analysis log", zap.String("path", a.logPath), zap.Error(err))
		return nil, err
	}

	a.logger.Info("analysis completed", zap.String("report", report))
	return &top, nil
}

// appendReport appends one result line to the analysis log, creating the
// parent directory on first use. Previous lines are never overwritten.
func (a *Analyzer) appendReport(report string) error {
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0755); err != nil {
		return wrapf(ErrStorage, err, "create directory for %s", a.logPath)
	}
	f, err := os.OpenFile(a.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return wrapf(ErrStorage, err, "open %s", a.logPath)
	}
	defer f.Close()

	if _, err := f.WriteString(report + "\n"); err != nil {
		return wrapf(ErrStorage, err, "append to %s", a.logPath)
	}
	return nil
}
