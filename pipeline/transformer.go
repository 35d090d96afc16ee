package pipeline

import (
	"bufio"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// watchlist is the fixed set of company pages the pipeline retains.
// Membership is an exact, case-sensitive match on the underscore-joined
// title as it appears in the dump.
var watchlist = map[string]struct{}{
	"Amazon":     {},
	"Apple_Inc.": {},
	"Facebook":   {},
	"Google":     {},
	"Microsoft":  {},
}

// csvHeader is the fixed column set of the transformed output.
var csvHeader = []string{"page_title_id", "page_title", "pageviews", "year", "month", "day", "hour"}

// Transformer filters an extracted pageviews file down to the watchlist
// and emits a CSV enriched with time partition columns.
type Transformer struct {
	logger *zap.Logger
}

func NewTransformer(logger *zap.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// parseExecutionHour parses a YYYYMMDD-HH execution timestamp; the hyphen
// is optional and normalized away before parsing.
func parseExecutionHour(executionHour string) (time.Time, error) {
	normalized := strings.ReplaceAll(executionHour, "-", "")
	ts, err := time.Parse("2006010215", normalized)
	if err != nil {
		return time.Time{}, wrapf(ErrFormat, err, "parse execution hour %q", executionHour)
	}
	return ts, nil
}

// Transform reads the extracted text at inputPath one line at a time and
// writes watchlist rows to outputPath, returning outputPath.
//
// Each line is split on whitespace; lines with fewer than 4 fields are
// skipped silently. Field 1 is the page title, field 2 the view count.
// Surrogate keys are assigned 1..N in input order, so one invocation's
// output always carries a dense key sequence. Every row is stamped with
// the year/month/day/hour derived once from executionHour.
//
// A watchlist row whose view count is not an integer aborts the whole
// transform with a format error rather than being skipped.
func (t *Transformer) Transform(inputPath, outputPath, executionHour string) (string, error) {
	t.logger.Info("starting transformation",
		zap.String("input", inputPath),
		zap.String("execution_hour", executionHour))

	ts, err := parseExecutionHour(executionHour)
	if err != nil {
		t.logger.Error("invalid execution hour", zap.String("execution_hour", executionHour), zap.Error(err))
		return "", err
	}
	year, month, day, hour := ts.Year(), int(ts.Month()), ts.Day(), ts.Hour()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		t.logger.Error("failed to create output directory", zap.String("output", outputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "create directory for %s", outputPath)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		t.logger.Error("failed to open input", zap.String("input", inputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "open %s", inputPath)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		t.logger.Error("failed to create output", zap.String("output", outputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "create %s", outputPath)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	if err := writer.Write(csvHeader); err != nil {
		return "", wrapf(ErrStorage, err, "write header to %s", outputPath)
	}

	pageTitleID := 1
	lineNum := 0
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		pageTitle, rawViews := fields[1], fields[2]
		if _, ok := watchlist[pageTitle]; !ok {
			continue
		}

		pageviews, err := strconv.Atoi(rawViews)
		if err != nil {
			t.logger.Error("unparseable view count",
				zap.String("input", inputPath),
				zap.Int("line", lineNum),
				zap.String("pageviews", rawViews))
			return "", wrapf(ErrFormat, err, "parse view count %q at %s:%d", rawViews, inputPath, lineNum)
		}

		row := []string{
			strconv.Itoa(pageTitleID),
			pageTitle,
			strconv.Itoa(pageviews),
			strconv.Itoa(year),
			strconv.Itoa(month),
			strconv.Itoa(day),
			strconv.Itoa(hour),
		}
		if err := writer.Write(row); err != nil {
			return "", wrapf(ErrStorage, err, "write row to %s", outputPath)
		}
		pageTitleID++
	}
	if err := scanner.Err(); err != nil {
		t.logger.Error("failed reading input", zap.String("input", inputPath), zap.Error(err))
		return "", wrapf(ErrStorage, err, "read %s", inputPath)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", wrapf(ErrStorage, err, "flush %s", outputPath)
	}

	t.logger.Info("transformation completed",
		zap.String("output", outputPath),
		zap.Int("records", pageTitleID-1))
	return outputPath, nil
}
