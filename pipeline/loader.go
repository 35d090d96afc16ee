package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DB is the subset of pgxpool.Pool the store-backed stages need.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS wikipedia_pageviews (
	page_title_id INTEGER PRIMARY KEY,
	page_title TEXT NOT NULL,
	pageviews INTEGER NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	day INTEGER NOT NULL,
	hour INTEGER NOT NULL
);`

const insertRowSQL = `
INSERT INTO wikipedia_pageviews (page_title_id, page_title, pageviews, year, month, day, hour)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (page_title_id) DO NOTHING;`

// Loader writes transformed CSV rows into the wikipedia_pageviews table.
type Loader struct {
	db     DB
	logger *zap.Logger
}

func NewLoader(db DB, logger *zap.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

// Load ensures the table exists and inserts every row from csvPath inside
// a single transaction. Rows whose primary key already exists are skipped,
// so reloading the same file is a no-op after the first load. Any failure
// rolls the whole transaction back; nothing partial ever commits.
// Returns the number of rows newly inserted and the number skipped.
func (l *Loader) Load(ctx context.Context, csvPath string) (inserted, skipped int64, err error) {
	l.logger.Info("loading transformed data", zap.String("file", csvPath))

	f, err := os.Open(csvPath)
	if err != nil {
		l.logger.Error("failed to open csv", zap.String("file", csvPath), zap.Error(err))
		return 0, 0, wrapf(ErrStorage, err, "open %s", csvPath)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		l.logger.Error("failed to read csv header", zap.String("file", csvPath), zap.Error(err))
		return 0, 0, wrapf(ErrFormat, err, "read header of %s", csvPath)
	}
	if !slices.Equal(header, csvHeader) {
		err := fmt.Errorf("expected columns %v, got %v", csvHeader, header)
		return 0, 0, wrapf(ErrFormat, err, "validate header of %s", csvPath)
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		l.logger.Error("failed to begin transaction", zap.Error(err))
		return 0, 0, wrapf(ErrDataStore, err, "begin transaction")
	}
	// Rollback is a no-op once the transaction has committed; deferring it
	// guarantees release on every exit path.
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createTableSQL); err != nil {
		l.logger.Error("failed to ensure table", zap.Error(err))
		return 0, 0, wrapf(ErrDataStore, err, "create wikipedia_pageviews")
	}

	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			l.logger.Error("failed to read csv row", zap.String("file", csvPath), zap.Int("row", rowNum), zap.Error(err))
			return 0, 0, wrapf(ErrFormat, err, "read row %d of %s", rowNum, csvPath)
		}

		args, err := rowArgs(record)
		if err != nil {
			l.logger.Error("malformed csv row", zap.String("file", csvPath), zap.Int("row", rowNum), zap.Error(err))
			return 0, 0, wrapf(ErrFormat, err, "parse row %d of %s", rowNum, csvPath)
		}

		tag, err := tx.Exec(ctx, insertRowSQL, args...)
		if err != nil {
			l.logger.Error("insert failed, rolling back", zap.String("file", csvPath), zap.Int("row", rowNum), zap.Error(err))
			return 0, 0, wrapf(ErrDataStore, err, "insert row %d of %s", rowNum, csvPath)
		}
		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		l.logger.Error("commit failed", zap.Error(err))
		return 0, 0, wrapf(ErrDataStore, err, "commit load of %s", csvPath)
	}

	l.logger.Info("load completed",
		zap.String("file", csvPath),
		zap.Int64("inserted", inserted),
		zap.Int64("skipped", skipped))
	return inserted, skipped, nil
}

// rowArgs converts one CSV record to typed insert arguments.
func rowArgs(record []string) ([]any, error) {
	if len(record) != len(csvHeader) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(csvHeader), len(record))
	}
	args := make([]any, len(record))
	for i, field := range record {
		if i == 1 { // page_title stays a string
			args[i] = field
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", csvHeader[i], err)
		}
		args[i] = n
	}
	return args, nil
}
