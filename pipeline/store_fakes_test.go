package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// storedRow mirrors one wikipedia_pageviews row.
type storedRow struct {
	id                     int
	title                  string
	views                  int
	year, month, day, hour int
}

// fakeStore is an in-memory stand-in for the wikipedia_pageviews table.
// Inserts honor conflict-skip semantics on the primary key and the top
// page query aggregates the currently committed rows, so loader and
// analyzer behavior can be exercised without a running Postgres.
type fakeStore struct {
	rows    map[int]storedRow
	order   []int // insertion order; the fake's "store-defined" tie-break
	created bool

	beginErr  error
	execErr   error
	commitErr error
	queryErr  error

	beginCount    int
	commitCount   int
	rollbackCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[int]storedRow{}}
}

func (s *fakeStore) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.beginCount++
	return &fakeTx{store: s, staged: map[int]storedRow{}}, nil
}

func (s *fakeStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryErr != nil {
		return fakeRow{err: s.queryErr}
	}

	type window struct {
		title                  string
		year, month, day, hour int
	}
	sums := map[window]int64{}
	var seen []window
	for _, id := range s.order {
		r := s.rows[id]
		w := window{r.title, r.year, r.month, r.day, r.hour}
		if _, ok := sums[w]; !ok {
			seen = append(seen, w)
		}
		sums[w] += int64(r.views)
	}
	if len(seen) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}

	top := seen[0]
	for _, w := range seen[1:] {
		if sums[w] > sums[top] {
			top = w
		}
	}
	return fakeRow{vals: []any{top.title, top.year, top.month, top.day, top.hour, sums[top]}}
}

// fakeTx stages inserts until Commit. The embedded pgx.Tx panics on any
// method the loader is not supposed to call.
type fakeTx struct {
	pgx.Tx
	store  *fakeStore
	staged map[int]storedRow
	order  []int
	done   bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.store.execErr != nil {
		return pgconn.CommandTag{}, t.store.execErr
	}
	if strings.HasPrefix(strings.TrimSpace(sql), "CREATE TABLE") {
		t.store.created = true
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}
	if len(args) != 7 {
		return pgconn.CommandTag{}, fmt.Errorf("expected 7 insert args, got %d", len(args))
	}

	row := storedRow{
		id:    args[0].(int),
		title: args[1].(string),
		views: args[2].(int),
		year:  args[3].(int),
		month: args[4].(int),
		day:   args[5].(int),
		hour:  args[6].(int),
	}
	if _, exists := t.store.rows[row.id]; exists {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	if _, exists := t.staged[row.id]; exists {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	t.staged[row.id] = row
	t.order = append(t.order, row.id)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.done = true
	t.store.commitCount++
	for _, id := range t.order {
		t.store.rows[id] = t.staged[id]
		t.store.order = append(t.store.order, id)
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.store.rollbackCount++
		t.done = true
	}
	return nil
}

// fakeRow implements pgx.Row for the analyzer query.
type fakeRow struct {
	err  error
	vals []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("expected %d scan targets, got %d", len(r.vals), len(dest))
	}
	for i, v := range r.vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *int64:
			*d = v.(int64)
		default:
			return fmt.Errorf("unsupported scan target %T", dest[i])
		}
	}
	return nil
}
