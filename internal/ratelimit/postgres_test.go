package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	query string
	args  []any
}

type stubSQL struct {
	execs       []execCall
	rowsAffect  int64
	row         stubRow
	queryRowSQL string
	queryArgs   []any
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if s.rowsAffect > 0 {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queryRowSQL = query
	s.queryArgs = args
	return s.row
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	operations int
	ttl        int64
	err        error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if p, ok := dest[0].(*int); ok {
		*p = r.operations
	}
	if len(dest) > 1 {
		if p, ok := dest[1].(*int64); ok {
			*p = r.ttl
		}
	}
	return nil
}

func fixedNow() time.Time { return testNow }

func TestPostgresStoreGetHidesExpiredRows(t *testing.T) {
	sql := &stubSQL{row: stubRow{operations: 4, ttl: testNow.Unix() + 100}}
	store := NewPostgresStore(sql, "limits", fixedNow)

	w, err := store.Get(context.Background(), "user-1", 3600)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w == nil || w.Operations != 4 {
		t.Fatalf("unexpected window %+v", w)
	}
	if !strings.Contains(sql.queryRowSQL, `from "limits"`) {
		t.Fatalf("table name not applied: %s", sql.queryRowSQL)
	}
	if got := sql.queryArgs[2]; got != testNow.Unix() {
		t.Fatalf("ttl filter arg = %v, want now", got)
	}
}

func TestPostgresStoreGetNoRows(t *testing.T) {
	store := NewPostgresStore(&stubSQL{row: stubRow{err: pgx.ErrNoRows}}, "", fixedNow)
	w, err := store.Get(context.Background(), "user-1", 3600)
	if err != nil || w != nil {
		t.Fatalf("expected nil window, got %+v, %v", w, err)
	}
}

func TestPostgresStoreCreateReportsExisting(t *testing.T) {
	store := NewPostgresStore(&stubSQL{}, "", fixedNow)
	if err := store.Create(context.Background(), "user-1", 3600, 10800); !errors.Is(err, ErrWindowExists) {
		t.Fatalf("expected ErrWindowExists, got %v", err)
	}
	store = NewPostgresStore(&stubSQL{rowsAffect: 1}, "", fixedNow)
	if err := store.Create(context.Background(), "user-1", 3600, 10800); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestPostgresStorePurgeUsesNow(t *testing.T) {
	sql := &stubSQL{rowsAffect: 1}
	store := NewPostgresStore(sql, "", fixedNow)
	if _, err := store.Purge(context.Background(), testNow); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(sql.execs) != 1 || sql.execs[0].args[0] != testNow.Unix() {
		t.Fatalf("unexpected purge call %+v", sql.execs)
	}
	if !strings.Contains(sql.execs[0].query, `delete from "rate_limits"`) {
		t.Fatalf("default table not applied: %s", sql.execs[0].query)
	}
}
