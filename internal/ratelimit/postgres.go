package ratelimit

import (
	"context"
	"fmt"
	"time"

	"aidispatch/internal/infra"
	"aidispatch/internal/sqlinline"
)

// PostgresStore keeps windows in a table keyed by (user_id, window_start).
// Expired rows are hidden from reads and removed by Purge.
type PostgresStore struct {
	sql   infra.SQLExecutor
	table string
	now   func() time.Time
}

func NewPostgresStore(sql infra.SQLExecutor, table string, now func() time.Time) *PostgresStore {
	if table == "" {
		table = "rate_limits"
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{sql: sql, table: table, now: now}
}

// EnsureSchema creates the table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, s.q(sqlinline.QCreateRateLimitTable)); err != nil {
		return fmt.Errorf("ratelimit: create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string, windowStart int64) (*Window, error) {
	w := Window{UserID: userID, WindowStart: windowStart}
	err := s.sql.QueryRow(ctx, s.q(sqlinline.QSelectRateLimitWindow), userID, windowStart, s.now().Unix()).
		Scan(&w.Operations, &w.TTL)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) Increment(ctx context.Context, userID string, windowStart, ttl int64) error {
	var operations int
	return s.sql.QueryRow(ctx, s.q(sqlinline.QIncrementRateLimitWindow), userID, windowStart, ttl).Scan(&operations)
}

func (s *PostgresStore) Create(ctx context.Context, userID string, windowStart, ttl int64) error {
	tag, err := s.sql.Exec(ctx, s.q(sqlinline.QCreateRateLimitWindow), userID, windowStart, ttl)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowExists
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string, windowStart int64) error {
	_, err := s.sql.Exec(ctx, s.q(sqlinline.QDeleteRateLimitWindow), userID, windowStart)
	return err
}

// Purge deletes rows whose ttl is at or before now.
func (s *PostgresStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.sql.Exec(ctx, s.q(sqlinline.QPurgeRateLimitWindows), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("ratelimit: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) q(query string) string {
	return sqlinline.WithTable(query, s.table)
}
