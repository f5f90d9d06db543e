// Package oplog records one usage entry per dispatched operation and reads
// them back for the usage ledger.
package oplog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aidispatch/internal/infra"
	"aidispatch/internal/sqlinline"
)

// Status is the outcome recorded for an operation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// timeLayout sorts lexically in chronological order. Rows written before the
// microsecond layout still parse through the RFC 3339 fallback in List.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one append-only usage record.
type Entry struct {
	ID         string    `json:"id,omitempty"`
	IdentityID string    `json:"identityId"`
	UserSub    string    `json:"userSub,omitempty"`
	Provider   string    `json:"provider"`
	Operation  string    `json:"operation"`
	Model      string    `json:"model"`
	Status     Status    `json:"status"`
	RequestID  string    `json:"requestId,omitempty"`
	CostUSD    float64   `json:"costUsd"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Writer appends entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Reader lists an identity's entries, newest first.
type Reader interface {
	List(ctx context.Context, identityID string, limit int) ([]Entry, error)
}

// NopWriter is used when no log destination is configured.
type NopWriter struct{}

func (NopWriter) Write(context.Context, Entry) error { return nil }

// NopReader returns an empty ledger.
type NopReader struct{}

func (NopReader) List(context.Context, string, int) ([]Entry, error) { return nil, nil }

// FormatTime renders t the way created_at is stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// PostgresStore writes and reads entries in a configurable table.
type PostgresStore struct {
	sql   infra.SQLExecutor
	table string
}

func NewPostgresStore(sql infra.SQLExecutor, table string) *PostgresStore {
	return &PostgresStore{sql: sql, table: table}
}

// EnsureSchema creates the table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.WithTable(sqlinline.QCreateOperationLogTable, s.table)); err != nil {
		return fmt.Errorf("oplog: create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Write(ctx context.Context, e Entry) error {
	if e.IdentityID == "" {
		return fmt.Errorf("oplog: identity is required")
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	// id keeps entries landing in the same instant distinct.
	_, err := s.sql.Exec(ctx, sqlinline.WithTable(sqlinline.QInsertOperationLog, s.table),
		id, e.IdentityID, FormatTime(createdAt), e.UserSub, e.Provider, e.Operation, e.Model,
		string(e.Status), e.RequestID, e.CostUSD)
	if err != nil {
		return fmt.Errorf("oplog: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, identityID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.sql.Query(ctx, sqlinline.WithTable(sqlinline.QListOperationLogs, s.table), identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("oplog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
			status    string
		)
		if err := rows.Scan(&e.ID, &e.IdentityID, &createdAt, &e.UserSub, &e.Provider, &e.Operation, &e.Model, &status, &e.RequestID, &e.CostUSD); err != nil {
			return nil, fmt.Errorf("oplog: scan: %w", err)
		}
		e.Status = Status(status)
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			e.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("oplog: rows: %w", err)
	}
	return out, nil
}

// TotalCost sums the cost of entries.
func TotalCost(entries []Entry) float64 {
	var total float64
	for _, e := range entries {
		total += e.CostUSD
	}
	return total
}
