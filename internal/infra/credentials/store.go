// Package credentials reads and writes vendor API tokens kept in the
// integration_tokens table, for deployments that do not ship them in the
// environment.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
	"aidispatch/internal/sqlinline"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the integration_tokens table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QCreateIntegrationTokenTable); err != nil {
		return fmt.Errorf("credentials: create table: %w", err)
	}
	return nil
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider domain.ProviderName) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, string(provider))
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: select %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the environment value and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider domain.ProviderName, fromEnv string) (string, error) {
	if v := strings.TrimSpace(fromEnv); v != "" {
		return v, nil
	}
	if s == nil || s.sql == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// SetToken upserts the token for provider.
func (s *Store) SetToken(ctx context.Context, provider domain.ProviderName, token string, props map[string]any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, string(provider), token, raw); err != nil {
		return fmt.Errorf("credentials: upsert %s token: %w", provider, err)
	}
	return nil
}

// Entry describes a stored token without revealing it.
type Entry struct {
	Provider  string
	UpdatedAt time.Time
}

// List returns the providers that have a stored token.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationProviders)
	if err != nil {
		return nil, fmt.Errorf("credentials: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("credentials: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
