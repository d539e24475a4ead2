package drivetime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

const createCacheTable = `CREATE TABLE IF NOT EXISTS driving_time_cache (
	origin_key TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SQLStore keeps one row per origin key in PostgreSQL
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store on db
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the cache table if it does not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCacheTable); err != nil {
		return fmt.Errorf("create driving_time_cache: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT origin_key, payload FROM driving_time_cache`)
	if err != nil {
		return nil, fmt.Errorf("query driving_time_cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan driving_time_cache: %w", err)
		}
		entries[key] = json.RawMessage(payload)
	}
	return entries, rows.Err()
}

// Save replaces the table contents with the snapshot in one transaction
func (s *SQLStore) Save(ctx context.Context, entries map[string]json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM driving_time_cache`); err != nil {
		return fmt.Errorf("clear driving_time_cache: %w", err)
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO driving_time_cache (origin_key, payload, updated_at) VALUES ($1, $2, NOW())`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if _, err := stmt.ExecContext(ctx, k, []byte(entries[k])); err != nil {
				return fmt.Errorf("insert %s: %w", k, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
