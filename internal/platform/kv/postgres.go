package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStore keeps values in a (key text, value jsonb) table, with counters
// in a companion <table>_sequences table.
type PostgresStore struct {
	db        dbtx
	table     string
	sequences string
	namespace string
}

// NewPostgresStore wraps a pool or transaction. table defaults to kv_store.
func NewPostgresStore(db dbtx, table, namespace string) *PostgresStore {
	if table == "" {
		table = "kv_store"
	}
	return &PostgresStore{
		db:        db,
		table:     pgx.Identifier{table}.Sanitize(),
		sequences: pgx.Identifier{table + "_sequences"}.Sanitize(),
		namespace: namespace,
	}
}

// EnsureSchema creates the backing tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value JSONB NOT NULL)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value BIGINT NOT NULL)`, s.sequences),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("kv/postgres: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) key(k string) string {
	return s.namespace + k
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table), s.key(key)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv/postgres: get %s: %w", key, err)
	}
	return raw, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, s.table)
	if _, err := s.db.Exec(ctx, query, s.key(key), []byte(value)); err != nil {
		return fmt.Errorf("kv/postgres: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), s.key(key)); err != nil {
		return fmt.Errorf("kv/postgres: delete %s: %w", key, err)
	}
	return nil
}

// GetByPrefix implements Store.
func (s *PostgresStore) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key LIKE $1 ESCAPE '\'`, s.table)
	rows, err := s.db.Query(ctx, query, escapeLike(s.key(prefix))+"%")
	if err != nil {
		return nil, fmt.Errorf("kv/postgres: scan %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("kv/postgres: scan row: %w", err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv/postgres: scan %s: %w", prefix, err)
	}
	return out, nil
}

// Next implements Sequencer with a single upsert so concurrent callers never
// observe the same value.
func (s *PostgresStore) Next(ctx context.Context, name string) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO %[1]s (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = %[1]s.value + 1
RETURNING value`, s.sequences)
	var v int64
	if err := s.db.QueryRow(ctx, query, s.key(name)).Scan(&v); err != nil {
		return 0, fmt.Errorf("kv/postgres: next %s: %w", name, err)
	}
	return v, nil
}

// SeedIfAbsent implements Sequencer.
func (s *PostgresStore) SeedIfAbsent(ctx context.Context, name string, value int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, s.sequences)
	if _, err := s.db.Exec(ctx, query, s.key(name), value); err != nil {
		return fmt.Errorf("kv/postgres: seed %s: %w", name, err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
