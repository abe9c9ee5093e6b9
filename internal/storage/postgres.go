package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricewatch/internal/config"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	// 表结构随应用创建,字段增删走新的 ALTER 语句。
	createResultsTableSQL = `CREATE TABLE IF NOT EXISTS monitoring_results (
        id            BIGSERIAL PRIMARY KEY,
        alert_id      TEXT        NOT NULL,
        product_id    TEXT        NOT NULL,
        triggered     BOOLEAN     NOT NULL,
        debounced     BOOLEAN     NOT NULL DEFAULT FALSE,
        current_price NUMERIC(20,8),
        target_price  NUMERIC(20,8) NOT NULL,
        error         TEXT,
        checked_at    TIMESTAMPTZ NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`

	createResultsIndexSQL = `CREATE INDEX IF NOT EXISTS monitoring_results_checked_at_idx
    ON monitoring_results (checked_at);`

	createStateTableSQL = `CREATE TABLE IF NOT EXISTS pricewatch_state (
        key        TEXT PRIMARY KEY,
        value      BYTEA       NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`

	putStateSQL = `INSERT INTO pricewatch_state (key, value, updated_at)
    VALUES ($1, $2, NOW())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        updated_at = NOW();`

	getStateSQL    = `SELECT value FROM pricewatch_state WHERE key = $1;`
	deleteStateSQL = `DELETE FROM pricewatch_state WHERE key = $1;`
	listStateSQL   = `SELECT key, value FROM pricewatch_state WHERE key LIKE $1 || '%';`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Store aggregates access to monitoring results and durable state.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables and indexes this store relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, stmt := range []string{
		createResultsTableSQL,
		createResultsIndexSQL,
		createStateTableSQL,
	} {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}

// Put stores a state value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, putStateSQL, key, value); execErr != nil {
		return fmt.Errorf("put state %s: %w", key, execErr)
	}
	return nil
}

// Get fetches a state value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	var value []byte
	scanErr := pool.QueryRow(ctx, getStateSQL, key).Scan(&value)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get state %s: %w", key, scanErr)
	}
	return value, true, nil
}

// Delete removes a state key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteStateSQL, key); execErr != nil {
		return fmt.Errorf("delete state %s: %w", key, execErr)
	}
	return nil
}

// List returns all state entries whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listStateSQL, prefix)
	if queryErr != nil {
		return nil, fmt.Errorf("list state %s: %w", prefix, queryErr)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if scanErr := rows.Scan(&key, &value); scanErr != nil {
			return nil, scanErr
		}
		out[key] = value
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

var _ KV = (*Store)(nil)
