package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (walink.credentials).
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("credstore: nil pool")
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureSchema creates the walink schema and credentials table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS walink;
		CREATE TABLE IF NOT EXISTS walink.credentials (
			session_key text        NOT NULL,
			name        text        NOT NULL,
			data        bytea       NOT NULL,
			updated_at  timestamptz NOT NULL,
			PRIMARY KEY (session_key, name)
		)
	`)
	return err
}

// OpenOrCreate implements Store.
func (s *PostgresStore) OpenOrCreate(ctx context.Context, key string) (*Context, SaveFunc, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, data
		FROM walink.credentials
		WHERE session_key = $1
	`, key)
	if err != nil {
		return nil, nil, fmt.Errorf("credstore: load %s: %w", key, err)
	}
	defer rows.Close()

	entries := make(map[string][]byte)
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, nil, err
		}
		entries[name] = data
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	c := NewContext(key, entries)
	save := newSaveFunc(c, func(ctx context.Context, u Update) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			now := s.now()
			for name, data := range u {
				if data == nil {
					if _, err := tx.Exec(ctx, `
						DELETE FROM walink.credentials
						WHERE session_key = $1 AND name = $2
					`, key, name); err != nil {
						return err
					}
					continue
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO walink.credentials (session_key, name, data, updated_at)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (session_key, name)
					DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
				`, key, name, data, now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return c, save, nil
}

// Discard implements Store.
func (s *PostgresStore) Discard(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM walink.credentials WHERE session_key = $1`, key)
	if err != nil {
		return fmt.Errorf("credstore: discard %s: %w", key, err)
	}
	return nil
}

// Close is a no-op: the pool is owned by the app.
func (s *PostgresStore) Close() error { return nil }
