package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	notifyChannel = "room_documents"

	createTableSQL = `
CREATE TABLE IF NOT EXISTS room_documents (
    key  TEXT PRIMARY KEY,
    data JSONB NOT NULL
)`
)

// PostgresStore is a Store backed by a single jsonb table, with change
// delivery carried by LISTEN/NOTIFY. Each write issues a notification on a
// shared channel keyed by document key, which gives the at-least-once,
// unordered delivery the contract asks for.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to the database and ensures the document table
// exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create room_documents table: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Set writes the whole document at key.
func (s *PostgresStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_documents (key, data) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set document %s: %w", key, err)
	}
	return s.announce(ctx, key)
}

// Update merges top-level fields into the document at key using jsonb
// concatenation.
func (s *PostgresStore) Update(ctx context.Context, key string, fields map[string]json.RawMessage) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE room_documents SET data = data || $2::jsonb WHERE key = $1`,
		key, patch)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return s.announce(ctx, key)
}

// Remove deletes the document at key.
func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM room_documents WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove document %s: %w", key, err)
	}
	return s.announce(ctx, key)
}

// Get fetches the document at key.
func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var data json.RawMessage
	err := s.pool.QueryRow(ctx, `SELECT data FROM room_documents WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return data, nil
}

// Watch holds a dedicated connection listening for notifications on key and
// re-fetches the document on each one.
func (s *PostgresStore) Watch(ctx context.Context, key string, fn func(json.RawMessage)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)

	conn, err := s.pool.Acquire(watchCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(watchCtx, `LISTEN `+notifyChannel); err != nil {
		conn.Release()
		cancel()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					s.logger.Warn("notification wait failed",
						zap.String("key", key),
						zap.Error(err),
					)
				}
				return
			}
			if notification.Payload != key {
				continue
			}
			data, err := s.Get(watchCtx, key)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				s.logger.Warn("failed to fetch document after notification",
					zap.String("key", key),
					zap.Error(err),
				)
				continue
			}
			fn(data)
		}
	}()

	return cancel, nil
}

func (s *PostgresStore) announce(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, key); err != nil {
		return fmt.Errorf("failed to notify change for %s: %w", key, err)
	}
	return nil
}
