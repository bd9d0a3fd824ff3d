// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package durable

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/labfoundry/labsync/pagecache"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	key         TEXT PRIMARY KEY,
	stored_at   INTEGER NOT NULL,
	compression INTEGER NOT NULL,
	payload     BLOB NOT NULL
) WITHOUT ROWID;
`

// Config holds the parameters for opening a SQLite durable store.
type Config struct {
	// Path is the database file path. ":memory:" gives a private
	// in-memory database (pool size is forced to 1 in that case,
	// since each in-memory connection is independent).
	Path string

	// PoolSize is the connection pool size. Zero means 4. Writes
	// serialize in SQLite regardless, so small pools suffice.
	PoolSize int

	// Compression selects the payload compression. The zero value
	// stores payloads uncompressed; configuration goes through
	// ParseCompression, which defaults an unset name to zstd.
	Compression Compression

	// Logger receives open/close messages. Nil means a no-op
	// logger; the durable tier is best-effort and must never be
	// noisy by default.
	Logger *slog.Logger
}

// SQLite is a pagecache.DurableStore backed by one SQLite database.
// Safe for concurrent use.
type SQLite struct {
	pool        *sqlitex.Pool
	compression Compression
	logger      *slog.Logger
	path        string
}

var _ pagecache.DurableStore = (*SQLite)(nil)

// Open creates or opens the database at cfg.Path and prepares the
// schema. The caller must Close the store when done.
func Open(cfg Config) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("durable: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	if cfg.Path == ":memory:" {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("durable: opening %s: %w", cfg.Path, err)
	}

	logger.Info("durable store opened",
		"path", cfg.Path,
		"compression", cfg.Compression.String(),
	)

	return &SQLite{
		pool:        pool,
		compression: cfg.Compression,
		logger:      logger,
		path:        cfg.Path,
	}, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("durable: closing %s: %w", s.path, err)
	}
	s.logger.Info("durable store closed", "path", s.path)
	return nil
}

// Get implements pagecache.DurableStore.
func (s *SQLite) Get(key string) ([]byte, time.Time, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("durable: get: %w", err)
	}
	defer s.pool.Put(conn)

	var payload []byte
	var storedAt time.Time
	var tag Compression
	found := false
	err = sqlitex.Execute(conn,
		`SELECT stored_at, compression, payload FROM pages WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				storedAt = time.UnixMilli(stmt.ColumnInt64(0)).UTC()
				tag = Compression(stmt.ColumnInt64(1))
				payload = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, payload)
				return nil
			},
		})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("durable: get %q: %w", key, err)
	}
	if !found {
		return nil, time.Time{}, pagecache.ErrNotFound
	}

	data, err := decompress(tag, payload)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("durable: get %q: %w", key, err)
	}
	return data, storedAt, nil
}

// Set implements pagecache.DurableStore.
func (s *SQLite) Set(key string, storedAt time.Time, data []byte) error {
	payload, err := compress(s.compression, data)
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("durable: set: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO pages (key, stored_at, compression, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   stored_at = excluded.stored_at,
		   compression = excluded.compression,
		   payload = excluded.payload`,
		&sqlitex.ExecOptions{
			Args: []any{key, storedAt.UnixMilli(), int64(s.compression), payload},
		})
	if err != nil {
		return fmt.Errorf("durable: set %q: %w", key, err)
	}
	return nil
}

// Remove implements pagecache.DurableStore.
func (s *SQLite) Remove(key string) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("durable: remove: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM pages WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{key}})
	if err != nil {
		return fmt.Errorf("durable: remove %q: %w", key, err)
	}
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	// WAL for concurrent readers; NORMAL survives process crashes,
	// which is plenty for a cache whose source of truth is the
	// server.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("durable: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("durable: schema: %w", err)
	}
	return nil
}
