// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/parley/lib/sqlitepool"
	"github.com/bureau-foundation/parley/wire"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	sender TEXT    NOT NULL,
	body   TEXT    NOT NULL,
	ts     INTEGER NOT NULL
);`

// SQLiteStore keeps the backlog in a "messages" table ordered by an
// autoincrement sequence.
type SQLiteStore struct {
	pool *sqlitepool.Pool
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 2,
		Schema:   sqliteSchema,
		Logger:   logger,
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	store := &SQLiteStore{pool: pool}

	// Take once so a bad path or schema fails here rather than on the
	// first chat message.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}
	pool.Put(conn)
	return store, nil
}

func (s *SQLiteStore) Append(ctx context.Context, text wire.Text) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO messages (sender, body, ts) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
		Args: []any{text.Sender, text.Body, text.Timestamp},
	})
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

func (s *SQLiteStore) ReplayAll(ctx context.Context) ([]wire.Text, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &StoreError{Op: "replay", Err: err}
	}
	defer s.pool.Put(conn)

	var messages []wire.Text
	err = sqlitex.Execute(conn, "SELECT sender, body, ts FROM messages ORDER BY seq", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			messages = append(messages, wire.Text{
				Sender:    stmt.ColumnText(0),
				Body:      stmt.ColumnText(1),
				Timestamp: stmt.ColumnInt64(2),
			})
			return nil
		},
	})
	if err != nil {
		return nil, &StoreError{Op: "replay", Err: err}
	}
	return messages, nil
}

func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return &StoreError{Op: "close", Err: err}
	}
	return nil
}
