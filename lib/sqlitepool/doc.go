// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens a small pool of SQLite connections with the
// pragmas Parley's server wants for an append-heavy chat log: WAL
// journaling so replay reads never block appends, NORMAL synchronous,
// and a busy timeout so concurrent writers wait instead of failing.
//
// The pool wraps zombiezen.com/go/sqlite/sqlitex. Callers Take a
// connection, use sqlitex helpers on it, and Put it back:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//	return sqlitex.Execute(conn, "INSERT INTO ...", &sqlitex.ExecOptions{Args: ...})
//
// Schema statements in Config.Schema run once per connection, so they
// must be idempotent (CREATE TABLE IF NOT EXISTS and friends).
package sqlitepool
