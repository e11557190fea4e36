// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps the chat backlog the server replays to every
// client that joins.
//
// A [Store] is an ordered, append-only sequence of wire.Text messages.
// Three backends implement it:
//
//   - [MemoryStore]: lost on restart, used in tests and ephemeral servers.
//   - [FileStore]: an append-only CBOR sequence (RFC 8742), one record
//     per message. A record cut short by a crash is dropped on open.
//   - [SQLiteStore]: a single table in a WAL-mode SQLite database
//     through lib/sqlitepool.
//
// No backend promises durability across a crash beyond what the
// operating system happens to flush. Failures are reported as
// [*StoreError]; the server logs them and keeps relaying.
package history
