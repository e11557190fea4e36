// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/parley/wire"
)

// Store is the server's message backlog. Implementations are safe for
// concurrent use; the server still serializes Append against ReplayAll
// so a joining client sees each message exactly once, either in its
// replay or live.
type Store interface {
	// Append adds text to the end of the backlog.
	Append(ctx context.Context, text wire.Text) error

	// ReplayAll returns the whole backlog, oldest first.
	ReplayAll(ctx context.Context) ([]wire.Text, error)

	Close() error
}

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "history: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Backend names accepted by Open. They match the server configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the Store for backend. path is ignored for "memory".
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		store, err := OpenFile(path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		store, err := OpenSQLite(path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("history: unknown backend %q", backend)
	}
}
