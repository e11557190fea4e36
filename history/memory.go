// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/parley/wire"
)

// MemoryStore holds the backlog in a slice.
type MemoryStore struct {
	mu       sync.Mutex
	messages []wire.Text
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, text wire.Text) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

func (m *MemoryStore) ReplayAll(ctx context.Context) ([]wire.Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "replay", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages), nil
}

func (m *MemoryStore) Close() error { return nil }
