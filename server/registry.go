// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/wire"
)

// ErrNameInUse rejects a join whose display name is already connected.
var ErrNameInUse = errors.New("name already in use")

// Registry maps display names to active sessions. It is safe for
// concurrent use.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewRegistry returns an empty registry. A nil logger discards.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*session.Session),
	}
}

// Register activates a greeted session and adds it under its name.
func (r *Registry) Register(s *session.Session) error {
	name := s.Name()
	if name == "" {
		return errors.New("registering a session without a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.State() == session.StateClosed {
		return session.ErrClosed
	}
	if existing, ok := r.sessions[name]; ok && existing != s {
		return fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	if err := s.Activate(); err != nil {
		return err
	}
	r.sessions[name] = s
	return nil
}

// Unregister removes s if, and only if, s is the session registered
// under its name. It reports whether anything was removed.
func (r *Registry) Unregister(s *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := s.Name()
	if existing, ok := r.sessions[name]; ok && existing == s {
		delete(r.sessions, name)
		return true
	}
	return false
}

// Snapshot returns the registered sessions other than exclude, ordered
// by name.
func (r *Registry) Snapshot(exclude *session.Session) []*session.Session {
	r.mu.Lock()
	targets := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != exclude {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()
	slices.SortFunc(targets, func(a, b *session.Session) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return targets
}

// Broadcast sends message to every registered session except exclude
// and returns how many received it.
func (r *Registry) Broadcast(message wire.Message, exclude *session.Session) int {
	return r.Deliver(r.Snapshot(exclude), message)
}

// Deliver sends message to each target in turn, outside the registry
// lock. A target whose write fails is unregistered and closed; delivery
// to the rest continues. It returns the number of successful sends.
func (r *Registry) Deliver(targets []*session.Session, message wire.Message) int {
	delivered := 0
	for _, target := range targets {
		if err := target.Send(message); err != nil {
			if !errors.Is(err, session.ErrClosed) {
				r.logger.Warn("dropping client after failed write",
					"name", target.Name(),
					"session", target.ID(),
					"error", err,
				)
			}
			r.Unregister(target)
			target.CloseWithReason(fmt.Errorf("delivering %s: %w", message.Tag(), err))
			continue
		}
		delivered++
	}
	return delivered
}

// Names returns the registered display names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.Unlock()
	slices.Sort(names)
	return names
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll empties the registry and closes every session that was in
// it. Close failures are joined into the result.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()

	var errs []error
	for name, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
