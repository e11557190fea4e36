// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/history"
	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transport"
	"github.com/bureau-foundation/parley/wire"
)

// Config configures a Server. Only History is commonly set; the rest
// have working zero values.
type Config struct {
	// History stores and replays texts. Nil uses an in-memory store.
	History history.Store

	// WriteTimeout bounds each write to a client. Zero disables it: a
	// client that stops reading then stalls every broadcast that
	// reaches it. parley-server defaults this to 10s.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the wait for a new client's name. Zero
	// waits indefinitely.
	HandshakeTimeout time.Duration

	// MaxFileSize bounds relayed files. Zero means
	// wire.DefaultMaxFileSize.
	MaxFileSize int64

	// AnnouncePresence broadcasts "<name> joined" and "<name> left"
	// notices.
	AnnouncePresence bool

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server relays messages between connected clients.
type Server struct {
	config   Config
	history  history.Store
	registry *Registry
	clock    clock.Clock
	logger   *slog.Logger

	// sequence orders history appends against joins. See the package
	// documentation.
	sequence sync.Mutex

	// connections tracks every handler goroutine; Serve waits on it.
	connections sync.WaitGroup

	// live holds every session from accept to close, including those
	// still in the handshake, so shutdown can close them all.
	liveMu   sync.Mutex
	live     map[*session.Session]struct{}
	stopping bool
}

// New validates config and returns a Server ready to Serve.
func New(config Config) (*Server, error) {
	if config.WriteTimeout < 0 || config.HandshakeTimeout < 0 {
		return nil, errors.New("server: timeouts must not be negative")
	}
	if config.MaxFileSize < 0 {
		return nil, errors.New("server: MaxFileSize must not be negative")
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = wire.DefaultMaxFileSize
	}
	if config.History == nil {
		config.History = history.NewMemoryStore()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		config:   config,
		history:  config.History,
		registry: NewRegistry(logger),
		clock:    config.Clock,
		logger:   logger,
		live:     make(map[*session.Session]struct{}),
	}, nil
}

// Registry exposes the set of active sessions.
func (s *Server) Registry() *Registry { return s.registry }

// Serve accepts connections from listener until ctx is cancelled or the
// listener fails, handling each in its own goroutine. On the way out it
// closes the listener and every session, then waits for all handlers to
// return. It returns nil after a cancellation.
func (s *Server) Serve(ctx context.Context, listener transport.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-stop:
		}
	}()

	s.logger.Info("parley server listening", "address", listener.Address())

	var serveErr error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	listener.Close()
	if err := s.shutdown(); err != nil {
		s.logger.Warn("errors closing sessions during shutdown", "error", err)
	}
	s.connections.Wait()
	s.logger.Info("parley server stopped")
	if ctx.Err() == nil {
		serveErr = fmt.Errorf("server: listener %s closed", listener.Address())
	}
	return serveErr
}

// shutdown refuses new sessions and closes every live one.
func (s *Server) shutdown() error {
	s.liveMu.Lock()
	s.stopping = true
	sessions := make([]*session.Session, 0, len(s.live))
	for live := range s.live {
		sessions = append(sessions, live)
	}
	s.liveMu.Unlock()

	errs := []error{s.registry.CloseAll()}
	for _, live := range sessions {
		if err := live.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) track(live *session.Session) bool {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	if s.stopping {
		return false
	}
	s.live[live] = struct{}{}
	return true
}

func (s *Server) untrack(live *session.Session) {
	s.liveMu.Lock()
	delete(s.live, live)
	s.liveMu.Unlock()
}

// handleConnection runs one client from handshake to disconnect.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	client := session.New(conn, session.Config{
		WriteTimeout:     s.config.WriteTimeout,
		HandshakeTimeout: s.config.HandshakeTimeout,
		MaxFileSize:      s.config.MaxFileSize,
		Logger:           s.logger,
	})
	if !s.track(client) {
		client.Close()
		return
	}
	defer s.untrack(client)

	name, err := client.AwaitGreeting()
	if err != nil {
		switch {
		case errors.Is(err, session.ErrPeerClosed) || netutil.IsExpectedCloseError(err):
			s.logger.Debug("connection closed before handshake", "remote", client.RemoteAddr())
		case netutil.IsTimeout(err):
			s.logger.Info("handshake timed out", "remote", client.RemoteAddr(), "timeout", s.config.HandshakeTimeout)
		default:
			s.logger.Warn("handshake failed", "remote", client.RemoteAddr(), "error", err)
		}
		client.CloseWithReason(err)
		return
	}
	logger := s.logger.With("name", name, "session", client.ID())

	if err := s.join(ctx, client); err != nil {
		s.registry.Unregister(client)
		if errors.Is(err, ErrNameInUse) {
			logger.Info("rejected duplicate name", "remote", client.RemoteAddr())
			notice := s.notice(fmt.Sprintf("the name %q is already in use; choose another", name))
			notice.Code = wire.NoticeNameInUse
			if sendErr := client.Send(notice); sendErr != nil {
				logger.Debug("sending rejection notice", "error", sendErr)
			}
		} else {
			logger.Warn("join failed", "error", err)
		}
		client.CloseWithReason(err)
		return
	}

	logger.Info("client joined", "remote", client.RemoteAddr(), "clients", s.registry.Len())
	if s.config.AnnouncePresence {
		s.registry.Broadcast(s.notice(name+" joined"), client)
	}

	client.Run(&connectionHandler{server: s, ctx: ctx, logger: logger})
}

// join registers client and writes the backlog to it. The write lock is
// taken first and held until the backlog is out, so nothing broadcast
// after registration can reach the client ahead of it.
func (s *Server) join(ctx context.Context, client *session.Session) error {
	return client.Exclusive(func(send func(wire.Message) error) error {
		s.sequence.Lock()
		backlog, historyErr := s.history.ReplayAll(ctx)
		registerErr := s.registry.Register(client)
		s.sequence.Unlock()

		if registerErr != nil {
			return registerErr
		}
		if historyErr != nil {
			s.logger.Error("reading history for replay", "name", client.Name(), "error", historyErr)
		}
		for _, text := range backlog {
			if err := send(text); err != nil {
				return fmt.Errorf("replaying history: %w", err)
			}
		}
		return nil
	})
}

// notice is a server-originated text. It carries no sender and is never
// stored.
func (s *Server) notice(body string) wire.Text {
	return wire.Text{Body: body, Timestamp: s.clock.Now().UnixMilli()}
}

// connectionHandler receives one session's read-loop events.
type connectionHandler struct {
	server *Server
	ctx    context.Context
	logger *slog.Logger
}

func (h *connectionHandler) MessageReceived(from *session.Session, message wire.Message) {
	s := h.server
	switch m := message.(type) {
	case wire.Text:
		m.Sender = from.Name()
		m.Code = ""
		m.Timestamp = s.clock.Now().UnixMilli()
		h.logger.Info("text received", "length", len(m.Body))

		s.sequence.Lock()
		if err := s.history.Append(h.ctx, m); err != nil {
			h.logger.Error("appending to history", "error", err)
		}
		targets := s.registry.Snapshot(from)
		s.sequence.Unlock()

		s.registry.Deliver(targets, m)

	case wire.FileOffer:
		m.Sender = from.Name()
		h.logger.Info("file received",
			"file", m.Name,
			"size", m.Size,
			"mime", m.MimeHint,
			"compression", m.Compression,
		)
		delivered := s.registry.Broadcast(m, from)
		h.logger.Debug("file relayed", "file", m.Name, "recipients", delivered)

	default:
		h.logger.Warn("ignoring unexpected message", "type", fmt.Sprintf("%T", message))
	}
}

func (h *connectionHandler) SessionClosed(closed *session.Session, reason error) {
	s := h.server
	if !s.registry.Unregister(closed) {
		return
	}
	h.logger.Info("client left", "reason", reason, "clients", s.registry.Len())
	if s.config.AnnouncePresence {
		s.registry.Broadcast(s.notice(closed.Name()+" left"), closed)
	}
}
