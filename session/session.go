// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/wire"
)

var (
	// ErrClosed is returned by operations on a Closed session. Nothing
	// is written.
	ErrClosed = errors.New("session closed")

	// ErrPeerClosed is the close reason when the remote end hung up.
	ErrPeerClosed = errors.New("peer closed the connection")

	// ErrClosedLocally is the close reason after Close.
	ErrClosedLocally = errors.New("session closed locally")

	errRunning = errors.New("session read loop already started")
)

// State is a session's lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config tunes a Session. The zero value is usable: no deadlines, the
// default file size limit, and discarded logs.
type Config struct {
	// WriteTimeout bounds each Send. Zero disables the bound, which lets
	// a peer that stops reading block its writers indefinitely.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds AwaitGreeting. Zero waits forever.
	HandshakeTimeout time.Duration

	// MaxFileSize is passed to the wire decoder.
	MaxFileSize int64

	Logger *slog.Logger
}

// Handler receives read-loop events. Both methods run on the goroutine
// that called Run.
type Handler interface {
	// MessageReceived is called for every decoded message, in stream
	// order.
	MessageReceived(session *Session, message wire.Message)

	// SessionClosed is called exactly once when the read loop stops.
	// reason is ErrPeerClosed, ErrClosedLocally, or the error that
	// broke the stream.
	SessionClosed(session *Session, reason error)
}

// HandlerFuncs adapts two functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	OnMessage func(*Session, wire.Message)
	OnClosed  func(*Session, error)
}

func (h HandlerFuncs) MessageReceived(session *Session, message wire.Message) {
	if h.OnMessage != nil {
		h.OnMessage(session, message)
	}
}

func (h HandlerFuncs) SessionClosed(session *Session, reason error) {
	if h.OnClosed != nil {
		h.OnClosed(session, reason)
	}
}

// Session owns one connection. All methods are safe for concurrent use
// except that Run and AwaitGreeting share the single reader and must not
// overlap.
type Session struct {
	id      string
	conn    net.Conn
	decoder *wire.Decoder
	config  Config
	logger  *slog.Logger

	// writeMu serializes every write to conn.
	writeMu sync.Mutex

	state   atomic.Int32
	running atomic.Bool

	nameMu sync.RWMutex
	name   string

	closeOnce sync.Once
	done      chan struct{}
	reason    error
}

// New wraps conn in a Connecting session with a fresh ID. The session
// takes ownership of conn.
func New(conn net.Conn, config Config) *Session {
	id := uuid.NewString()
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		id:      id,
		conn:    conn,
		decoder: wire.NewDecoder(conn, config.MaxFileSize),
		config:  config,
		logger:  logger.With("session", id),
		done:    make(chan struct{}),
	}
}

// ID is a random identifier for logs. It is not the display name.
func (s *Session) ID() string { return s.id }

// Name is the display name from the handshake, or empty before it.
func (s *Session) Name() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.nameMu.Lock()
	s.name = name
	s.nameMu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session is Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the close reason, or nil while the session is open.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.reason
	default:
		return nil
	}
}

// RemoteAddr returns the peer address for logs.
func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Greet sends the handshake line and activates the session. Client side
// only.
func (s *Session) Greet(name string) error {
	if s.State() != StateConnecting {
		return fmt.Errorf("greeting in state %s: %w", s.State(), ErrClosed)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.applyWriteDeadline(); err != nil {
		return err
	}
	if err := wire.WriteHandshake(s.conn, name); err != nil {
		return err
	}
	valid, _ := wire.ValidateName(name)
	s.setName(valid)
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return ErrClosed
	}
	return nil
}

// AwaitGreeting reads the handshake line and records the name. The
// session stays Connecting until Activate. Server side only.
func (s *Session) AwaitGreeting() (string, error) {
	if s.config.HandshakeTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout)); err != nil {
			return "", fmt.Errorf("setting handshake deadline: %w", err)
		}
	}
	name, err := s.decoder.ReadHandshake()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrPeerClosed
		}
		return "", err
	}
	if s.config.HandshakeTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
			return "", fmt.Errorf("clearing handshake deadline: %w", err)
		}
	}
	s.setName(name)
	return name, nil
}

// Activate moves a greeted session from Connecting to Active.
func (s *Session) Activate() error {
	if s.Name() == "" {
		return errors.New("activating a session before its handshake")
	}
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		if s.State() == StateClosed {
			return ErrClosed
		}
		return fmt.Errorf("activating a session in state %s", s.State())
	}
	return nil
}

// Run reads messages until the stream ends or the session is closed,
// then closes the session and reports the reason to handler. It returns
// the same reason. Run may be called once.
func (s *Session) Run(handler Handler) error {
	if !s.running.CompareAndSwap(false, true) {
		return errRunning
	}
	for {
		message, err := s.decoder.Next()
		if err != nil {
			s.CloseWithReason(s.classify(err))
			break
		}
		handler.MessageReceived(s, message)
	}

	reason := s.Err()
	if errors.Is(reason, ErrPeerClosed) || errors.Is(reason, ErrClosedLocally) {
		s.logger.Debug("session closed", "name", s.Name(), "reason", reason)
	} else {
		s.logger.Warn("session closed with error", "name", s.Name(), "error", reason)
	}
	handler.SessionClosed(s, reason)
	return reason
}

// classify turns a read error into a close reason. It only matters when
// the read loop is the first to close the session; after a local Close
// the reason is already set.
func (s *Session) classify(err error) error {
	var framingErr *wire.FramingError
	switch {
	case errors.As(err, &framingErr):
		return err
	case netutil.IsExpectedCloseError(err):
		return ErrPeerClosed
	default:
		return err
	}
}

// Send writes one message. A FileOffer's header and payload go out under
// one lock, so no other frame can land between them. A failed write
// leaves the stream in an unknown position, so the session is closed.
func (s *Session) Send(message wire.Message) error {
	if s.State() == StateClosed {
		return ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.sendLocked(message)
}

// Exclusive calls fn with the write lock held. Messages passed to send
// go out back to back with nothing from other goroutines between them.
func (s *Session) Exclusive(fn func(send func(wire.Message) error) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.State() == StateClosed {
		return ErrClosed
	}
	return fn(s.sendLocked)
}

func (s *Session) sendLocked(message wire.Message) error {
	if s.State() == StateClosed {
		return ErrClosed
	}
	if err := s.applyWriteDeadline(); err != nil {
		return err
	}
	if err := wire.WriteMessage(s.conn, message); err != nil {
		if s.State() == StateClosed {
			return ErrClosed
		}
		wrapped := fmt.Errorf("writing %s: %w", message.Tag(), err)
		s.CloseWithReason(wrapped)
		return wrapped
	}
	return nil
}

func (s *Session) applyWriteDeadline() error {
	if s.config.WriteTimeout <= 0 {
		return nil
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	return nil
}

// Close closes the session with ErrClosedLocally. See CloseWithReason.
func (s *Session) Close() error {
	return s.CloseWithReason(ErrClosedLocally)
}

// CloseWithReason marks the session Closed and closes the connection,
// which unblocks Run. Only the first call has any effect; it returns the
// connection's close error, later calls return nil.
func (s *Session) CloseWithReason(reason error) error {
	var closeErr error
	s.closeOnce.Do(func() {
		if reason == nil {
			reason = ErrClosedLocally
		}
		s.reason = reason
		s.state.Store(int32(StateClosed))
		closeErr = s.conn.Close()
		close(s.done)
		if closeErr != nil && !netutil.IsExpectedCloseError(closeErr) {
			s.logger.Debug("closing connection", "error", closeErr)
		} else {
			closeErr = nil
		}
	})
	return closeErr
}
