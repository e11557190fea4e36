// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transfer"
	"github.com/bureau-foundation/parley/transport"
	"github.com/bureau-foundation/parley/wire"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultPort           = 9999
	DefaultServer         = "127.0.0.1"
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultDownloadDir    = "received"
)

// State is the client's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Destination stores received files. Save writes data as name inside
// the namespace of receiver and returns where it landed. It must not
// overwrite an existing file or leave a partial one behind on error.
// [transfer.Directory] is the standard implementation.
type Destination interface {
	Save(receiver, name string, data []byte) (string, error)
}

// Notifier raises a user-visible notification, such as a desktop popup.
type Notifier interface {
	Notify(title, body string)
}

// ReceivedFile describes a file saved by the client.
type ReceivedFile struct {
	Sender   string
	Name     string
	MimeHint string
	Size     int64
	Path     string
}

// Config configures a Client. Name is required.
type Config struct {
	// Name is the display name sent in the handshake.
	Name string

	// Servers are the candidate hosts, tried in order. Port is the base
	// port and PortSpan how many consecutive ports each host is tried on.
	Servers  []string
	Port     int
	PortSpan int

	// Dialer opens connections. Nil uses TCP with ConnectTimeout.
	Dialer transport.Dialer

	// ConnectTimeout bounds each dial and handshake. Zero leaves it to
	// the dialer.
	ConnectTimeout time.Duration

	// WriteTimeout bounds each write to the server. Zero disables it.
	WriteTimeout time.Duration

	// MaxFileSize bounds files in both directions. Zero means
	// wire.DefaultMaxFileSize.
	MaxFileSize int64

	// CompressFiles lets SendFile compress payloads that shrink.
	CompressFiles bool

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Destination stores received files. Nil saves under
	// DefaultDownloadDir in the working directory.
	Destination Destination

	// Notifier, when set, is told about every peer text and saved file.
	Notifier Notifier

	OnText        func(wire.Text)
	OnFile        func(ReceivedFile)
	OnStateChange func(State)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Client is a Parley chat client. Its methods are safe for concurrent
// use.
type Client struct {
	config      Config
	name        string
	dialer      transport.Dialer
	destination Destination
	clock       clock.Clock
	logger      *slog.Logger

	mu           sync.Mutex
	state        State
	session      *session.Session
	reconnect    ReconnectState
	lastReceived string
	rejected     bool
	failure      error
	cancel       context.CancelFunc
	done         chan struct{}
}

// New validates config and returns a disconnected Client.
func New(config Config) (*Client, error) {
	name, err := wire.ValidateName(config.Name)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, fmt.Errorf("client: port %d out of range", config.Port)
	}
	if config.PortSpan < 0 || config.MaxAttempts < 0 || config.MaxFileSize < 0 {
		return nil, errors.New("client: PortSpan, MaxAttempts and MaxFileSize must not be negative")
	}
	if config.ConnectTimeout < 0 || config.WriteTimeout < 0 || config.InitialBackoff < 0 || config.MaxBackoff < 0 {
		return nil, errors.New("client: durations must not be negative")
	}

	if len(config.Servers) == 0 {
		config.Servers = []string{DefaultServer}
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.PortSpan == 0 {
		config.PortSpan = 1
	}
	if config.Port+config.PortSpan-1 > 65535 {
		return nil, fmt.Errorf("client: port span %d from %d exceeds 65535", config.PortSpan, config.Port)
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.MaxBackoff < config.InitialBackoff {
		return nil, fmt.Errorf("client: MaxBackoff %s is below InitialBackoff %s", config.MaxBackoff, config.InitialBackoff)
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = wire.DefaultMaxFileSize
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = &transport.TCPDialer{Timeout: config.ConnectTimeout}
	}
	destination := config.Destination
	if destination == nil {
		destination = transfer.Directory{Root: DefaultDownloadDir}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		config:      config,
		name:        name,
		dialer:      dialer,
		destination: destination,
		clock:       config.Clock,
		logger:      logger.With("name", name),
		reconnect:   ReconnectState{Port: config.Port},
	}, nil
}

// Name returns the validated display name.
func (c *Client) Name() string { return c.name }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns why the client entered StateFailed, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// ReconnectState returns a copy of the dial loop position.
func (c *Client) ReconnectState() ReconnectState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect
}

// LastReceived returns the path of the most recently saved file, or ""
// if none has arrived.
func (c *Client) LastReceived() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReceived
}

// Connect resets the reconnect state and dials until a server accepts
// the handshake or MaxAttempts dials have failed, in which case it
// returns a *ConnectError wrapping ErrAttemptsExhausted. The first dial
// happens immediately.
//
// ctx bounds the whole connection, not only the dial: cancelling it
// later has the same effect as Disconnect. The server answers a taken
// name after the handshake, so that failure shows up later as
// StateFailed with Err returning ErrNameRejected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = nil
	c.failure = nil
	c.rejected = false
	c.reconnect = ReconnectState{Port: c.config.Port}
	// Claim the client in the same critical section as the check, so a
	// concurrent Connect sees StateConnecting.
	c.state = StateConnecting
	c.mu.Unlock()
	c.announce(StateConnecting)

	first, err := c.dial(runCtx, false)
	if err != nil {
		cancel()
		if runCtx.Err() != nil {
			c.transition(StateDisconnected)
			return err
		}
		c.fail(err)
		return err
	}
	if !c.install(runCtx, first) {
		cancel()
		c.transition(StateDisconnected)
		return ErrNotConnected
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.done = done
	c.mu.Unlock()
	c.transition(StateConnected)

	go c.watch(runCtx)
	go c.supervise(runCtx, cancel, first, done)
	return nil
}

// Disconnect closes the connection and stops any reconnect in progress.
// It returns once the supervisor has exited. Disconnecting an idle
// client does nothing.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	current := c.session
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	var closeErr error
	if current != nil {
		closeErr = current.Close()
	}
	if done != nil {
		<-done
	}
	if c.State() != StateFailed {
		c.transition(StateDisconnected)
	}
	return closeErr
}

// SendText sends one chat line. It returns ErrNotConnected when there
// is no active connection.
func (c *Client) SendText(body string) error {
	current := c.active()
	if current == nil {
		return ErrNotConnected
	}
	if err := current.Send(wire.Text{Body: body}); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}

// SendFile reads the file at path and sends it to every other client.
// The header and contents go out back to back; texts sent concurrently
// land before or after the file, never inside it.
func (c *Client) SendFile(path string) error {
	if c.active() == nil {
		return ErrNotConnected
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > c.config.MaxFileSize {
		return fmt.Errorf("%s: %w: %d bytes exceeds limit %d", path, wire.ErrFileTooLarge, info.Size(), c.config.MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	offer, err := transfer.Prepare(path, data, c.config.CompressFiles)
	if err != nil {
		return err
	}

	current := c.active()
	if current == nil {
		return ErrNotConnected
	}
	if err := current.Send(offer); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return ErrNotConnected
		}
		return err
	}
	c.logger.Info("file sent",
		"file", offer.Name,
		"size", len(data),
		"wire_size", offer.Size,
		"compression", offer.Compression,
	)
	return nil
}

// active returns the current session if the client is connected.
func (c *Client) active() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.session == nil {
		return nil
	}
	return c.session
}

// install makes s the current session unless ctx is already done, in
// which case s is closed. Paired with watch, no session outlives ctx.
func (c *Client) install(ctx context.Context, s *session.Session) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		s.Close()
		return false
	}
	c.session = s
	c.mu.Unlock()
	return true
}

// watch closes the current session when ctx ends.
func (c *Client) watch(ctx context.Context) {
	<-ctx.Done()
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()
	if current != nil {
		current.Close()
	}
}

// supervise runs the read loop of each session in turn, reconnecting
// after unrequested losses.
func (c *Client) supervise(ctx context.Context, cancel context.CancelFunc, current *session.Session, done chan struct{}) {
	defer close(done)
	defer cancel()

	handler := session.HandlerFuncs{OnMessage: c.messageReceived}
	for {
		reason := current.Run(handler)

		c.mu.Lock()
		if c.session == current {
			c.session = nil
		}
		rejected := c.rejected
		c.mu.Unlock()

		if ctx.Err() != nil {
			c.logger.Info("disconnected")
			c.transition(StateDisconnected)
			return
		}
		if rejected {
			c.logger.Error("server rejected the display name")
			c.fail(ErrNameRejected)
			return
		}

		c.logger.Warn("connection lost", "remote", current.RemoteAddr(), "reason", reason)
		c.transition(StateReconnecting)
		c.mu.Lock()
		c.reconnect.advance(len(c.config.Servers), c.config.Port, c.config.PortSpan)
		c.mu.Unlock()

		next, err := c.dial(ctx, true)
		if err != nil {
			if ctx.Err() != nil {
				c.transition(StateDisconnected)
				return
			}
			c.logger.Error("giving up on reconnect", "error", err)
			c.fail(err)
			return
		}
		if !c.install(ctx, next) {
			c.transition(StateDisconnected)
			return
		}
		c.logger.Info("reconnected", "remote", next.RemoteAddr())
		c.transition(StateConnected)
		current = next
	}
}

// dial tries candidates until one accepts the handshake or MaxAttempts
// consecutive dials fail. With wait set it sleeps before the first try
// too.
func (c *Client) dial(ctx context.Context, wait bool) (*session.Session, error) {
	for {
		c.mu.Lock()
		position := c.reconnect
		c.mu.Unlock()

		if wait {
			delay := Backoff(c.config.InitialBackoff, c.config.MaxBackoff, position.Attempt)
			c.logger.Debug("waiting before dial", "delay", delay, "attempt", position.Attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.clock.After(delay):
			}
		}
		wait = true

		address := position.address(c.config.Servers)
		opened, err := c.open(ctx, address)
		if err == nil {
			c.mu.Lock()
			c.reconnect.Attempt = 0
			c.mu.Unlock()
			c.logger.Info("connected", "address", address)
			return opened, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.mu.Lock()
		c.reconnect.Attempt++
		attempt := c.reconnect.Attempt
		exhausted := attempt >= c.config.MaxAttempts
		if !exhausted {
			c.reconnect.advance(len(c.config.Servers), c.config.Port, c.config.PortSpan)
		}
		c.mu.Unlock()

		c.logger.Warn("connect failed",
			"address", address,
			"attempt", attempt,
			"max_attempts", c.config.MaxAttempts,
			"error", err,
		)
		if exhausted {
			return nil, &ConnectError{
				Address: address,
				Attempt: attempt,
				Err:     fmt.Errorf("%w: %w", ErrAttemptsExhausted, err),
			}
		}
	}
}

// open dials address and sends the handshake.
func (c *Client) open(ctx context.Context, address string) (*session.Session, error) {
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, err := c.dialer.DialContext(ctx, address)
	if err != nil {
		return nil, err
	}
	opened := session.New(conn, session.Config{
		WriteTimeout: c.config.WriteTimeout,
		MaxFileSize:  c.config.MaxFileSize,
		Logger:       c.logger,
	})
	if err := opened.Greet(c.name); err != nil {
		opened.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return opened, nil
}

func (c *Client) messageReceived(from *session.Session, message wire.Message) {
	switch m := message.(type) {
	case wire.Text:
		if m.IsNotice() && m.Code == wire.NoticeNameInUse {
			c.mu.Lock()
			c.rejected = true
			c.mu.Unlock()
		}
		if c.config.OnText != nil {
			c.config.OnText(m)
		}
		if c.config.Notifier != nil && !m.IsNotice() {
			c.config.Notifier.Notify(m.Sender, m.Body)
		}
	case wire.FileOffer:
		c.receiveFile(m)
	default:
		c.logger.Warn("ignoring unexpected message", "type", fmt.Sprintf("%T", message))
	}
}

// receiveFile verifies and saves one file. A file that fails either
// step is dropped with an error log; the connection stays up.
func (c *Client) receiveFile(offer wire.FileOffer) {
	logger := c.logger.With("file", offer.Name, "sender", offer.Sender)
	data, err := transfer.Unpack(offer, c.config.MaxFileSize)
	if err != nil {
		logger.Error("discarding received file", "error", err)
		return
	}
	path, err := c.destination.Save(c.name, offer.Name, data)
	if err != nil {
		logger.Error("saving received file", "error", err)
		return
	}

	c.mu.Lock()
	c.lastReceived = path
	c.mu.Unlock()
	logger.Info("file received", "path", path, "size", len(data))

	if c.config.OnFile != nil {
		c.config.OnFile(ReceivedFile{
			Sender:   offer.Sender,
			Name:     offer.Name,
			MimeHint: offer.MimeHint,
			Size:     int64(len(data)),
			Path:     path,
		})
	}
	if c.config.Notifier != nil {
		c.config.Notifier.Notify(offer.Sender, "sent "+offer.Name)
	}
}

// fail records err and enters StateFailed.
func (c *Client) fail(err error) {
	c.mu.Lock()
	c.failure = err
	c.mu.Unlock()
	c.transition(StateFailed)
}

// transition sets the state and reports it. The callback runs without
// the lock held so it may call back into the client.
func (c *Client) transition(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()
	c.announce(next)
}

// announce runs the state callback. Callers must not hold c.mu.
func (c *Client) announce(state State) {
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(state)
	}
}
