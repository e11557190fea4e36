// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	_ Listener = (*WebSocketListener)(nil)
	_ Dialer   = (*WebSocketDialer)(nil)
	_ net.Conn = (*wsConn)(nil)
)

// closeGrace bounds the close handshake write on Close.
const closeGrace = time.Second

// WebSocketListener accepts chat connections as WebSocket upgrades on one
// HTTP path. The chat byte stream rides in binary messages; message
// boundaries carry no meaning.
type WebSocketListener struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	path     string
	logger   *slog.Logger

	accepted  chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
	serveErr  error
}

// NewWebSocketListener listens on address and upgrades requests for
// path. Other paths get 404.
func NewWebSocketListener(address, path string, logger *slog.Logger) (*WebSocketListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &WebSocketListener{
		listener: listener,
		path:     path,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// Clients are CLIs, not browsers; there is no origin to check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		accepted: make(chan net.Conn),
		closed:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.upgrade)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := l.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("websocket listener stopped", "error", err)
			l.serveErr = err
			l.Close()
		}
	}()
	return l, nil
}

func (l *WebSocketListener) upgrade(w http.ResponseWriter, r *http.Request) {
	socket, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		l.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn := newWSConn(socket)
	select {
	case l.accepted <- conn:
	case <-l.closed:
		conn.Close()
	}
}

func (l *WebSocketListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.accepted:
		return conn, nil
	case <-l.closed:
		if l.serveErr != nil {
			return nil, fmt.Errorf("websocket listener: %w: %w", net.ErrClosed, l.serveErr)
		}
		return nil, fmt.Errorf("websocket listener: %w", net.ErrClosed)
	}
}

// Address returns the bound TCP address. Clients add the path.
func (l *WebSocketListener) Address() string {
	return l.listener.Addr().String()
}

// Close stops the HTTP server. Connections already accepted stay open;
// their owners close them.
func (l *WebSocketListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Close()
	})
	return err
}

// WebSocketDialer connects to a WebSocketListener.
type WebSocketDialer struct {
	// Path is the upgrade path, e.g. "/parley".
	Path string

	// HandshakeTimeout bounds the HTTP upgrade. Zero leaves only the
	// context deadline.
	HandshakeTimeout time.Duration
}

func (d *WebSocketDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}
	path := d.Path
	if path == "" {
		path = "/"
	}
	socket, response, err := dialer.DialContext(ctx, "ws://"+address+path, nil)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s%s: %w", address, path, err)
	}
	return newWSConn(socket), nil
}

// wsConn presents a WebSocket as a byte stream. Each Write becomes one
// binary message; Read drains messages in order and ignores their
// boundaries.
type wsConn struct {
	socket *websocket.Conn

	// reader is the current message, owned by the single reading
	// goroutine.
	reader io.Reader
}

func newWSConn(socket *websocket.Conn) *wsConn {
	return &wsConn{socket: socket}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			messageType, reader, err := c.socket.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			c.reader = reader
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.socket.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal-closure frame when it can and closes the socket.
func (c *wsConn) Close() error {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.socket.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGrace))
	return c.socket.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.socket.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.socket.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.socket.SetReadDeadline(t); err != nil {
		return err
	}
	return c.socket.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.socket.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.socket.SetWriteDeadline(t) }
