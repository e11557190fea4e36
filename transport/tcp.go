// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// DefaultUserTimeout is how long unacknowledged data may sit in a TCP
// send buffer before the kernel drops the connection. It turns a peer
// that vanished without a FIN into a write error instead of a hang.
const DefaultUserTimeout = 30 * time.Second

// TCPListener accepts plain TCP connections.
type TCPListener struct {
	listener    net.Listener
	userTimeout time.Duration
	logger      *slog.Logger
}

// NewTCPListener listens on address (":9999", "127.0.0.1:0"). Accepted
// connections get keepalives and DefaultUserTimeout where the platform
// supports it.
func NewTCPListener(address string, logger *slog.Logger) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return WrapTCPListener(listener, logger), nil
}

// WrapTCPListener adopts an existing listener.
func WrapTCPListener(listener net.Listener, logger *slog.Logger) *TCPListener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TCPListener{listener: listener, userTimeout: DefaultUserTimeout, logger: logger}
}

func (l *TCPListener) Accept() (net.Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tune(tcp, l.userTimeout); err != nil {
			l.logger.Debug("tuning accepted connection", "remote", conn.RemoteAddr().String(), "error", err)
		}
	}
	return conn, nil
}

// Address returns the bound address in "host:port" form.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// TCPDialer opens TCP connections.
type TCPDialer struct {
	// Timeout bounds connection establishment. Zero leaves only the
	// context deadline.
	Timeout time.Duration

	// UserTimeout overrides DefaultUserTimeout. Negative disables it.
	UserTimeout time.Duration
}

func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	conn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	userTimeout := d.UserTimeout
	if userTimeout == 0 {
		userTimeout = DefaultUserTimeout
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		// Best effort; a connection without the option still works.
		_ = tune(tcp, userTimeout)
	}
	return conn, nil
}

func tune(conn *net.TCPConn, userTimeout time.Duration) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlivePeriod(15 * time.Second); err != nil {
		return err
	}
	if userTimeout <= 0 {
		return nil
	}
	return setUserTimeout(conn, userTimeout)
}
