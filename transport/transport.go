// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Listener accepts chat connections for the server engine.
type Listener interface {
	// Accept blocks until a connection arrives. After Close it returns
	// an error wrapping net.ErrClosed.
	Accept() (net.Conn, error)

	// Address is the local address in host:port form.
	Address() string

	Close() error
}

// Dialer opens chat connections for the client engine.
type Dialer interface {
	// DialContext connects to address (host:port).
	DialContext(ctx context.Context, address string) (net.Conn, error)
}
