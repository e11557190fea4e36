// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by sends while there is no active
	// connection. Nothing was written; the caller may retry later.
	ErrNotConnected = errors.New("client: not connected")

	// ErrAlreadyConnected is returned by Connect while a connection or
	// reconnect is in progress.
	ErrAlreadyConnected = errors.New("client: already connected")

	// ErrAttemptsExhausted ends the reconnect loop.
	ErrAttemptsExhausted = errors.New("reconnect attempts exhausted")

	// ErrNameRejected means the server refused the display name because
	// another client holds it.
	ErrNameRejected = errors.New("client: name rejected by server")
)

// ConnectError describes a failed dial or handshake. The final error of
// an exhausted reconnect loop is a ConnectError wrapping both
// ErrAttemptsExhausted and the last dial error.
type ConnectError struct {
	Address string
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s (attempt %d): %v", e.Address, e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
