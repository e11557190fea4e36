// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"net"
	"strconv"
	"time"
)

// ReconnectState is where the dial loop is. Attempt counts consecutive
// failed dials and returns to zero on every successful one.
type ReconnectState struct {
	ServerIndex int
	Port        int
	Attempt     int
}

// address is the host:port this state dials next.
func (r ReconnectState) address(servers []string) string {
	return net.JoinHostPort(servers[r.ServerIndex], strconv.Itoa(r.Port))
}

// advance moves to the next candidate: the next port within span on the
// same server, then the next server at the base port.
func (r *ReconnectState) advance(servers int, basePort, span int) {
	if r.Port+1 < basePort+span {
		r.Port++
		return
	}
	r.Port = basePort
	r.ServerIndex = (r.ServerIndex + 1) % servers
}

// Backoff returns the wait before the dial that follows attempt
// consecutive failures: initial for zero or one, doubling after that,
// never more than maximum.
func Backoff(initial, maximum time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return min(initial, maximum)
	}
	shift := attempt - 1
	if shift >= 63 || initial > maximum>>shift {
		return maximum
	}
	return initial << shift
}
