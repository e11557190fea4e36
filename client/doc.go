// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the Parley client engine.
//
// A [Client] holds at most one connection to a Parley server. Connect
// dials the configured candidates, greets the server with the client's
// display name, and starts a supervisor goroutine that runs the
// session's read loop. Texts are handed to Config.OnText; files are
// unpacked, verified, and saved through the configured [Destination],
// and the saved path becomes LastReceived.
//
// When the connection drops without the caller asking for it, the
// supervisor reconnects. Candidates are visited in order: each port in
// [Port, Port+PortSpan) on the current server, then the next server at
// the base port, wrapping around. Waits between dials double from
// InitialBackoff up to MaxBackoff on the injected clock, and after
// MaxAttempts consecutive failed dials the client gives up in
// [StateFailed]. A successful dial resets the count. A server that
// rejects the name also ends in StateFailed, without retrying.
//
// Everything the caller supplies as a callback runs on the supervisor
// goroutine and must not block for long; OnStateChange may also run on
// the goroutine that called Connect or Disconnect.
package client
