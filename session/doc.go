// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session wraps one chat connection: the handshake, a read loop
// that turns bytes into wire messages, a write path that never
// interleaves two frames, and a one-way lifecycle.
//
// A Session moves Connecting → Active → Closed and never back. The
// client side calls [Session.Greet], which sends the display name and
// activates immediately. The server side calls [Session.AwaitGreeting] to
// learn the name, then activates through its registry with
// [Session.Activate], so a session is Active exactly while it is
// registered.
//
// Closing the connection is the only cancellation mechanism: Close unblocks
// the read loop, which then reports the close reason to the Handler once.
package session
