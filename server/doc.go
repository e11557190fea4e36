// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the Parley relay: it accepts connections, learns
// each client's display name, replays the text backlog, and fans every
// message out to the other connected clients.
//
// Ordering rests on two locks. The [Registry] mutex guards membership
// and is never held across a network write. The server's sequencing lock
// is held while a text is appended to history and the list of recipients
// is taken, and while a joining session reads the backlog and registers.
// A joining session therefore sees every text exactly once: either the
// append happened first and the text is in its backlog, or the join
// happened first and the text arrives live. Live texts cannot overtake
// the backlog because the backlog is written while the session's write
// lock is held.
//
// Texts are persisted; files and join/leave notices are not.
package server
