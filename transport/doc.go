// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport supplies the byte streams Parley runs over.
//
// [Listener] is what the server engine accepts from and [Dialer] is what
// the client engine connects with. Both deal in net.Conn, so the session
// layer never knows which transport it is on.
//
// [TCPListener] and [TCPDialer] are the default. On Linux they set
// TCP_USER_TIMEOUT so a peer that disappears without closing turns into
// a write error within [DefaultUserTimeout] instead of a stuck writer.
//
// [WebSocketListener] and [WebSocketDialer] carry the same stream inside
// binary WebSocket messages on one HTTP path, for networks that only pass
// HTTP. Message boundaries carry no meaning; the wire decoder
// reassembles frames exactly as it does over TCP.
package transport
