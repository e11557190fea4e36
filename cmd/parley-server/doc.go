// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// parley-server accepts Parley chat clients, relays their texts and
// files to each other, and keeps a text history that new clients
// receive before anything live.
//
// Configuration comes from --config, then the file named by
// PARLEY_CONFIG, then built-in defaults; the flags below override
// individual settings:
//
//	parley-server --listen :9999 --history sqlite --history-path /var/lib/parley/history.db
//
// With --transport websocket the server speaks the same framing inside
// binary WebSocket messages on --websocket-path, for clients that can
// only reach it through an HTTP proxy.
//
// SIGINT and SIGTERM stop accepting, close every client, and flush the
// history store before exiting.
package main
