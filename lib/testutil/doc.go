// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Parley packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the timeout
// safety valve pattern (select with a time.After fallback) so individual
// tests do not call time.After directly. These are the only places in the
// test suite where real wall-clock timeouts appear.
//
// [UniqueID] generates monotonically increasing identifiers. Tests use
// it for display names and message bodies that must be distinguishable
// when several clients share one server.
//
// [Loopback] starts a TCP listener on 127.0.0.1 with an ephemeral port and
// closes it when the test completes.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
