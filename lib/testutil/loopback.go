// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// Loopback listens on an ephemeral 127.0.0.1 port. The listener is
// closed when the test completes; closing it earlier is harmless.
func Loopback(t testing.TB) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	return listener
}

// ClosedPort returns a loopback port that nothing is listening on. A dial
// to it fails with connection refused.
func ClosedPort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving loopback port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		t.Fatalf("releasing loopback port: %v", err)
	}
	return port
}
