// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/parley/lib/testutil"
)

const testTimeout = 5 * time.Second

// exchange dials through dialer, accepts on listener, and checks bytes
// flow both ways and that a close on one side reads as EOF on the other.
func exchange(t *testing.T, listener Listener, dialer Dialer) {
	t.Helper()
	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	client, err := dialer.DialContext(ctx, listener.Address())
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	defer client.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case err := <-acceptErr:
		t.Fatalf("Accept: %v", err)
	case <-time.After(testTimeout): //nolint:realclock test hang prevention
		t.Fatal("timed out waiting for Accept")
	}
	defer server.Close()

	// Write in pieces; the reader must see one contiguous stream.
	payload := strings.Repeat("parley-", 20000)
	go func() {
		for i := 0; i < len(payload); i += 7001 {
			end := min(i+7001, len(payload))
			if _, err := io.WriteString(client, payload[i:end]); err != nil {
				return
			}
		}
	}()
	received := make([]byte, len(payload))
	if _, err := io.ReadFull(server, received); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(received) != payload {
		t.Fatal("stream content changed in transit")
	}

	if _, err := server.Write([]byte("pong")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	reply := make([]byte, 4)
	if _, err := io.ReadFull(client, reply); err != nil || string(reply) != "pong" {
		t.Fatalf("client read = %q, %v", reply, err)
	}

	client.Close()
	if _, err := server.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("read after peer close = %v, want io.EOF", err)
	}
}

func TestTCPExchange(t *testing.T) {
	t.Parallel()
	listener, err := NewTCPListener("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewTCPListener: %v", err)
	}
	defer listener.Close()
	exchange(t, listener, &TCPDialer{Timeout: testTimeout})
}

func TestTCPAcceptAfterClose(t *testing.T) {
	t.Parallel()
	listener, err := NewTCPListener("127.0.0.1:0", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(listener.Address(), ":") {
		t.Errorf("Address() = %q, want host:port", listener.Address())
	}
	listener.Close()
	if _, err := listener.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("Accept after Close = %v, want net.ErrClosed", err)
	}
}

func TestTCPDialRefused(t *testing.T) {
	t.Parallel()
	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(testutil.ClosedPort(t)))
	if _, err := (&TCPDialer{Timeout: testTimeout}).DialContext(context.Background(), address); err == nil {
		t.Fatal("dial to a closed port succeeded")
	}
}

func TestWebSocketExchange(t *testing.T) {
	t.Parallel()
	listener, err := NewWebSocketListener("127.0.0.1:0", "/parley", nil)
	if err != nil {
		t.Fatalf("NewWebSocketListener: %v", err)
	}
	defer listener.Close()
	exchange(t, listener, &WebSocketDialer{Path: "/parley", HandshakeTimeout: testTimeout})
}

func TestWebSocketWrongPath(t *testing.T) {
	t.Parallel()
	listener, err := NewWebSocketListener("127.0.0.1:0", "/parley", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	_, err = (&WebSocketDialer{Path: "/elsewhere", HandshakeTimeout: testTimeout}).DialContext(context.Background(), listener.Address())
	if err == nil {
		t.Fatal("dial to an unserved path succeeded")
	}
}

func TestWebSocketAcceptAfterClose(t *testing.T) {
	t.Parallel()
	listener, err := NewWebSocketListener("127.0.0.1:0", "/parley", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := listener.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := listener.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := listener.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("Accept after Close = %v, want net.ErrClosed", err)
	}
}

func TestWebSocketReadDeadline(t *testing.T) {
	t.Parallel()
	listener, err := NewWebSocketListener("127.0.0.1:0", "/parley", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(time.Second) //nolint:realclock keep the peer silent
		}
	}()
	client, err := (&WebSocketDialer{Path: "/parley"}).DialContext(context.Background(), listener.Address())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, err = client.Read(make([]byte, 1))
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("Read = %v, want timeout", err)
	}
}
