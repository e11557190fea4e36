// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/parley/lib/testutil"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/wire"
)

// peer is a greeted server-side session plus a goroutine draining what
// the server writes to it.
type peer struct {
	session  *session.Session
	remote   net.Conn
	received chan wire.Message
}

func newPeer(t *testing.T, name string) *peer {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	s := session.New(local, session.Config{})

	go wire.WriteHandshake(remote, name)
	if _, err := s.AwaitGreeting(); err != nil {
		t.Fatalf("AwaitGreeting(%s): %v", name, err)
	}

	p := &peer{session: s, remote: remote, received: make(chan wire.Message, 64)}
	go func() {
		defer close(p.received)
		decoder := wire.NewDecoder(remote, 0)
		for {
			message, err := decoder.Next()
			if err != nil {
				return
			}
			p.received <- message
		}
	}()
	return p
}

func (p *peer) expectBody(t *testing.T, body string) {
	t.Helper()
	message := testutil.RequireReceive(t, p.received, testTimeout, "%s waiting for %q", p.session.Name(), body)
	if text, ok := message.(wire.Text); !ok || text.Body != body {
		t.Fatalf("%s received %#v, want body %q", p.session.Name(), message, body)
	}
}

func TestRegisterActivates(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	alice := newPeer(t, "alice")

	if alice.session.State() != session.StateConnecting {
		t.Fatalf("state before Register = %s", alice.session.State())
	}
	if err := registry.Register(alice.session); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if alice.session.State() != session.StateActive {
		t.Errorf("state after Register = %s, want active", alice.session.State())
	}
	if registry.Len() != 1 || registry.Names()[0] != "alice" {
		t.Errorf("registry holds %v", registry.Names())
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	first := newPeer(t, "alice")
	second := newPeer(t, "alice")

	if err := registry.Register(first.session); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(second.session); !errors.Is(err, ErrNameInUse) {
		t.Fatalf("duplicate Register = %v, want ErrNameInUse", err)
	}
	if second.session.State() != session.StateConnecting {
		t.Errorf("rejected session was activated")
	}
}

func TestRegisterRejectsClosedSession(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	alice := newPeer(t, "alice")
	alice.session.Close()
	if err := registry.Register(alice.session); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("Register closed = %v, want ErrClosed", err)
	}
	if registry.Len() != 0 {
		t.Errorf("closed session registered")
	}
}

func TestUnregisterIsIdentityKeyed(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	original := newPeer(t, "alice")
	impostor := newPeer(t, "alice")
	if err := registry.Register(original.session); err != nil {
		t.Fatal(err)
	}

	if registry.Unregister(impostor.session) {
		t.Fatal("Unregister removed a different session with the same name")
	}
	if registry.Len() != 1 {
		t.Fatalf("registry lost the original session")
	}
	if !registry.Unregister(original.session) {
		t.Fatal("Unregister did not remove the registered session")
	}
	if registry.Unregister(original.session) {
		t.Error("second Unregister reported a removal")
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	peers := map[string]*peer{}
	for _, name := range []string{"alice", "bob", "carol"} {
		peers[name] = newPeer(t, name)
		if err := registry.Register(peers[name].session); err != nil {
			t.Fatal(err)
		}
	}

	delivered := registry.Broadcast(wire.Text{Sender: "alice", Body: "hi"}, peers["alice"].session)
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	peers["bob"].expectBody(t, "hi")
	peers["carol"].expectBody(t, "hi")

	// Alice's next message is the one she did not send.
	registry.Broadcast(wire.Text{Sender: "bob", Body: "yo"}, peers["bob"].session)
	peers["alice"].expectBody(t, "yo")
	peers["carol"].expectBody(t, "yo")
}

func TestBroadcastDropsFailedPeer(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	alice, bob, carol := newPeer(t, "alice"), newPeer(t, "bob"), newPeer(t, "carol")
	for _, p := range []*peer{alice, bob, carol} {
		if err := registry.Register(p.session); err != nil {
			t.Fatal(err)
		}
	}

	bob.remote.Close()
	delivered := registry.Broadcast(wire.Text{Sender: "alice", Body: "still here?"}, alice.session)
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	carol.expectBody(t, "still here?")
	if bob.session.State() != session.StateClosed {
		t.Errorf("failed peer state = %s, want closed", bob.session.State())
	}
	if fmt.Sprint(registry.Names()) != "[alice carol]" {
		t.Errorf("registry = %v, want [alice carol]", registry.Names())
	}
}

func TestRegistryConcurrentUse(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	const count = 16
	peers := make([]*peer, count)
	for i := range peers {
		peers[i] = newPeer(t, testutil.UniqueID("user"))
	}

	var wg sync.WaitGroup
	for i, p := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := registry.Register(p.session); err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			registry.Broadcast(wire.Text{Body: fmt.Sprint(i)}, p.session)
			registry.Snapshot(nil)
			registry.Names()
			if i%2 == 0 {
				registry.Unregister(p.session)
			}
		}()
	}
	wg.Wait()

	if registry.Len() != count/2 {
		t.Errorf("Len = %d, want %d", registry.Len(), count/2)
	}
	for _, target := range registry.Snapshot(nil) {
		if target.State() != session.StateActive {
			t.Errorf("%s registered in state %s", target.Name(), target.State())
		}
	}
}

// guardedConn counts bytes that reach the peer from writes begun after
// Close.
type guardedConn struct {
	net.Conn
	closed    atomic.Bool
	lateBytes atomic.Int64
}

func (c *guardedConn) Write(p []byte) (int, error) {
	late := c.closed.Load()
	n, err := c.Conn.Write(p)
	if late {
		c.lateBytes.Add(int64(n))
	}
	return n, err
}

func (c *guardedConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

func TestBroadcastNeverReachesClosedSession(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	const (
		count        = 16
		broadcasters = 4
		rounds       = 50
	)

	type guardedPeer struct {
		session *session.Session
		conn    *guardedConn
		frames  atomic.Int64
		// lateReads counts bytes the peer read in calls begun after the
		// session's Done was closed.
		lateReads atomic.Int64
		finished  chan struct{}
	}
	peers := make([]*guardedPeer, count)
	for i := range peers {
		local, remote := net.Pipe()
		t.Cleanup(func() {
			local.Close()
			remote.Close()
		})
		p := &guardedPeer{conn: &guardedConn{Conn: local}, finished: make(chan struct{})}
		p.session = session.New(p.conn, session.Config{})
		go wire.WriteHandshake(remote, testutil.UniqueID("user"))
		if _, err := p.session.AwaitGreeting(); err != nil {
			t.Fatalf("AwaitGreeting: %v", err)
		}
		if err := registry.Register(p.session); err != nil {
			t.Fatalf("Register: %v", err)
		}
		reader := readerFunc(func(b []byte) (int, error) {
			late := false
			select {
			case <-p.session.Done():
				late = true
			default:
			}
			n, err := remote.Read(b)
			if late {
				p.lateReads.Add(int64(n))
			}
			return n, err
		})
		go func() {
			defer close(p.finished)
			decoder := wire.NewDecoder(reader, 0)
			for {
				if _, err := decoder.Next(); err != nil {
					return
				}
				p.frames.Add(1)
			}
		}()
		peers[i] = p
	}

	var wg sync.WaitGroup
	for b := range broadcasters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := range rounds {
				registry.Broadcast(wire.Text{Sender: "system", Body: fmt.Sprintf("%d/%d", b, round)}, nil)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < count; i += 2 {
			runtime.Gosched()
			peers[i].session.Close()
			registry.Unregister(peers[i].session)
		}
	}()
	wg.Wait()

	if registry.Len() != count/2 {
		t.Errorf("Len = %d, want %d", registry.Len(), count/2)
	}
	for i := 0; i < count; i += 2 {
		p := peers[i]
		testutil.RequireClosed(t, p.finished, testTimeout, "reader of closed peer %d", i)
		if late := p.conn.lateBytes.Load(); late != 0 {
			t.Errorf("peer %d: %d bytes written after close", i, late)
		}
		if late := p.lateReads.Load(); late != 0 {
			t.Errorf("peer %d: read %d bytes after close", i, late)
		}
	}
	for i := 1; i < count; i += 2 {
		p := peers[i]
		testutil.RequireEventually(t, testTimeout, func() bool {
			return p.frames.Load() == broadcasters*rounds
		}, "open peer %d received %d of %d frames", i, p.frames.Load(), broadcasters*rounds)
	}
}

// readerFunc adapts a function to io.Reader.
type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func TestCloseAll(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(nil)
	alice, bob := newPeer(t, "alice"), newPeer(t, "bob")
	registry.Register(alice.session)
	registry.Register(bob.session)

	if err := registry.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if registry.Len() != 0 {
		t.Errorf("Len after CloseAll = %d", registry.Len())
	}
	for _, p := range []*peer{alice, bob} {
		testutil.RequireClosed(t, p.session.Done(), testTimeout, "%s closed", p.session.Name())
		if err := p.session.Send(wire.Text{Body: "late"}); !errors.Is(err, session.ErrClosed) {
			t.Errorf("Send after CloseAll = %v", err)
		}
	}
	if delivered := registry.Broadcast(wire.Text{Body: "nobody"}, nil); delivered != 0 {
		t.Errorf("delivered %d after CloseAll", delivered)
	}
}
