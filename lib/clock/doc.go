// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The server stamps text messages with Clock.Now and the client waits out
// reconnect backoff with Clock.After. Production code passes Real(); tests
// pass Fake() and drive time explicitly:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine, _ := client.New(client.Config{Clock: fakeClock, ...})
//	go engine.Connect(ctx)
//	fakeClock.WaitForTimers(1)          // dial failed, backoff registered
//	fakeClock.Advance(2 * time.Second)  // release the backoff
//
// WaitForTimers removes the race between a goroutine registering a wait
// and the test advancing time.
package clock
