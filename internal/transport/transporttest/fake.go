// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transporttest provides an in-process transport.Conn for store
// tests.
package transporttest

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/parley-tui/internal/transport"
)

// Emission is an event the code under test sent.
type Emission struct {
	Event   string
	Payload json.RawMessage
}

// Fake is a transport.Conn that records emissions and lets tests deliver
// inbound events synchronously.
type Fake struct {
	transport.Registry

	userID    string
	connected atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	emitted []Emission
}

var _ transport.Conn = (*Fake)(nil)

// New returns a connected fake for userID.
func New(userID string) *Fake {
	f := &Fake{userID: userID, done: make(chan struct{})}
	f.connected.Store(true)
	return f
}

// UserID implements transport.Conn.
func (f *Fake) UserID() string { return f.userID }

// Connected implements transport.Conn.
func (f *Fake) Connected() bool { return f.connected.Load() }

// SetConnected flips the connection state.
func (f *Fake) SetConnected(v bool) { f.connected.Store(v) }

// Done is closed by Close or Drop.
func (f *Fake) Done() <-chan struct{} { return f.done }

// Close disconnects the fake. Safe to call more than once.
func (f *Fake) Close() error {
	f.closeOnce.Do(func() {
		f.connected.Store(false)
		close(f.done)
	})
	return nil
}

// Drop simulates the server going away.
func (f *Fake) Drop() { _ = f.Close() }

// Closed reports whether Close has run.
func (f *Fake) Closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Emit implements transport.Conn.
func (f *Fake) Emit(event string, payload any) error {
	if !f.Connected() {
		return transport.ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.emitted = append(f.emitted, Emission{Event: event, Payload: data})
	f.mu.Unlock()
	return nil
}

// Deliver runs every handler for event with payload marshaled to JSON and
// returns how many ran.
func (f *Fake) Deliver(event string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return f.Dispatch(event, data)
}

// Emitted returns a copy of all emissions so far.
func (f *Fake) Emitted() []Emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Emission(nil), f.emitted...)
}

// EmittedEvents returns only the emissions named event.
func (f *Fake) EmittedEvents(event string) []Emission {
	var out []Emission
	for _, e := range f.Emitted() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets recorded emissions.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.emitted = nil
	f.mu.Unlock()
}
