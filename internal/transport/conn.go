// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotConnected is returned by Emit on a closed connection.
	ErrNotConnected = errors.New("transport not connected")

	// ErrSendBufferFull is returned when outbound frames back up.
	ErrSendBufferFull = errors.New("transport send buffer full")
)

// Token identifies one subscription.
type Token string

// Handler receives the raw data of an event.
type Handler func(data json.RawMessage)

// Conn is the capability stores need from a live channel.
type Conn interface {
	// Subscribe registers h for event and returns its token.
	Subscribe(event string, h Handler) Token
	// Unsubscribe removes a subscription. Unknown tokens are ignored.
	Unsubscribe(tok Token)
	// Emit sends an event. It never blocks on the network.
	Emit(event string, payload any) error
	// Connected reports whether the channel is open.
	Connected() bool
	// UserID is the identity the channel was opened for.
	UserID() string
}

type subscription struct {
	token   Token
	handler Handler
}

// Registry holds subscriptions per event in registration order. It is
// embedded by Socket and by the test fake.
type Registry struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	owners map[Token]string
}

// Subscribe registers h for event.
func (r *Registry) Subscribe(event string, h Handler) Token {
	tok := Token(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[string][]subscription)
		r.owners = make(map[Token]string)
	}
	r.subs[event] = append(r.subs[event], subscription{token: tok, handler: h})
	r.owners[tok] = event
	return tok
}

// Unsubscribe removes the subscription identified by tok.
func (r *Registry) Unsubscribe(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.owners[tok]
	if !ok {
		return
	}
	delete(r.owners, tok)
	list := r.subs[event]
	for i, s := range list {
		if s.token == tok {
			r.subs[event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[event]) == 0 {
		delete(r.subs, event)
	}
}

// Count returns the number of handlers registered for event.
func (r *Registry) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[event])
}

// Dispatch calls every handler for event. Handlers run outside the lock
// so they may subscribe or unsubscribe.
func (r *Registry) Dispatch(event string, data json.RawMessage) int {
	r.mu.Lock()
	handlers := make([]Handler, 0, len(r.subs[event]))
	for _, s := range r.subs[event] {
		handlers = append(handlers, s.handler)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
	return len(handlers)
}
