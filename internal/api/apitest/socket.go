// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

func (b *Backend) serveSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.t.Logf("apitest: upgrade websocket: %v", err)
		return
	}
	conn := &socketConn{userID: userID, ws: ws}

	b.mu.Lock()
	b.conns[userID] = append(b.conns[userID], conn)
	b.connLog = append(b.connLog, userID)
	b.mu.Unlock()

	b.broadcastOnline()
	go b.readLoop(conn)
}

func (b *Backend) readLoop(c *socketConn) {
	defer func() {
		c.ws.Close()
		b.mu.Lock()
		list := b.conns[c.userID]
		for i, other := range list {
			if other == c {
				b.conns[c.userID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.conns[c.userID]) == 0 {
			delete(b.conns, c.userID)
		}
		b.mu.Unlock()
		b.broadcastOnline()
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		select {
		case b.inbound <- InboundFrame{UserID: c.userID, Frame: f}:
		default:
		}
	}
}

func (c *socketConn) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Online returns ids with at least one open socket whose owner shows
// their online status.
func (b *Backend) Online() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.conns))
	for id := range b.conns {
		if u, ok := b.users[id]; ok && !u.ShowOnlineStatus {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (b *Backend) broadcastOnline() {
	data, _ := json.Marshal(b.Online())
	b.Broadcast("getOnlineUsers", json.RawMessage(data))
}

// Push sends an event to every socket of userID.
func (b *Backend) Push(userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.t.Fatalf("apitest: marshal %s payload: %v", event, err)
	}
	b.mu.Lock()
	targets := append([]*socketConn(nil), b.conns[userID]...)
	b.mu.Unlock()
	for _, c := range targets {
		_ = c.write(Frame{Event: event, Data: data})
	}
}

// Broadcast sends an event to every connected socket.
func (b *Backend) Broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	b.mu.Lock()
	var targets []*socketConn
	for _, list := range b.conns {
		targets = append(targets, list...)
	}
	b.mu.Unlock()
	for _, c := range targets {
		_ = c.write(Frame{Event: event, Data: data})
	}
}

// Connections returns the userId of every socket connection ever
// accepted, in order.
func (b *Backend) Connections() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.connLog...)
}

// Connected reports whether userID currently has an open socket.
func (b *Backend) Connected(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns[userID]) > 0
}

// NextFrame waits for the next frame a client sent.
func (b *Backend) NextFrame(timeout time.Duration) (InboundFrame, bool) {
	select {
	case f := <-b.inbound:
		return f, true
	case <-time.After(timeout):
		return InboundFrame{}, false
	}
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
