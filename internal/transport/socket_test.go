// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/api/apitest"
	"github.com/jeranaias/parley-tui/internal/transport"
)

func dial(t *testing.T, b *apitest.Backend, userID string) *transport.Socket {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := transport.Dial(ctx, b.SocketURL(), userID, transport.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDial_KeyedByUserID(t *testing.T) {
	b := apitest.New(t)
	s := dial(t, b, "u1")

	assert.True(t, s.Connected())
	assert.Equal(t, "u1", s.UserID())
	require.True(t, apitest.WaitFor(2*time.Second, func() bool { return b.Connected("u1") }))
	assert.Equal(t, []string{"u1"}, b.Connections())
}

func TestDial_EmptyUserID(t *testing.T) {
	_, err := transport.Dial(context.Background(), "ws://127.0.0.1:1/socket", "", transport.Options{})
	assert.Error(t, err)
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	b := apitest.New(t)
	s := dial(t, b, "u1")

	got := make(chan transport.PeerSignal, 1)
	s.Subscribe(transport.EventTyping, func(data json.RawMessage) {
		var sig transport.PeerSignal
		if err := json.Unmarshal(data, &sig); err == nil {
			got <- sig
		}
	})
	require.True(t, apitest.WaitFor(2*time.Second, func() bool { return b.Connected("u1") }))

	b.Push("u1", transport.EventTyping, transport.PeerSignal{FromUserID: "u2"})
	select {
	case sig := <-got:
		assert.Equal(t, "u2", sig.FromUserID)
	case <-time.After(2 * time.Second):
		t.Fatal("typing event not delivered")
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := apitest.New(t)
	s := dial(t, b, "u1")

	calls := make(chan struct{}, 4)
	tok := s.Subscribe(transport.EventStopTyping, func(json.RawMessage) { calls <- struct{}{} })
	// A second subscriber on another event acts as a delivery barrier.
	barrier := make(chan struct{}, 4)
	s.Subscribe(transport.EventMessagesRead, func(json.RawMessage) { barrier <- struct{}{} })
	require.True(t, apitest.WaitFor(2*time.Second, func() bool { return b.Connected("u1") }))

	s.Unsubscribe(tok)
	s.Unsubscribe(tok) // unknown token is ignored
	assert.Equal(t, 0, s.Count(transport.EventStopTyping))

	b.Push("u1", transport.EventStopTyping, transport.PeerSignal{FromUserID: "u2"})
	b.Push("u1", transport.EventMessagesRead, transport.ReadReceipt{ByUserID: "u2"})
	select {
	case <-barrier:
	case <-time.After(2 * time.Second):
		t.Fatal("barrier event not delivered")
	}
	assert.Len(t, calls, 0)
}

func TestEmit_ReachesServer(t *testing.T) {
	b := apitest.New(t)
	s := dial(t, b, "u1")

	require.NoError(t, s.Emit(transport.EventMarkAsRead, transport.MarkRead{FromUserID: "u2"}))

	var f apitest.InboundFrame
	for {
		var ok bool
		f, ok = b.NextFrame(2 * time.Second)
		require.True(t, ok, "no frame received")
		if f.Event == transport.EventMarkAsRead {
			break
		}
	}
	assert.Equal(t, "u1", f.UserID)
	assert.JSONEq(t, `{"fromUserId":"u2"}`, string(f.Data))
}

func TestClose_Idempotent(t *testing.T) {
	b := apitest.New(t)
	s := dial(t, b, "u1")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Connected())
	assert.ErrorIs(t, s.Emit(transport.EventTyping, transport.TypingSignal{ToUserID: "u2"}), transport.ErrNotConnected)
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.NoError(t, s.Err())
	assert.True(t, apitest.WaitFor(2*time.Second, func() bool { return !b.Connected("u1") }))
}

func TestServerClose_ReportsError(t *testing.T) {
	b := apitest.New(t)
	s := dial(t, b, "u1")
	require.True(t, apitest.WaitFor(2*time.Second, func() bool { return b.Connected("u1") }))

	b.Close()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("socket did not notice server shutdown")
	}
	assert.False(t, s.Connected())
	assert.Error(t, s.Err())
}
