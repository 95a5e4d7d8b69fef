// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"testing"
)

func TestRegistry_DispatchOrder(t *testing.T) {
	var r Registry
	var order []int
	r.Subscribe("newMessage", func(json.RawMessage) { order = append(order, 1) })
	r.Subscribe("newMessage", func(json.RawMessage) { order = append(order, 2) })
	r.Subscribe("typing", func(json.RawMessage) { order = append(order, 99) })

	if n := r.Dispatch("newMessage", nil); n != 2 {
		t.Fatalf("Dispatch ran %d handlers, want 2", n)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
}

func TestRegistry_HandlerMayUnsubscribeItself(t *testing.T) {
	var r Registry
	calls := 0
	var tok Token
	tok = r.Subscribe("typing", func(json.RawMessage) {
		calls++
		r.Unsubscribe(tok)
	})

	r.Dispatch("typing", nil)
	r.Dispatch("typing", nil)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if r.Count("typing") != 0 {
		t.Errorf("Count = %d after self-unsubscribe", r.Count("typing"))
	}
}

func TestRegistry_UnsubscribeKeepsOthers(t *testing.T) {
	var r Registry
	a := r.Subscribe("typing", func(json.RawMessage) {})
	r.Subscribe("typing", func(json.RawMessage) {})
	r.Unsubscribe(a)
	if r.Count("typing") != 1 {
		t.Errorf("Count = %d, want 1", r.Count("typing"))
	}
	r.Unsubscribe(Token("never-issued"))
}
