// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"testing"
)

// =============================================================================
// IDENTITY TESTS
// =============================================================================

func TestIdentity_Sets(t *testing.T) {
	id := &Identity{ID: "me", Contacts: []string{"a", "b"}, BlockedUsers: []string{"c"}}

	if !id.IsContact("a") || id.IsContact("c") {
		t.Errorf("IsContact mismatch for contacts %v", id.Contacts)
	}
	if !id.HasBlocked("c") || id.HasBlocked("a") {
		t.Errorf("HasBlocked mismatch for blocked %v", id.BlockedUsers)
	}

	var nilID *Identity
	if nilID.IsContact("a") || nilID.HasBlocked("a") {
		t.Error("nil identity should have no contacts or blocks")
	}
}

func TestIdentity_CloneIsDeep(t *testing.T) {
	id := &Identity{ID: "me", Contacts: []string{"a"}}
	c := id.Clone()
	c.Contacts[0] = "changed"

	if id.Contacts[0] != "a" {
		t.Errorf("Clone shares contact slice: original now %v", id.Contacts)
	}
}

func TestIdentity_DecodeWireShape(t *testing.T) {
	raw := `{"_id":"u1","name":"John Doe","nickname":"john_doe","email":"j@x.io",
		"contacts":["u2"],"blockedUsers":[],"showOnlineStatus":true}`

	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if id.ID != "u1" || !id.ShowOnlineStatus || !id.IsContact("u2") {
		t.Errorf("decoded identity = %+v", id)
	}
}

func TestPeer_DisplayName(t *testing.T) {
	tests := []struct {
		peer Peer
		want string
	}{
		{Peer{ID: "1", Name: "Ann Lee", Nickname: "ann"}, "Ann Lee"},
		{Peer{ID: "1", Nickname: "ann"}, "ann"},
		{Peer{ID: "1"}, "1"},
	}
	for _, tc := range tests {
		if got := tc.peer.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tc.peer, got, tc.want)
		}
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Attachment(t *testing.T) {
	m := Message{File: "https://cdn/x.pdf", FileName: "x.pdf"}
	a := m.Attachment()
	if a == nil || a.Kind != AttachmentFile || a.FileName != "x.pdf" {
		t.Fatalf("Attachment() = %+v", a)
	}

	if (&Message{Text: "hi"}).Attachment() != nil {
		t.Error("text-only message should have no attachment")
	}
}

func TestMessage_Preview(t *testing.T) {
	if got := (&Message{Text: "line1\nline2"}).Preview(); got != "line1 line2" {
		t.Errorf("Preview = %q", got)
	}
	if got := (&Message{Voice: "data:audio/webm;base64,AA"}).Preview(); got != "Voice message" {
		t.Errorf("Preview = %q", got)
	}
}

// =============================================================================
// PAYLOAD TESTS
// =============================================================================

func TestPayload_Validate(t *testing.T) {
	if err := (Payload{Text: "   "}).Validate(); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("blank payload error = %v, want ErrEmptyPayload", err)
	}
	if err := (Payload{Text: "hi"}).Validate(); err != nil {
		t.Errorf("text payload error = %v", err)
	}
	img := &Attachment{Kind: AttachmentImage, Data: "data:image/png;base64,AA"}
	if err := (Payload{Attachment: img}).Validate(); err != nil {
		t.Errorf("image payload error = %v", err)
	}
	bad := &Attachment{Kind: "sticker", Data: "x"}
	if err := (Payload{Attachment: bad}).Validate(); err == nil {
		t.Error("unknown attachment kind should fail")
	}
}

func TestPayload_WireBody(t *testing.T) {
	p := Payload{Text: " hi ", Attachment: &Attachment{Kind: AttachmentVoice, Data: "data:audio/webm;base64,AA"}}
	body := p.WireBody()

	if body["text"] != "hi" {
		t.Errorf("text = %v, want trimmed", body["text"])
	}
	if body["voice"] != "data:audio/webm;base64,AA" {
		t.Errorf("voice = %v", body["voice"])
	}
	for _, k := range []string{"image", "file", "video"} {
		v, ok := body[k]
		if !ok || v != nil {
			t.Errorf("%s = %v (present=%v), want explicit nil", k, v, ok)
		}
	}
}
