// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import "encoding/json"

// Event names used by the backend.
const (
	// Inbound
	EventGetOnlineUsers = "getOnlineUsers" // []string
	EventNewMessage     = "newMessage"     // model.Message
	EventMessagesRead   = "messagesRead"   // ReadReceipt

	// Both directions: inbound carries PeerSignal, outbound TypingSignal
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"

	// Outbound
	EventMarkAsRead = "markAsRead" // MarkRead
)

// Frame is the envelope of every socket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingSignal tells the server who the user is typing to.
type TypingSignal struct {
	ToUserID string `json:"toUserId"`
}

// PeerSignal is an inbound typing or stopTyping notification.
type PeerSignal struct {
	FromUserID string `json:"fromUserId"`
}

// ReadReceipt reports that a peer has read our messages.
type ReadReceipt struct {
	ByUserID string `json:"byUserId"`
}

// MarkRead acknowledges the messages received from a peer.
type MarkRead struct {
	FromUserID string `json:"fromUserId"`
}
