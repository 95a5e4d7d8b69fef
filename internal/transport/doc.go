// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the live socket channel to the chat backend.
//
// A Socket is a websocket connection opened at <socket_url>?userId=<id>
// carrying JSON frames of the form {"event": "<name>", "data": <payload>}.
// Listeners attach per event name with Subscribe and detach with the
// returned Token, so a store can release exactly the handlers it owns.
//
//	sock, err := transport.Dial(ctx, url, ident.ID, transport.Options{})
//	tok := sock.Subscribe(transport.EventNewMessage, func(data json.RawMessage) { ... })
//	defer sock.Unsubscribe(tok)
//	_ = sock.Emit(transport.EventTyping, transport.TypingSignal{ToUserID: peer})
package transport
