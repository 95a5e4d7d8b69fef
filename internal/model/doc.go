// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the parley stores.
//
// These are the client-side shapes of the backend's JSON documents. The
// backend is authoritative for all of them; the client never fabricates an
// identity or a message, it only keeps the last copy the server returned.
//
// # Key Types
//
//   - Identity: The authenticated user with contact and block sets
//   - Peer: Another user as listed in the roster or in search results
//   - Message: A single message with optional attachment and read flag
//   - Payload: The outbound message union (text plus at most one attachment)
//
// # Usage
//
// Build an outbound payload:
//
//	p := model.Payload{Text: "hello", Attachment: &model.Attachment{
//	    Kind: model.AttachmentImage,
//	    Data: dataURL,
//	}}
//	if err := p.Validate(); err != nil {
//	    return err
//	}
package model
