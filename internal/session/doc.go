// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authenticated identity and the live transport.
//
// # Key Types
//
//   - Manager: identity, online roster and transport lifecycle
//   - DialFunc: opens a transport channel for an identity id
//   - Channel: a transport.Conn the manager can close and watch
//
// # Usage
//
//	mgr := session.New(client, session.SocketDialer(cfg.Server.ResolvedSocketURL(), client), toasts)
//	if ident := mgr.CheckExistingSession(ctx, true); ident == nil {
//	    // show the login screen
//	}
//	defer mgr.EndSession(ctx)
//
// The conversation store never sees the manager directly; it receives
// the Conn through CurrentTransport and the OnConnect hook.
package session
