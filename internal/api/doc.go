// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the chat backend's REST API.
//
// The backend authenticates with a session cookie set by /auth/login and
// /auth/signup. The client keeps it in a cookie jar that can be exported
// and restored so a restarted process can re-probe the session.
//
// Successful responses are enveloped as {"status": ..., "data": {...}};
// failures carry {"message": ...}. Failures surface as *Error, which
// unwraps to one of the sentinel errors so callers can branch with
// errors.Is:
//
//	ident, err := client.Login(ctx, creds)
//	if errors.Is(err, api.ErrUnauthorized) {
//	    // wrong credentials
//	}
//	toast := api.UserMessage(err, "")
package api
