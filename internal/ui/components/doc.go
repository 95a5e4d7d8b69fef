// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the reusable pieces of the parley TUI.

# Toasts (toast.go)

ToastManager is the notify.Notifier the stores report to. Toasts stack in
the bottom-right corner and dismiss themselves; errors stay longer than
successes. The manager is safe to call from tea.Cmd goroutines.

# Status bar (statusbar.go)

StatusBar shows who is signed in, the transport state, how many contacts
are online and whether notifications are muted.

# Helpers (helpers.go)

Width-aware truncation (go-runewidth) and human-friendly times and sizes
(go-humanize).
*/
package components
