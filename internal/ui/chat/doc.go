// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the parley terminal application: a single Bubble Tea model
that drives every screen on top of the session, conversation, settings and
search stores.

# Screens

  - Login, signup, forgot password and reset password forms (auth.go)
  - Home: contact roster on the left, the selected thread on the right and a
    composer at the bottom (home.go)
  - Settings: appearance, notifications and privacy (settings_view.go)
  - Search: the paginated user search overlay (search_view.go)

# Data Flow

The stores own all state. Store operations run inside tea.Cmd goroutines;
each store's change hook is forwarded into the program as a StoreChangedMsg
through a Bridge, and the model re-reads the stores when it arrives:

	bridge := chat.NewBridge()
	chat.Wire(deps, bridge)
	p := tea.NewProgram(chat.New(ctx, deps), tea.WithAltScreen())
	bridge.Attach(p.Send)

# Composer Commands

Lines starting with / are commands (commands.go): attachments (/image,
/video, /file, /voice), contact management (/add, /remove, /block,
/unblock, /search), /clear, /export, /transcript, /settings, /logout and
/help.
*/
package chat
