// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colour palette and lipgloss styles of the
parley TUI.

Colours are lipgloss AdaptiveColor values so the interface follows the
terminal background. The user's dark mode setting overrides detection, and
message bubbles take the colours picked in the settings panel:

	theme := styles.NewTheme()
	theme.ApplySettings(prefs.Theme())
	bubble := theme.SenderBubble.Render("hello")

Every status colour is paired with a shape from StatusIndicators.
*/
package styles
