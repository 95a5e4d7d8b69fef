// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the application.
type KeyMap struct {
	Quit     key.Binding
	Back     key.Binding
	Submit   key.Binding
	Next     key.Binding
	Prev     key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Help     key.Binding

	// Auth screens
	ToSignup key.Binding
	ToForgot key.Binding
	ToReset  key.Binding

	// Home screen
	Settings key.Binding
	Search   key.Binding
	Record   key.Binding
	Dismiss  key.Binding

	// Settings screen
	Toggle key.Binding
	Left   key.Binding
	Right  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "back"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "submit"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "previous field"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("up/C-p", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("down/C-n", "next"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "toggle help"),
		),
		ToSignup: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "create account"),
		),
		ToForgot: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "forgot password"),
		),
		ToReset: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "enter reset token"),
		),
		Settings: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "settings"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "find users"),
		),
		Record: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "record voice"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "dismiss toast"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("Space", "toggle"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("left/h", "previous value"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("right/l", "next value"),
		),
	}
}

// HomeHelp returns the bindings listed in the home screen help overlay.
func (k KeyMap) HomeHelp() []key.Binding {
	return []key.Binding{
		k.Next, k.Up, k.Down, k.Submit, k.PageUp, k.PageDown,
		k.Search, k.Settings, k.Record, k.Dismiss, k.Help, k.Quit,
	}
}
