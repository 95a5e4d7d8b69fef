// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Link is the transport state shown in the status bar.
type Link int

const (
	LinkOffline Link = iota
	LinkConnecting
	LinkOnline
)

// String returns the display string for the link state.
func (l Link) String() string {
	switch l {
	case LinkOnline:
		return "connected"
	case LinkConnecting:
		return "connecting"
	default:
		return "offline"
	}
}

// Icon pairs the state with a shape.
func (l Link) Icon() string {
	switch l {
	case LinkOnline:
		return styles.StatusIndicators.Online
	case LinkConnecting:
		return styles.StatusIndicators.Warning
	default:
		return styles.StatusIndicators.Offline
	}
}

// StatusBar is the bottom line of the chat screen.
type StatusBar struct {
	Nickname    string
	Link        Link
	OnlineCount int
	Muted       bool
	SoundMuted  bool
	Hidden      bool // online status hidden from others
	Hint        string
	Width       int
	theme       *styles.Theme
}

// NewStatusBar creates a StatusBar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{theme: theme, Width: 80}
}

// View renders the status bar, dropping the hint first and then the
// right-hand segments when the terminal is narrow.
func (s *StatusBar) View() string {
	t := s.theme

	var linkColor lipgloss.AdaptiveColor
	switch s.Link {
	case LinkOnline:
		linkColor = styles.Online
	case LinkConnecting:
		linkColor = styles.Amber
	default:
		linkColor = styles.Rose
	}
	link := lipgloss.NewStyle().Foreground(linkColor).Bold(true).
		Render(s.Link.Icon() + " " + s.Link.String())

	left := []string{t.StatusKey.Render("@" + s.Nickname), link}
	var right []string
	right = append(right, t.StatusValue.Render(strconv.Itoa(s.OnlineCount)+" online"))
	if s.Hidden {
		right = append(right, t.StatusValue.Render("hidden"))
	}
	switch {
	case s.Muted:
		right = append(right, lipgloss.NewStyle().Foreground(styles.Amber).Render("muted"))
	case s.SoundMuted:
		right = append(right, t.StatusValue.Render("silent"))
	}

	width := s.Width - 2
	leftStr := strings.Join(left, "  ")
	rightStr := strings.Join(right, "  ")
	hint := t.StatusValue.Render(s.Hint)

	used := lipgloss.Width(leftStr) + lipgloss.Width(rightStr)
	var line string
	switch {
	case s.Hint != "" && used+lipgloss.Width(hint)+4 <= width:
		gap := width - used - lipgloss.Width(hint)
		line = leftStr + spaces(gap/2) + hint + spaces(gap-gap/2) + rightStr
	case used+2 <= width:
		line = leftStr + spaces(width-used) + rightStr
	default:
		line = lipgloss.NewStyle().MaxWidth(width).Render(leftStr)
	}
	return t.StatusBar.Width(s.Width).Render(line)
}

func spaces(n int) string {
	if n < 1 {
		return " "
	}
	return strings.Repeat(" ", n)
}
