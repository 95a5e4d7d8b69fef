// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/parley-tui/internal/settings"
)

// Theme holds every lipgloss style the chat screens use. Bubble colours
// and dark mode come from the user's settings; everything else adapts to
// the terminal background.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header and status bar
	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusValue lipgloss.Style

	// Roster
	Sidebar      lipgloss.Style
	PeerItem     lipgloss.Style
	PeerSelected lipgloss.Style
	PeerBlocked  lipgloss.Style
	OnlineDot    lipgloss.Style
	OfflineDot   lipgloss.Style
	UnreadBadge  lipgloss.Style

	// Thread
	Thread       lipgloss.Style
	ThreadTitle  lipgloss.Style
	SenderBubble lipgloss.Style
	PeerBubble   lipgloss.Style
	Timestamp    lipgloss.Style
	ReadMark     lipgloss.Style
	TypingText   lipgloss.Style
	Attachment   lipgloss.Style
	EmptyState   lipgloss.Style

	// Composer
	Composer         lipgloss.Style
	ComposerPrompt   lipgloss.Style
	ComposerDisabled lipgloss.Style

	// Forms and dialogs
	Dialog       lipgloss.Style
	DialogTitle  lipgloss.Style
	Label        lipgloss.Style
	FieldFocused lipgloss.Style
	Hint         lipgloss.Style
	ErrorText    lipgloss.Style
	Swatch       lipgloss.Style

	// Wallpaper is drawn as a label in the thread header; terminals cannot
	// show the image itself.
	WallpaperTag lipgloss.Style
}

// NewTheme detects the terminal and builds the default styles.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	t.ApplySettings(settings.DefaultTheme())
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Brand).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Brand)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Foreground(Brand).Bold(true)
	t.StatusValue = lipgloss.NewStyle().Foreground(TextSecondary)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.PeerItem = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(1)
	t.PeerSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(BrandDeep).
		Bold(true).
		PaddingLeft(1)
	t.PeerBlocked = lipgloss.NewStyle().Foreground(Rose).Strikethrough(true).PaddingLeft(1)
	t.OnlineDot = lipgloss.NewStyle().Foreground(Online).Bold(true)
	t.OfflineDot = lipgloss.NewStyle().Foreground(TextMuted)
	t.UnreadBadge = lipgloss.NewStyle().Foreground(Unread).Bold(true)

	t.Thread = lipgloss.NewStyle().PaddingLeft(1)
	t.ThreadTitle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.ReadMark = lipgloss.NewStyle().Foreground(Brand)
	t.TypingText = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Attachment = lipgloss.NewStyle().Foreground(Cyan).Underline(true)
	t.EmptyState = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).Padding(1, 2)

	t.Composer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.ComposerPrompt = lipgloss.NewStyle().Foreground(Brand).Bold(true)
	t.ComposerDisabled = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Brand).
		Padding(1, 3)
	t.DialogTitle = lipgloss.NewStyle().Bold(true).Foreground(Brand).MarginBottom(1)
	t.Label = lipgloss.NewStyle().Foreground(TextSecondary)
	t.FieldFocused = lipgloss.NewStyle().Foreground(Brand).Bold(true)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.Swatch = lipgloss.NewStyle().Padding(0, 1)

	t.WallpaperTag = lipgloss.NewStyle().Foreground(TextMuted).Faint(true)
}

// ApplySettings restyles the bubbles and applies dark mode. Dark mode
// forces the dark variant of every adaptive colour; otherwise the
// terminal background decides.
func (t *Theme) ApplySettings(st settings.Theme) {
	if st.DarkMode {
		lipgloss.SetHasDarkBackground(true)
	} else {
		lipgloss.SetHasDarkBackground(t.IsDark)
	}
	t.SenderBubble = BubbleStyle(st.SenderBubble).MarginLeft(4)
	t.PeerBubble = BubbleStyle(st.ReceiverBubble).MarginRight(4)
}

// BubbleStyle renders a message bubble in b's colours.
func BubbleStyle(b settings.Bubble) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(b.Foreground())).
		Background(lipgloss.Color(b.Background())).
		Padding(0, 1)
}

// SwatchStyle is a colour cell of the bubble picker.
func (t *Theme) SwatchStyle(b settings.Bubble, selected bool) lipgloss.Style {
	s := t.Swatch.
		Foreground(lipgloss.Color(b.Foreground())).
		Background(lipgloss.Color(b.Background()))
	if selected {
		s = s.Bold(true).Underline(true)
	}
	return s
}

// SetSize updates the dimensions used for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth is the roster width for the current layout. Narrow
// terminals show either the roster or the thread, never both.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return t.Width
	case LayoutMedium:
		return 24
	default:
		return 32
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
