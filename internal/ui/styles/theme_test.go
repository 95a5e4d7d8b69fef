// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/parley-tui/internal/settings"
)

func TestLayoutMode(t *testing.T) {
	tests := []struct {
		width   int
		mode    LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 40},
		{80, LayoutMedium, 24},
		{140, LayoutWide, 32},
	}
	theme := NewTheme()
	for _, tt := range tests {
		theme.SetSize(tt.width, 30)
		assert.Equal(t, tt.mode, theme.GetLayoutMode(), tt.width)
		assert.Equal(t, tt.sidebar, theme.SidebarWidth(), tt.width)
	}
}

func TestApplySettings(t *testing.T) {
	theme := NewTheme()
	st := settings.DefaultTheme()
	st.SenderBubble = settings.Bubble{Family: "rose", Shade: 200}
	theme.ApplySettings(st)

	assert.Equal(t, lipgloss.Color("#000000"), theme.SenderBubble.GetForeground())
	assert.Equal(t, lipgloss.Color(st.SenderBubble.Background()), theme.SenderBubble.GetBackground())
	assert.Equal(t, lipgloss.Color("#ffffff"), theme.PeerBubble.GetForeground())

	st.DarkMode = true
	theme.ApplySettings(st)
	assert.True(t, lipgloss.HasDarkBackground())
}

func TestRenderHelpers(t *testing.T) {
	assert.Contains(t, RenderError("nope"), "[X] nope")
	assert.Contains(t, RenderSuccess("done"), "[OK] done")
}
