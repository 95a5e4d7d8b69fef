// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Brand - Header, focused panes, own nickname
var Brand = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}

// BrandDeep - Selected roster row background
var BrandDeep = lipgloss.AdaptiveColor{Light: "#DBEAFE", Dark: "#1E3A8A"}

// Online - Presence dot, connected indicator
var Online = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}

// Unread - Unread badges
var Unread = lipgloss.AdaptiveColor{Light: "#DB2777", Dark: "#F472B6"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Rose - Errors, blocked peers, destructive actions
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings, reconnecting, muted
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Emerald - Success toasts
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Cyan - Informational toasts, links
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

var Surface = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#111827"}
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#0B1120"}
var SurfaceBright = lipgloss.AdaptiveColor{Light: "#F9FAFB", Dark: "#1F2937"}
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}

// =============================================================================
// TEXT COLORS
// =============================================================================

var TextPrimary = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F3F4F6"}
var TextSecondary = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet pairs every status with a shape so state does not rely
// on colour alone.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Online  string
	Offline string
	Typing  string
}

// StatusIndicators is ASCII-only for terminals without good Unicode fonts.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Online:  "*",
	Offline: "o",
	Typing:  "...",
}

// RenderError renders message in high-contrast red with its indicator.
func RenderError(message string) string {
	return lipgloss.NewStyle().Foreground(Rose).Bold(true).
		Render(StatusIndicators.Error + " " + message)
}

// RenderSuccess renders message in green with its indicator.
func RenderSuccess(message string) string {
	return lipgloss.NewStyle().Foreground(Emerald).Bold(true).
		Render(StatusIndicators.Success + " " + message)
}
