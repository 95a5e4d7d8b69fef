// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// =============================================================================
// SHARED HELPER FUNCTIONS
// =============================================================================

// Truncate shortens s to at most width display columns, ending in an
// ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// PadRight pads s with spaces to width display columns.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// MessageTime formats a message timestamp: the clock time for today,
// otherwise a relative time ("3 days ago").
func MessageTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	y1, m1, d1 := t.Local().Date()
	y2, m2, d2 := now.Local().Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Local().Format("15:04")
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Size renders a byte count ("1.2 MiB").
func Size(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
