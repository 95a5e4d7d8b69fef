// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// =============================================================================
// PALETTE
// =============================================================================

// Shades are the selectable steps of every colour family, lightest first.
var Shades = []int{50, 100, 200, 300, 400, 500, 600, 700, 800, 900, 950}

// Families lists the colour families in picker order, each with its
// mid-tone (shade 500). Other shades are blended from it.
var Families = []Family{
	{"slate", "#64748b"}, {"gray", "#6b7280"}, {"zinc", "#71717a"},
	{"neutral", "#737373"}, {"stone", "#78716c"}, {"red", "#ef4444"},
	{"orange", "#f97316"}, {"amber", "#f59e0b"}, {"yellow", "#eab308"},
	{"lime", "#84cc16"}, {"green", "#22c55e"}, {"emerald", "#10b981"},
	{"teal", "#14b8a6"}, {"cyan", "#06b6d4"}, {"sky", "#0ea5e9"},
	{"blue", "#3b82f6"}, {"indigo", "#6366f1"}, {"violet", "#8b5cf6"},
	{"purple", "#a855f7"}, {"fuchsia", "#d946ef"}, {"pink", "#ec4899"},
	{"rose", "#f43f5e"},
}

// Family is a named colour ramp.
type Family struct {
	Name string
	Base string
}

// ErrBadColor is returned for colours outside the palette.
var ErrBadColor = errors.New("settings: unknown bubble colour")

var (
	white = colorful.Color{R: 1, G: 1, B: 1}
	black = colorful.Color{R: 0, G: 0, B: 0}
)

func lookupFamily(name string) (Family, bool) {
	for _, f := range Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

func validShade(shade int) bool {
	for _, s := range Shades {
		if s == shade {
			return true
		}
	}
	return false
}

// =============================================================================
// BUBBLE
// =============================================================================

// Bubble is a message bubble colour: a palette family at a shade. Its text
// form is the class pair "bg-<family>-<shade> text-<white|black>".
type Bubble struct {
	Family string
	Shade  int
}

// Default bubble colours.
var (
	DefaultSenderBubble   = Bubble{Family: "blue", Shade: 600}
	DefaultReceiverBubble = Bubble{Family: "blue", Shade: 900}
)

// ParseBubble accepts "blue-600", "bg-blue-600" or the full class pair.
func ParseBubble(s string) (Bubble, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return Bubble{}, fmt.Errorf("%w: empty", ErrBadColor)
	}
	name := strings.TrimPrefix(fields[0], "bg-")
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return Bubble{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	shade, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return Bubble{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	b := Bubble{Family: name[:i], Shade: shade}
	if _, ok := lookupFamily(b.Family); !ok || !validShade(shade) {
		return Bubble{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return b, nil
}

// LightText reports whether text on this bubble is white. Shades above
// 300 take white text, lighter ones black.
func (b Bubble) LightText() bool { return b.Shade > 300 }

// Name is the short form, e.g. "blue-600".
func (b Bubble) Name() string { return b.Family + "-" + strconv.Itoa(b.Shade) }

// String returns the class pair.
func (b Bubble) String() string {
	text := "text-black"
	if b.LightText() {
		text = "text-white"
	}
	return "bg-" + b.Name() + " " + text
}

func (b Bubble) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bubble) UnmarshalText(text []byte) error {
	parsed, err := ParseBubble(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Background is the bubble colour as #rrggbb.
func (b Bubble) Background() string {
	return shadeOf(b.Family, b.Shade).Hex()
}

// Foreground is the text colour as #rrggbb.
func (b Bubble) Foreground() string {
	if b.LightText() {
		return white.Hex()
	}
	return black.Hex()
}

func shadeOf(family string, shade int) colorful.Color {
	f, ok := lookupFamily(family)
	if !ok {
		f, _ = lookupFamily(DefaultSenderBubble.Family)
	}
	base, err := colorful.Hex(f.Base)
	if err != nil {
		return black
	}
	switch {
	case shade < 500:
		return base.BlendLab(white, float64(500-shade)/500*0.95).Clamped()
	case shade > 500:
		return base.BlendLab(black, float64(shade-500)/500*0.8).Clamped()
	default:
		return base
	}
}
