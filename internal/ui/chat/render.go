// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"html"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/ui/components"
)

// =============================================================================
// SANITIZING
// =============================================================================

// textPolicy strips every tag; messages are rendered as markdown, not HTML.
var textPolicy = bluemonday.StrictPolicy()

// sanitizeText removes markup and terminal control characters from text
// that came from another user. Newlines and tabs survive.
func sanitizeText(s string) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0):
			return -1
		}
		return r
	}, s)
}

// cleanName sanitizes a display name onto one line.
func cleanName(s string) string {
	return strings.Join(strings.Fields(sanitizeText(s)), " ")
}

// =============================================================================
// MARKDOWN
// =============================================================================

// markdown renders message text, caching one renderer per width and
// style and one result per message.
type markdown struct {
	renderer *glamour.TermRenderer
	width    int
	style    string
	cache    map[string]string
}

func newMarkdown() *markdown {
	return &markdown{cache: make(map[string]string)}
}

func (md *markdown) configure(width int, dark bool) {
	style := "light"
	if dark {
		style = "dark"
	}
	if md.renderer != nil && md.width == width && md.style == style {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md.renderer = nil
	} else {
		md.renderer = r
	}
	md.width, md.style = width, style
	clear(md.cache)
}

// render returns text as styled terminal output. id keys the cache; an
// empty id is not cached.
func (md *markdown) render(id, text string) string {
	if out, ok := md.cache[id]; ok && id != "" {
		return out
	}
	text = sanitizeText(text)
	out := text
	if md.renderer != nil {
		if rendered, err := md.renderer.Render(text); err == nil {
			out = strings.Trim(rendered, "\n")
			out = trimLines(out)
		}
	}
	if out == "" {
		out = text
	}
	if id != "" {
		md.cache[id] = out
	}
	return out
}

// trimLines drops the blank margin lines glamour puts around a document.
func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(stripANSI(lines[start])) == "" {
		start++
	}
	for end > start && strings.TrimSpace(stripANSI(lines[end-1])) == "" {
		end--
	}
	for i := start; i < end; i++ {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines[start:end], "\n")
}

// stripANSI removes CSI escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			i += 2
			for i < len(s) && (s[i] < 0x40 || s[i] > 0x7e) {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// attachmentSummary describes an attachment on one line: its kind, its
// name and, for inline data, its size.
func attachmentSummary(a *model.Attachment) string {
	parts := []string{"[" + a.Kind.DisplayName() + "]"}
	if name := attachmentName(a); name != "" {
		parts = append(parts, cleanName(name))
	}
	if _, data, err := media.DecodeDataURL(a.Data); err == nil {
		parts = append(parts, components.Size(len(data)))
	}
	return strings.Join(parts, " ")
}

// attachmentName is the file name, or the last element of a URL
// reference.
func attachmentName(a *model.Attachment) string {
	if a.FileName != "" {
		return a.FileName
	}
	if strings.HasPrefix(a.Data, "data:") || a.Data == "" {
		return ""
	}
	ref := a.Data
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	base := path.Base(ref)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// attachmentPreview highlights inline text files.
func attachmentPreview(a *model.Attachment) string {
	if a.Kind != model.AttachmentFile {
		return ""
	}
	_, data, err := media.DecodeDataURL(a.Data)
	if err != nil {
		return ""
	}
	return media.PreviewText(a.FileName, data)
}

// =============================================================================
// MESSAGES
// =============================================================================

// renderMessage draws one message as a bubble aligned to its side of the
// thread.
func (m *Model) renderMessage(msg model.Message, meID string, width int) string {
	t := m.theme
	mine := msg.SenderID == meID
	bubbleWidth := max(width*7/10, 16)

	var body []string
	if strings.TrimSpace(msg.Text) != "" {
		body = append(body, m.home.md.render(msg.ID, msg.Text))
	}
	if a := msg.Attachment(); a != nil {
		body = append(body, t.Attachment.Render(attachmentSummary(a)))
		if preview := attachmentPreview(a); preview != "" {
			body = append(body, preview)
		}
	}

	style := t.PeerBubble
	if mine {
		style = t.SenderBubble
	}
	bubble := style.MaxWidth(bubbleWidth).Render(strings.Join(body, "\n"))

	var meta []string
	if m.deps.ShowTimestamps && !msg.CreatedAt.IsZero() {
		meta = append(meta, components.MessageTime(msg.CreatedAt, m.now()))
	}
	if mine {
		if msg.IsRead {
			meta = append(meta, t.ReadMark.Render("read"))
		} else {
			meta = append(meta, "sent")
		}
	}
	block := bubble
	if len(meta) > 0 {
		block += "\n" + t.Timestamp.Render(strings.Join(meta, " "))
	}

	align := lipgloss.Left
	if mine {
		align = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, align, block)
}

// unreadBadge renders the unread count for the roster.
func unreadBadge(n int) string {
	if n > 99 {
		return "99+"
	}
	return strconv.Itoa(n)
}
