// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/parley-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Attachments are listed by kind
// and file name; their data is not embedded.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "peer: %s\n", escapeYAML(t.Peer.DisplayName()))
	if t.Peer.Nickname != "" {
		fmt.Fprintf(&sb, "nickname: %s\n", escapeYAML(t.Peer.Nickname))
	}
	fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
	fmt.Fprintf(&sb, "exported: %s\n", t.ExportedAt.Format(time.RFC3339))
	sb.WriteString("generator: parley\n")
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# Chat with %s\n\n", escapeMarkdown(t.Peer.DisplayName()))

	for _, msg := range t.Messages {
		label := "**" + escapeMarkdown(t.author(msg)) + "**"
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			label += " <sub>" + msg.CreatedAt.Local().Format("2006-01-02 15:04") + "</sub>"
		}
		sb.WriteString(label)
		sb.WriteString("\n\n")

		if text := strings.TrimSpace(msg.Text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
		if a := msg.Attachment(); a != nil {
			sb.WriteString(formatAttachment(a))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "*Exported from parley on %s*\n", t.ExportedAt.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

func formatAttachment(a *model.Attachment) string {
	if a.Kind == model.AttachmentFile && a.FileName != "" {
		return fmt.Sprintf("> _%s: %s_", a.Kind.DisplayName(), escapeMarkdown(a.FileName))
	}
	return fmt.Sprintf("> _%s_", a.Kind.DisplayName())
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break names and headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// escapeYAML quotes values that YAML would misread.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
