// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/parley-tui/internal/model"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("export: conversation has no messages")

// Transcript is one conversation as it is exported.
type Transcript struct {
	Me         string          `json:"me"`
	MeID       string          `json:"meId"`
	Peer       model.Peer      `json:"peer"`
	Messages   []model.Message `json:"messages"`
	ExportedAt time.Time       `json:"exportedAt"`
}

// NewTranscript builds a transcript of the thread between me and peer.
func NewTranscript(me *model.Identity, peer model.Peer, messages []model.Message) *Transcript {
	t := &Transcript{Peer: peer, Messages: messages, ExportedAt: time.Now()}
	if me != nil {
		t.Me, t.MeID = me.DisplayName(), me.ID
	}
	return t
}

// author names the sender of msg.
func (t *Transcript) author(msg model.Message) string {
	if msg.SenderID == t.MeID {
		if t.Me == "" {
			return "Me"
		}
		return t.Me
	}
	return t.Peer.DisplayName()
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for transcript exporters.
type Exporter interface {
	// Export converts a transcript to the target format.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are saved. Default: current directory.
	OutputDir string

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{OutputDir: ".", IncludeTimestamps: true}
}

// ExportToFile writes the transcript into opts.OutputDir and returns the
// file path.
func ExportToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if t == nil || len(t.Messages) == 0 {
		return "", ErrEmptyTranscript
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("chat_%s_%s%s",
		sanitizeFilename(t.Peer.DisplayName()),
		t.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(opts.OutputDir, filename)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// ExporterFor returns the exporter for a format name ("md", "markdown" or
// "json").
func ExporterFor(format string, opts *Options) (Exporter, error) {
	switch format {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in
// filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}
	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}
