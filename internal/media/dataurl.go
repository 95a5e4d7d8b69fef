// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package media turns local files and voice captures into message
// attachments, and renders or saves the attachments peers send.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/validate"
)

// MaxAttachmentSize bounds files read into memory for sending.
const MaxAttachmentSize = 25 << 20

var (
	// ErrNotDataURL is returned when a string is not a base64 data URL.
	ErrNotDataURL = errors.New("media: not a base64 data url")
	// ErrTooLarge is returned for files over MaxAttachmentSize.
	ErrTooLarge = errors.New("media: file too large")
)

// EncodeDataURL builds data:<mime>;base64,<payload>.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	return mimeType, data, nil
}

// DetectMIME picks a MIME type from content, falling back to the file
// extension when sniffing is inconclusive.
func DetectMIME(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	base, _, _ := mime.ParseMediaType(sniffed)
	if base != "application/octet-stream" && base != "text/plain" {
		return base
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if t, _, err := mime.ParseMediaType(byExt); err == nil {
			return t
		}
	}
	return base
}

// ReadFile reads path, refusing files over MaxAttachmentSize.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, filepath.Base(path))
	}
	return data, nil
}

// LoadAttachment reads path as an attachment of kind. The MIME type must
// fit the kind; files accept anything.
func LoadAttachment(path string, kind model.AttachmentKind) (*model.Attachment, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	mimeType := DetectMIME(path, data)
	if err := validate.Attachment(kind, mimeType); err != nil {
		return nil, err
	}
	a := &model.Attachment{Kind: kind, Data: EncodeDataURL(mimeType, data)}
	if kind == model.AttachmentFile {
		a.FileName = filepath.Base(path)
	}
	return a, nil
}

// LoadFailureMessage is the notification shown when an attachment cannot
// be read.
func LoadFailureMessage(kind model.AttachmentKind) string {
	switch kind {
	case model.AttachmentImage:
		return "Failed to load image."
	case model.AttachmentVideo:
		return "Failed to load video."
	case model.AttachmentVoice:
		return "Failed to load voice message."
	default:
		return "Failed to load file."
	}
}

// Fetch copies an attachment reference into w. The reference is either a
// data URL or an http(s) URL served by the backend's storage.
func Fetch(ctx context.Context, client *http.Client, ref string, w io.Writer) (int64, error) {
	if strings.HasPrefix(ref, "data:") {
		_, data, err := DecodeDataURL(ref)
		if err != nil {
			return 0, err
		}
		n, err := w.Write(data)
		return int64(n), err
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch attachment: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch attachment: HTTP %d", resp.StatusCode)
	}
	return io.Copy(w, io.LimitReader(resp.Body, MaxAttachmentSize))
}
