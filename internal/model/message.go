// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ATTACHMENT KIND
// =============================================================================

// AttachmentKind names the single attachment a message may carry.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
	AttachmentVoice AttachmentKind = "voice"
	AttachmentFile  AttachmentKind = "file"
)

// String returns the string representation of the kind.
func (k AttachmentKind) String() string {
	return string(k)
}

// DisplayName returns a human-readable label for the kind.
func (k AttachmentKind) DisplayName() string {
	switch k {
	case AttachmentImage:
		return "Image"
	case AttachmentVideo:
		return "Video"
	case AttachmentVoice:
		return "Voice message"
	case AttachmentFile:
		return "File"
	default:
		return string(k)
	}
}

// Attachment is an encoded media payload. Data is a data URL on the way
// out and whatever reference the server stored (usually a URL) on the way in.
type Attachment struct {
	Kind     AttachmentKind
	Data     string
	FileName string
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single chat message as the server stores it.
// The wire format spreads the attachment over one field per kind.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Video      string    `json:"video,omitempty"`
	Voice      string    `json:"voice,omitempty"`
	File       string    `json:"file,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Attachment returns the message's attachment, or nil if it has none.
func (m *Message) Attachment() *Attachment {
	switch {
	case m.Image != "":
		return &Attachment{Kind: AttachmentImage, Data: m.Image}
	case m.Video != "":
		return &Attachment{Kind: AttachmentVideo, Data: m.Video}
	case m.Voice != "":
		return &Attachment{Kind: AttachmentVoice, Data: m.Voice}
	case m.File != "":
		return &Attachment{Kind: AttachmentFile, Data: m.File, FileName: m.FileName}
	}
	return nil
}

// IsFrom reports whether the message was sent by userID.
func (m *Message) IsFrom(userID string) bool {
	return m.SenderID == userID
}

// Preview returns a one-line summary suitable for the sidebar.
func (m *Message) Preview() string {
	if text := strings.TrimSpace(m.Text); text != "" {
		return strings.ReplaceAll(text, "\n", " ")
	}
	if a := m.Attachment(); a != nil {
		return a.Kind.DisplayName()
	}
	return ""
}

// =============================================================================
// OUTBOUND PAYLOAD
// =============================================================================

// ErrEmptyPayload is returned when a payload has neither text nor attachment.
var ErrEmptyPayload = errors.New("message is empty")

// Payload is what the composer sends: optional text plus at most one
// attachment. The union is enforced by construction; Attachment is a single
// value, so two attachments cannot be expressed.
type Payload struct {
	Text       string
	Attachment *Attachment
}

// Validate checks that the payload carries something to send and that the
// attachment kind is known.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Text) == "" && p.Attachment == nil {
		return ErrEmptyPayload
	}
	if p.Attachment != nil {
		switch p.Attachment.Kind {
		case AttachmentImage, AttachmentVideo, AttachmentVoice, AttachmentFile:
		default:
			return fmt.Errorf("unknown attachment kind %q", p.Attachment.Kind)
		}
		if p.Attachment.Data == "" {
			return fmt.Errorf("%s attachment has no data", p.Attachment.Kind)
		}
	}
	return nil
}

// WireBody converts the payload into the POST /messages body. Every key is
// present, with nil for the unused attachment slots, as the web client sends.
func (p Payload) WireBody() map[string]any {
	body := map[string]any{
		"text":  strings.TrimSpace(p.Text),
		"image": nil,
		"voice": nil,
		"file":  nil,
		"video": nil,
	}
	if a := p.Attachment; a != nil {
		body[a.Kind.String()] = a.Data
		if a.Kind == AttachmentFile && a.FileName != "" {
			body["fileName"] = a.FileName
		}
	}
	return body
}
