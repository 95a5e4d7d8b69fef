// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validate checks user input locally, before anything reaches the
// network. Every failure is a *Error carrying a Kind and the message shown
// to the user.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/parley-tui/internal/model"
)

// Kind classifies a validation failure.
type Kind int

const (
	KindFullName Kind = iota + 1
	KindNicknameMissing
	KindNicknameTooShort
	KindNicknameTooLong
	KindNicknameFormat
	KindMissingFields
	KindPasswordMismatch
	KindPasswordMissing
	KindEmail
	KindImageType
	KindVideoType
	KindVoiceType
	KindFileSize
	KindEmptyMessage
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFullName:
		return "full_name"
	case KindNicknameMissing:
		return "nickname_missing"
	case KindNicknameTooShort:
		return "nickname_too_short"
	case KindNicknameTooLong:
		return "nickname_too_long"
	case KindNicknameFormat:
		return "nickname_format"
	case KindMissingFields:
		return "missing_fields"
	case KindPasswordMismatch:
		return "password_mismatch"
	case KindPasswordMissing:
		return "password_missing"
	case KindEmail:
		return "email"
	case KindImageType:
		return "image_type"
	case KindVideoType:
		return "video_type"
	case KindVoiceType:
		return "voice_type"
	case KindFileSize:
		return "file_size"
	case KindEmptyMessage:
		return "empty_message"
	default:
		return "unknown"
	}
}

// Error is a validation failure. Message is what the user sees.
type Error struct {
	Kind    Kind
	Message string
	// Detail adds machine-derived context (sizes, offending value).
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Detail)
	}
	return e.Message
}

// Is matches another *Error of the same Kind, so callers can write
// errors.Is(err, &validate.Error{Kind: validate.KindFileSize}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or 0 when err is not a validation error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func fail(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// =============================================================================
// ACCOUNT FORMS
// =============================================================================

const (
	NicknameMinLen = 5
	NicknameMaxLen = 30

	msgFullName         = "Not a valid full name."
	msgNicknameMissing  = "Please provide a nickname."
	msgNicknameTooShort = "Nickname is too short. It must be at least 5 characters."
	msgNicknameTooLong  = "Nickname is too long. Max length 30 characters."
	msgNicknameFormat   = "Nickname must start with a letter, can only contain letters, numbers, underscores, and periods. No consecutive or trailing periods. Max length 30 characters."
	msgMissingFields    = "Please fill in all fields."
	msgPasswordMismatch = "Passwords do not match."
	msgPasswordMissing  = "Please fill in both password fields."
	msgEmail            = "Please provide a valid email."
)

var (
	fullNameChars = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	nicknameChars = regexp.MustCompile(`^[a-z][a-z0-9._]*$`)
	emailShape    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// FullName requires at least two whitespace-separated parts made of
// letters only.
func FullName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(strings.Fields(trimmed)) < 2 || !fullNameChars.MatchString(trimmed) {
		return fail(KindFullName, msgFullName)
	}
	return nil
}

// NormalizeNickname trims, NFC-normalises and lower-cases a nickname.
func NormalizeNickname(nickname string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(nickname)))
}

// Nickname checks presence, length and the allowed character set.
func Nickname(nickname string) error {
	if nickname == "" {
		return fail(KindNicknameMissing, msgNicknameMissing)
	}
	n := NormalizeNickname(nickname)
	switch length := len([]rune(n)); {
	case length < NicknameMinLen:
		e := fail(KindNicknameTooShort, msgNicknameTooShort)
		e.Detail = fmt.Sprintf("%d characters", length)
		return e
	case length > NicknameMaxLen:
		e := fail(KindNicknameTooLong, msgNicknameTooLong)
		e.Detail = fmt.Sprintf("%d characters", length)
		return e
	}
	if !nicknameChars.MatchString(n) || strings.Contains(n, "..") || strings.HasSuffix(n, ".") {
		return fail(KindNicknameFormat, msgNicknameFormat)
	}
	return nil
}

// Email performs a shape check only; the server owns the real rules.
func Email(email string) error {
	if !emailShape.MatchString(strings.TrimSpace(email)) {
		return fail(KindEmail, msgEmail)
	}
	return nil
}

// Signup validates the whole signup form in the order the form shows
// its errors: name, nickname, required fields, password match.
func Signup(form model.SignupForm) error {
	if err := FullName(form.Name); err != nil {
		return err
	}
	if err := Nickname(form.Nickname); err != nil {
		return err
	}
	if form.Name == "" || form.Email == "" || form.Password == "" || form.PasswordConfirm == "" {
		return fail(KindMissingFields, msgMissingFields)
	}
	if err := Email(form.Email); err != nil {
		return err
	}
	if form.Password != form.PasswordConfirm {
		return fail(KindPasswordMismatch, msgPasswordMismatch)
	}
	return nil
}

// Login requires both fields.
func Login(creds model.Credentials) error {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return fail(KindMissingFields, msgMissingFields)
	}
	return nil
}

// ResetPassword requires both password fields and that they match.
func ResetPassword(password, confirm string) error {
	if password == "" || confirm == "" {
		return fail(KindPasswordMissing, msgPasswordMissing)
	}
	if password != confirm {
		return fail(KindPasswordMismatch, msgPasswordMismatch)
	}
	return nil
}

// =============================================================================
// MEDIA
// =============================================================================

// MaxWallpaperSize is the largest wallpaper upload accepted.
const MaxWallpaperSize = 1 << 20

const (
	msgImageType = "Invalid file type. Please select an image."
	msgVideoType = "Invalid video file."
	msgVoiceType = "Invalid audio file."
	msgFileSize  = "File size exceeds 1MB. Please select a smaller image."
)

// Attachment checks that mimeType fits the attachment kind. Files accept
// anything.
func Attachment(kind model.AttachmentKind, mimeType string) error {
	var (
		prefix string
		e      *Error
	)
	switch kind {
	case model.AttachmentImage:
		prefix, e = "image/", fail(KindImageType, msgImageType)
	case model.AttachmentVideo:
		prefix, e = "video/", fail(KindVideoType, msgVideoType)
	case model.AttachmentVoice:
		prefix, e = "audio/", fail(KindVoiceType, msgVoiceType)
	default:
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), prefix) {
		e.Detail = mimeType
		return e
	}
	return nil
}

// Wallpaper accepts images up to MaxWallpaperSize bytes.
func Wallpaper(mimeType string, size int64) error {
	if err := Attachment(model.AttachmentImage, mimeType); err != nil {
		return err
	}
	if size > MaxWallpaperSize {
		e := fail(KindFileSize, msgFileSize)
		e.Detail = fmt.Sprintf("%s > %s", humanize.IBytes(uint64(size)), humanize.IBytes(MaxWallpaperSize))
		return e
	}
	return nil
}

// Payload rejects a message with neither text nor attachment.
func Payload(p model.Payload) error {
	if err := p.Validate(); err != nil {
		e := fail(KindEmptyMessage, "Type a message or attach something to send.")
		e.Detail = err.Error()
		return e
	}
	return nil
}
