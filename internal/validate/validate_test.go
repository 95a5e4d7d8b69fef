// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/model"
)

func validForm() model.SignupForm {
	return model.SignupForm{
		Name:            "John Smith",
		Nickname:        "johnny",
		Email:           "john@example.com",
		Password:        "secret",
		PasswordConfirm: "secret",
	}
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.SignupForm)
		kind   Kind
	}{
		{"valid", func(*model.SignupForm) {}, 0},
		{"single name", func(f *model.SignupForm) { f.Name = "John" }, KindFullName},
		{"digits in name", func(f *model.SignupForm) { f.Name = "John Sm1th" }, KindFullName},
		{"missing nickname", func(f *model.SignupForm) { f.Nickname = "" }, KindNicknameMissing},
		{"short nickname", func(f *model.SignupForm) { f.Nickname = "ab" }, KindNicknameTooShort},
		{"long nickname", func(f *model.SignupForm) { f.Nickname = strings.Repeat("a", 31) }, KindNicknameTooLong},
		{"leading digit", func(f *model.SignupForm) { f.Nickname = "1johnny" }, KindNicknameFormat},
		{"double period", func(f *model.SignupForm) { f.Nickname = "john..ny" }, KindNicknameFormat},
		{"trailing period", func(f *model.SignupForm) { f.Nickname = "johnny." }, KindNicknameFormat},
		{"missing email", func(f *model.SignupForm) { f.Email = "" }, KindMissingFields},
		{"missing confirm", func(f *model.SignupForm) { f.PasswordConfirm = "" }, KindMissingFields},
		{"bad email", func(f *model.SignupForm) { f.Email = "john.example.com" }, KindEmail},
		{"mismatch", func(f *model.SignupForm) { f.PasswordConfirm = "other" }, KindPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			err := Signup(form)
			if tt.kind == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err), "got %v", err)
		})
	}
}

func TestSignup_FirstFailureWins(t *testing.T) {
	form := model.SignupForm{Name: "x", Nickname: "ab"}
	assert.Equal(t, KindFullName, KindOf(Signup(form)))
}

func TestNickname_Messages(t *testing.T) {
	var e *Error
	require.True(t, errors.As(Nickname("ab"), &e))
	assert.Equal(t, "Nickname is too short. It must be at least 5 characters.", e.Message)
	assert.Equal(t, "2 characters", e.Detail)

	require.True(t, errors.As(Nickname("john..ny"), &e))
	assert.Contains(t, e.Message, "No consecutive or trailing periods")
}

func TestNickname_Normalises(t *testing.T) {
	assert.NoError(t, Nickname("  Johnny_B.Good "))
	assert.Equal(t, "johnny_b.good", NormalizeNickname("  Johnny_B.Good "))
}

func TestResetPassword(t *testing.T) {
	assert.Equal(t, KindPasswordMissing, KindOf(ResetPassword("", "x")))
	assert.Equal(t, KindPasswordMismatch, KindOf(ResetPassword("a", "b")))
	assert.NoError(t, ResetPassword("same", "same"))
}

func TestLogin(t *testing.T) {
	assert.Equal(t, KindMissingFields, KindOf(Login(model.Credentials{Email: " "})))
	assert.NoError(t, Login(model.Credentials{Email: "a@b.c", Password: "p"}))
}

func TestWallpaper(t *testing.T) {
	tests := []struct {
		name string
		mime string
		size int64
		kind Kind
	}{
		{"small png", "image/png", 1024, 0},
		{"exact limit", "image/jpeg", MaxWallpaperSize, 0},
		{"too large", "image/png", 2 << 20, KindFileSize},
		{"not image", "text/plain", 10, KindImageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wallpaper(tt.mime, tt.size)
			if tt.kind == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	err := Wallpaper("image/png", 2<<20)
	assert.Equal(t, "File size exceeds 1MB. Please select a smaller image. (2.0 MiB > 1.0 MiB)", err.Error())
}

func TestAttachment(t *testing.T) {
	assert.NoError(t, Attachment(model.AttachmentImage, "image/gif"))
	assert.NoError(t, Attachment(model.AttachmentVoice, "audio/webm"))
	assert.NoError(t, Attachment(model.AttachmentFile, "application/zip"))
	assert.Equal(t, KindVideoType, KindOf(Attachment(model.AttachmentVideo, "image/png")))
}

func TestError_Is(t *testing.T) {
	err := Wallpaper("image/png", 5<<20)
	assert.True(t, errors.Is(err, &Error{Kind: KindFileSize}))
	assert.False(t, errors.Is(err, &Error{Kind: KindImageType}))
}

func TestPayload(t *testing.T) {
	assert.Equal(t, KindEmptyMessage, KindOf(Payload(model.Payload{Text: "   "})))
	assert.NoError(t, Payload(model.Payload{Text: "hi"}))
}
