// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/api/apitest"
	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/storage"
	"github.com/jeranaias/parley-tui/internal/validate"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newStore(t *testing.T) (*Store, *storage.MemoryStore, *notify.Recorder) {
	t.Helper()
	prefs := storage.NewMemoryStore()
	rec := &notify.Recorder{}
	return New(prefs, nil, rec), prefs, rec
}

func loggedInClient(t *testing.T) (*api.Client, *apitest.Backend, *model.Identity) {
	t.Helper()
	b := apitest.New(t)
	me := b.AddUser(model.Identity{Name: "Alice Liddell", Nickname: "alice", Email: "alice@example.com"}, "pw")
	client, err := api.NewClient(b.URL())
	require.NoError(t, err)
	client.WithMaxRetries(0)
	_, err = client.Login(context.Background(), model.Credentials{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	return client, b, me
}

// =============================================================================
// PALETTE
// =============================================================================

func TestParseBubble(t *testing.T) {
	tests := []struct {
		in    string
		want  Bubble
		class string
	}{
		{"blue-600", Bubble{"blue", 600}, "bg-blue-600 text-white"},
		{"bg-rose-300", Bubble{"rose", 300}, "bg-rose-300 text-black"},
		{"bg-emerald-400 text-black", Bubble{"emerald", 400}, "bg-emerald-400 text-white"},
		{"  SLATE-50 ", Bubble{"slate", 50}, "bg-slate-50 text-black"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBubble(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.class, got.String())
		})
	}

	for _, bad := range []string{"", "blue", "blue-650", "mauve-500", "bg--500", "blue-x"} {
		_, err := ParseBubble(bad)
		assert.ErrorIs(t, err, ErrBadColor, bad)
	}
}

func TestBubbleColours(t *testing.T) {
	assert.Equal(t, "#3b82f6", Bubble{"blue", 500}.Background())
	assert.Equal(t, "#ffffff", Bubble{"blue", 900}.Foreground())
	assert.Equal(t, "#000000", Bubble{"blue", 100}.Foreground())

	light := Bubble{"blue", 50}.Background()
	dark := Bubble{"blue", 950}.Background()
	assert.NotEqual(t, light, dark)
	assert.NotEqual(t, "#3b82f6", light)
}

func TestBubbleJSON(t *testing.T) {
	raw, err := json.Marshal(DefaultTheme())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"senderBubble":"bg-blue-600 text-white"`)
	assert.Contains(t, string(raw), `"receiverBubble":"bg-blue-900 text-white"`)
	assert.NotContains(t, string(raw), "chatWallpaper\"")

	var back Theme
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, DefaultTheme(), back)
}

// =============================================================================
// STORE
// =============================================================================

func TestDefaults(t *testing.T) {
	s, _, _ := newStore(t)
	theme := s.Theme()
	assert.Equal(t, "bg-blue-600 text-white", theme.SenderBubble.String())
	assert.Equal(t, "bg-blue-900 text-white", theme.ReceiverBubble.String())
	assert.False(t, theme.DarkMode)
	assert.Empty(t, theme.Wallpaper)
	assert.Equal(t, "contain", theme.WallpaperSize)
	assert.Equal(t, "center", theme.WallpaperPosition)
	assert.Equal(t, "no-repeat", theme.WallpaperRepeat)

	assert.Equal(t, "default-notification.mp3", s.NotificationSound())
	assert.True(t, s.ShowTyping())
	assert.False(t, s.NotificationsMuted())
	assert.False(t, s.SoundMuted())
}

func TestSettersPersist(t *testing.T) {
	s, prefs, _ := newStore(t)
	var changes int
	s.OnChange(func() { changes++ })

	require.NoError(t, s.SetSenderBubble("rose-200"))
	require.NoError(t, s.SetReceiverBubble("bg-green-700"))
	require.NoError(t, s.ToggleDarkMode())
	require.NoError(t, s.SetWallpaperSize("cover"))
	require.NoError(t, s.SetWallpaperPosition("top left"))
	require.NoError(t, s.SetWallpaperRepeat("repeat-x"))
	require.NoError(t, s.SetNotificationSound("bell"))
	assert.Equal(t, 7, changes)
	assert.Equal(t, 7, prefs.Saves())

	var theme Theme
	ok, err := prefs.Load(ThemeKey, &theme)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bg-rose-200 text-black", theme.SenderBubble.String())
	assert.Equal(t, "bg-green-700 text-white", theme.ReceiverBubble.String())
	assert.True(t, theme.DarkMode)
	assert.Equal(t, "top left", theme.WallpaperPosition)

	var chat ChatSettings
	_, err = prefs.Load(ChatKey, &chat)
	require.NoError(t, err)
	assert.Equal(t, "bell-notification.mp3", chat.NotificationSound)

	reloaded := New(prefs, nil, &notify.Recorder{})
	require.NoError(t, reloaded.Load())
	assert.Equal(t, s.Theme(), reloaded.Theme())
	assert.Equal(t, s.Chat(), reloaded.Chat())
}

func TestInvalidValuesRejected(t *testing.T) {
	s, prefs, _ := newStore(t)
	assert.ErrorIs(t, s.SetWallpaperSize("stretch"), ErrInvalidValue)
	assert.ErrorIs(t, s.SetWallpaperPosition("middle"), ErrInvalidValue)
	assert.ErrorIs(t, s.SetWallpaperRepeat("tile"), ErrInvalidValue)
	assert.ErrorIs(t, s.SetNotificationSound("siren"), ErrInvalidValue)
	assert.ErrorIs(t, s.SetSenderBubble("blue-123"), ErrBadColor)
	assert.Zero(t, prefs.Saves())
	assert.Equal(t, DefaultTheme(), s.Theme())
}

func TestMuteToggles(t *testing.T) {
	s, _, _ := newStore(t)

	require.NoError(t, s.ToggleMuteNotifications())
	assert.True(t, s.NotificationsMuted())
	assert.True(t, s.SoundMuted())

	require.NoError(t, s.ToggleNotificationSound())
	assert.True(t, s.NotificationsMuted())
	assert.False(t, s.SoundMuted())

	// The master toggle flips both, so they can drift apart.
	require.NoError(t, s.ToggleMuteNotifications())
	assert.False(t, s.NotificationsMuted())
	assert.True(t, s.SoundMuted())

	require.NoError(t, s.ToggleShowTyping())
	assert.False(t, s.ShowTyping())
}

func TestLoadNormalizesBadValues(t *testing.T) {
	prefs := storage.NewMemoryStore()
	require.NoError(t, prefs.Save(ThemeKey, map[string]any{
		"senderBubble":      "bg-pink-500 text-white",
		"chatWallpaperSize": "huge",
	}))
	require.NoError(t, prefs.Save(ChatKey, map[string]any{"notificationsSound": "siren.mp3", "isShowTyping": false}))

	s := New(prefs, nil, &notify.Recorder{})
	require.NoError(t, s.Load())
	theme := s.Theme()
	assert.Equal(t, Bubble{"pink", 500}, theme.SenderBubble)
	assert.Equal(t, DefaultReceiverBubble, theme.ReceiverBubble)
	assert.Equal(t, "contain", theme.WallpaperSize)
	assert.Equal(t, notify.DefaultSound, s.NotificationSound())
	assert.False(t, s.ShowTyping())
}

func TestLoadCorruptEntry(t *testing.T) {
	prefs := storage.NewMemoryStore()
	require.NoError(t, prefs.Save(ThemeKey, map[string]any{"senderBubble": "plaid"}))

	s := New(prefs, nil, &notify.Recorder{})
	assert.Error(t, s.Load())
	assert.Equal(t, DefaultTheme(), s.Theme())
}

// =============================================================================
// WALLPAPER
// =============================================================================

func TestSetWallpaper(t *testing.T) {
	client, b, _ := loggedInClient(t)
	rec := &notify.Recorder{}
	var sunk string
	s := New(storage.NewMemoryStore(), client, rec).WithWallpaperSink(func(ref string) { sunk = ref })

	require.NoError(t, s.SetWallpaper(context.Background(), "image/png", pngHeader))
	assert.Equal(t, media.EncodeDataURL("image/png", pngHeader), b.Wallpaper())
	assert.Contains(t, s.Theme().Wallpaper, "https://cdn.example/wallpapers/")
	assert.Equal(t, s.Theme().Wallpaper, sunk)

	require.NoError(t, s.ResetWallpaper())
	assert.Empty(t, s.Theme().Wallpaper)
}

func TestSetWallpaper_TooLargeNeverSent(t *testing.T) {
	client, b, _ := loggedInClient(t)
	rec := &notify.Recorder{}
	s := New(storage.NewMemoryStore(), client, rec)
	before := b.TotalHits()

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2<<20)...)
	err := s.SetWallpaper(context.Background(), "image/png", big)
	assert.Equal(t, validate.KindFileSize, validate.KindOf(err))
	assert.Equal(t, "File size exceeds 1MB. Please select a smaller image.", rec.LastError())
	assert.Equal(t, before, b.TotalHits())
	assert.Empty(t, s.Theme().Wallpaper)
}

func TestSetWallpaper_NotAnImage(t *testing.T) {
	client, b, _ := loggedInClient(t)
	rec := &notify.Recorder{}
	s := New(storage.NewMemoryStore(), client, rec)
	before := b.TotalHits()

	err := s.SetWallpaper(context.Background(), "application/pdf", []byte("%PDF-"))
	assert.Equal(t, validate.KindImageType, validate.KindOf(err))
	assert.Equal(t, "Invalid file type. Please select an image.", rec.LastError())
	assert.Equal(t, before, b.TotalHits())
}

func TestSetWallpaper_ServerFailure(t *testing.T) {
	client, b, _ := loggedInClient(t)
	b.Fail("POST /users/setChatWallpaper", 500, "")
	rec := &notify.Recorder{}
	s := New(storage.NewMemoryStore(), client, rec)

	require.Error(t, s.SetWallpaper(context.Background(), "image/png", pngHeader))
	assert.Equal(t, "Failed to upload wallpaper.", rec.LastError())
	assert.Empty(t, s.Theme().Wallpaper)
}

func TestSetWallpaperFile(t *testing.T) {
	client, b, _ := loggedInClient(t)
	path := filepath.Join(t.TempDir(), "wall.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	s := New(storage.NewMemoryStore(), client, &notify.Recorder{})
	require.NoError(t, s.SetWallpaperFile(context.Background(), path))
	assert.Equal(t, media.EncodeDataURL("image/png", pngHeader), b.Wallpaper())
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_MemoryStoreNotWatchable(t *testing.T) {
	s, _, _ := newStore(t)
	_, err := s.Watch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotWatchable)
}

func TestWatch_ReloadsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	prefs, err := storage.NewFileStore(path)
	require.NoError(t, err)

	s := New(prefs, nil, &notify.Recorder{})
	require.NoError(t, s.Load())
	require.NoError(t, s.ToggleShowTyping())

	var changes atomic.Int32
	s.OnChange(func() { changes.Add(1) })

	w, err := s.Watch(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	// Another process edits the file.
	other, err := storage.NewFileStore(path)
	require.NoError(t, err)
	chat := s.Chat()
	chat.Muted = true
	require.NoError(t, other.Save(ChatKey, chat))

	assert.Eventually(t, func() bool { return s.NotificationsMuted() }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, s.ShowTyping())
}
