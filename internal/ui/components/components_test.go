// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

var _ notify.Notifier = (*ToastManager)(nil)

func TestToastManager(t *testing.T) {
	m := NewToastManager()
	now := time.Now()
	m.now = func() time.Time { return now }

	var added int
	m.OnAdd(func() { added++ })

	m.Error("Failed to send message.")
	m.Success("Logged in successfully!")
	m.Success("   ")
	assert.Equal(t, 2, added)

	toasts := m.GetToasts()
	require.Len(t, toasts, 2)
	assert.Equal(t, "Logged in successfully!", toasts[0].Message)
	assert.Equal(t, ToastKindSuccess, toasts[0].Kind)
	assert.Equal(t, ErrorToastDuration, toasts[1].Duration)

	now = now.Add(DefaultToastDuration)
	left := m.TickToasts()
	require.Len(t, left, 1)
	assert.Equal(t, ToastKindError, left[0].Kind)

	m.DismissNewest()
	assert.False(t, m.HasToasts())
}

func TestToastManager_Cap(t *testing.T) {
	m := NewToastManager()
	for i := 0; i < maxToasts+3; i++ {
		m.Status("note")
	}
	assert.Len(t, m.GetToasts(), maxToasts)

	id := m.Status("last")
	m.RemoveToast(id)
	for _, toast := range m.GetToasts() {
		assert.NotEqual(t, id, toast.ID)
	}
	m.Clear()
	assert.False(t, m.HasToasts())
}

func TestToastManager_Concurrent(t *testing.T) {
	m := NewToastManager()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Error("boom")
			m.TickToasts()
		}()
	}
	wg.Wait()
	assert.Len(t, m.GetToasts(), maxToasts)
}

func TestRenderToast(t *testing.T) {
	now := time.Now()
	toast := Toast{Message: "Failed to upload wallpaper.", Kind: ToastKindError, CreatedAt: now, Duration: ErrorToastDuration}
	out := RenderToast(toast, 80, now)
	assert.Contains(t, out, "[X]")
	assert.Contains(t, out, "wallpaper.")
	assert.Contains(t, out, "8s")
	assert.Empty(t, RenderToastStack(nil, 80, now))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "日本語\nです", wrapText("日本語 です", 7))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hell…", Truncate("hello world", 5))
	assert.Equal(t, "a b", Truncate("a\nb", 5))
	assert.Empty(t, Truncate("x", 0))
	assert.Equal(t, "ab   ", PadRight("ab", 5))
}

func TestMessageTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.Local)
	assert.Equal(t, "14:05", MessageTime(now.Add(-55*time.Minute), now))
	assert.Equal(t, "3 days ago", MessageTime(now.Add(-72*time.Hour), now))
	assert.Empty(t, MessageTime(time.Time{}, now))
	assert.Equal(t, "2.0 MiB", Size(2<<20))
}

func TestStatusBar(t *testing.T) {
	bar := NewStatusBar(styles.NewTheme())
	bar.Nickname = "alice"
	bar.Link = LinkOnline
	bar.OnlineCount = 3
	bar.Muted = true
	bar.Hint = "? help"
	bar.Width = 100

	out := bar.View()
	assert.Contains(t, out, "@alice")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "3 online")
	assert.Contains(t, out, "muted")
	assert.Contains(t, out, "? help")

	bar.Width = 20
	assert.False(t, strings.Contains(bar.View(), "3 online"))
	assert.Equal(t, "offline", LinkOffline.String())
}
