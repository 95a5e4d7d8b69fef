// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds the user's presentation and notification
// preferences: bubble colours, dark mode, chat wallpaper and notification
// sounds. Everything is local except the wallpaper, which the server
// stores. Values persist through a storage.Store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/storage"
	"github.com/jeranaias/parley-tui/internal/validate"
)

// Storage keys.
const (
	ThemeKey = "chat-theme"
	ChatKey  = "chat-settings"
)

const msgWallpaperFailed = "Failed to upload wallpaper."

// Wallpaper layout values.
var (
	WallpaperSizes     = []string{"contain", "cover", "auto"}
	WallpaperPositions = []string{"center", "top", "bottom", "left", "right", "top left", "top right", "bottom left", "bottom right"}
	WallpaperRepeats   = []string{"no-repeat", "repeat", "repeat-x", "repeat-y"}
)

// ErrInvalidValue is returned when a setter gets a value outside its set.
var ErrInvalidValue = errors.New("settings: invalid value")

// Theme is the persisted look of the chat.
type Theme struct {
	SenderBubble      Bubble `json:"senderBubble"`
	ReceiverBubble    Bubble `json:"receiverBubble"`
	DarkMode          bool   `json:"isDarkMode"`
	Wallpaper         string `json:"chatWallpaper,omitempty"`
	WallpaperSize     string `json:"chatWallpaperSize"`
	WallpaperPosition string `json:"chatWallpaperPosition"`
	WallpaperRepeat   string `json:"chatWallpaperRepeat"`
}

// DefaultTheme returns the theme used before anything is saved.
func DefaultTheme() Theme {
	return Theme{
		SenderBubble:      DefaultSenderBubble,
		ReceiverBubble:    DefaultReceiverBubble,
		WallpaperSize:     "contain",
		WallpaperPosition: "center",
		WallpaperRepeat:   "no-repeat",
	}
}

// ChatSettings are the persisted notification preferences.
type ChatSettings struct {
	NotificationSound string `json:"notificationsSound"`
	SoundMuted        bool   `json:"isNotificationsSoundMuted"`
	ShowTyping        bool   `json:"isShowTyping"`
	Muted             bool   `json:"isNotificationsMuted"`
}

// DefaultChatSettings returns the notification preferences used before
// anything is saved.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{NotificationSound: notify.DefaultSound, ShowTyping: true}
}

// Store owns the preferences. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	prefs    storage.Store
	client   *api.Client
	notify   notify.Notifier
	log      zerolog.Logger
	theme    Theme
	chat     ChatSettings
	sink     func(ref string)
	onChange []func()

	// lastWrite is the preference file's mod time after our own last save.
	lastWrite time.Time
}

// New creates a store with default values. Call Load to read saved ones.
func New(prefs storage.Store, client *api.Client, n notify.Notifier) *Store {
	return &Store{
		prefs:  prefs,
		client: client,
		notify: n,
		log:    log.With().Str("component", "settings").Logger(),
		theme:  DefaultTheme(),
		chat:   DefaultChatSettings(),
	}
}

// WithLogger replaces the component logger.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.log = l
	return s
}

// WithWallpaperSink registers where the server's wallpaper reference is
// forwarded after an upload, typically the session's identity.
func (s *Store) WithWallpaperSink(fn func(ref string)) *Store {
	s.sink = fn
	return s
}

// OnChange registers fn to run after any preference changes.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.Lock()
	hooks := slices.Clone(s.onChange)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Load reads saved preferences. Missing keys keep their defaults; a
// corrupt entry is logged and replaced by defaults. Hooks run only when
// something differs from the current values.
func (s *Store) Load() error {
	theme, chat := DefaultTheme(), DefaultChatSettings()
	var errs []error
	if _, err := s.prefs.Load(ThemeKey, &theme); err != nil {
		s.log.Warn().Err(err).Str("key", ThemeKey).Msg("discarding saved theme")
		theme = DefaultTheme()
		errs = append(errs, err)
	}
	if _, err := s.prefs.Load(ChatKey, &chat); err != nil {
		s.log.Warn().Err(err).Str("key", ChatKey).Msg("discarding saved chat settings")
		chat = DefaultChatSettings()
		errs = append(errs, err)
	}
	theme.normalize()
	if _, ok := notify.LookupSound(chat.NotificationSound); !ok {
		chat.NotificationSound = notify.DefaultSound
	}

	s.mu.Lock()
	diff := s.theme != theme || s.chat != chat
	s.theme, s.chat = theme, chat
	s.mu.Unlock()
	if diff {
		s.changed()
	}
	return errors.Join(errs...)
}

// normalize replaces out-of-range layout values with defaults.
func (t *Theme) normalize() {
	def := DefaultTheme()
	if !slices.Contains(WallpaperSizes, t.WallpaperSize) {
		t.WallpaperSize = def.WallpaperSize
	}
	if !slices.Contains(WallpaperPositions, t.WallpaperPosition) {
		t.WallpaperPosition = def.WallpaperPosition
	}
	if !slices.Contains(WallpaperRepeats, t.WallpaperRepeat) {
		t.WallpaperRepeat = def.WallpaperRepeat
	}
	if t.SenderBubble.Family == "" {
		t.SenderBubble = def.SenderBubble
	}
	if t.ReceiverBubble.Family == "" {
		t.ReceiverBubble = def.ReceiverBubble
	}
}

func (s *Store) updateTheme(fn func(*Theme)) error {
	s.mu.Lock()
	fn(&s.theme)
	theme := s.theme
	s.mu.Unlock()
	s.changed()
	if err := s.prefs.Save(ThemeKey, theme); err != nil {
		s.log.Error().Err(err).Msg("saving theme failed")
		return fmt.Errorf("save theme: %w", err)
	}
	s.noteWrite()
	return nil
}

func (s *Store) updateChat(fn func(*ChatSettings)) error {
	s.mu.Lock()
	fn(&s.chat)
	chat := s.chat
	s.mu.Unlock()
	s.changed()
	if err := s.prefs.Save(ChatKey, chat); err != nil {
		s.log.Error().Err(err).Msg("saving chat settings failed")
		return fmt.Errorf("save chat settings: %w", err)
	}
	s.noteWrite()
	return nil
}

func (s *Store) noteWrite() {
	if mod, ok := s.modTime(); ok {
		s.mu.Lock()
		s.lastWrite = mod
		s.mu.Unlock()
	}
}

func (s *Store) modTime() (time.Time, bool) {
	path := s.prefs.Path()
	if path == "" {
		return time.Time{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// =============================================================================
// THEME
// =============================================================================

// Theme returns the current theme.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetSenderBubble sets the colour of the user's own bubbles.
func (s *Store) SetSenderBubble(color string) error {
	b, err := ParseBubble(color)
	if err != nil {
		return err
	}
	return s.updateTheme(func(t *Theme) { t.SenderBubble = b })
}

// SetReceiverBubble sets the colour of the peer's bubbles.
func (s *Store) SetReceiverBubble(color string) error {
	b, err := ParseBubble(color)
	if err != nil {
		return err
	}
	return s.updateTheme(func(t *Theme) { t.ReceiverBubble = b })
}

// ToggleDarkMode switches between the dark and light themes.
func (s *Store) ToggleDarkMode() error {
	return s.updateTheme(func(t *Theme) { t.DarkMode = !t.DarkMode })
}

func oneOf(value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%w %q (want one of %q)", ErrInvalidValue, value, allowed)
	}
	return nil
}

// SetWallpaperSize sets how the wallpaper is scaled, one of WallpaperSizes.
func (s *Store) SetWallpaperSize(size string) error {
	if err := oneOf(size, WallpaperSizes); err != nil {
		return err
	}
	return s.updateTheme(func(t *Theme) { t.WallpaperSize = size })
}

// SetWallpaperPosition anchors the wallpaper, e.g. "center" or "top left".
func (s *Store) SetWallpaperPosition(position string) error {
	if err := oneOf(position, WallpaperPositions); err != nil {
		return err
	}
	return s.updateTheme(func(t *Theme) { t.WallpaperPosition = position })
}

// SetWallpaperRepeat sets the wallpaper tiling mode.
func (s *Store) SetWallpaperRepeat(repeat string) error {
	if err := oneOf(repeat, WallpaperRepeats); err != nil {
		return err
	}
	return s.updateTheme(func(t *Theme) { t.WallpaperRepeat = repeat })
}

// ResetWallpaper clears the wallpaper locally. The server copy is left as
// is.
func (s *Store) ResetWallpaper() error {
	return s.updateTheme(func(t *Theme) { t.Wallpaper = "" })
}

// SetWallpaper uploads an image as the chat wallpaper. The image is
// checked locally first; nothing is sent when it is not an image or is
// over validate.MaxWallpaperSize.
func (s *Store) SetWallpaper(ctx context.Context, mimeType string, data []byte) error {
	if err := validate.Wallpaper(mimeType, int64(len(data))); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			s.notify.Error(verr.Message)
		}
		return err
	}
	ref, err := s.client.SetChatWallpaper(ctx, media.EncodeDataURL(mimeType, data))
	if err != nil {
		if !api.IsCanceled(err) {
			s.notify.Error(api.UserMessage(err, msgWallpaperFailed))
		}
		return err
	}
	if err := s.updateTheme(func(t *Theme) { t.Wallpaper = ref }); err != nil {
		return err
	}
	if s.sink != nil {
		s.sink(ref)
	}
	return nil
}

// SetWallpaperFile reads path and uploads it with SetWallpaper.
func (s *Store) SetWallpaperFile(ctx context.Context, path string) error {
	data, err := media.ReadFile(path)
	if err != nil {
		s.notify.Error(media.LoadFailureMessage(model.AttachmentImage))
		return err
	}
	return s.SetWallpaper(ctx, media.DetectMIME(path, data), data)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Chat returns the current notification preferences.
func (s *Store) Chat() ChatSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

// SetNotificationSound selects a sound from notify.Sounds by file or
// short name.
func (s *Store) SetNotificationSound(name string) error {
	sound, ok := notify.LookupSound(name)
	if !ok {
		return fmt.Errorf("%w: unknown sound %q", ErrInvalidValue, name)
	}
	return s.updateChat(func(c *ChatSettings) { c.NotificationSound = sound.File })
}

// ToggleMuteNotifications flips the master mute, and the sound mute with
// it.
func (s *Store) ToggleMuteNotifications() error {
	return s.updateChat(func(c *ChatSettings) {
		c.Muted = !c.Muted
		c.SoundMuted = !c.SoundMuted
	})
}

// ToggleNotificationSound flips the sound mute only.
func (s *Store) ToggleNotificationSound() error {
	return s.updateChat(func(c *ChatSettings) { c.SoundMuted = !c.SoundMuted })
}

// ToggleShowTyping flips whether peers' typing indicators are shown.
func (s *Store) ToggleShowTyping() error {
	return s.updateChat(func(c *ChatSettings) { c.ShowTyping = !c.ShowTyping })
}

// NotificationsMuted, SoundMuted, NotificationSound and ShowTyping satisfy
// conversation.Preferences.

// NotificationsMuted reports the master notification mute.
func (s *Store) NotificationsMuted() bool { return s.Chat().Muted }

// SoundMuted reports whether notification sounds are silenced.
func (s *Store) SoundMuted() bool { return s.Chat().SoundMuted }

// NotificationSound returns the selected sound file.
func (s *Store) NotificationSound() string { return s.Chat().NotificationSound }

// ShowTyping reports whether typing indicators are shown.
func (s *Store) ShowTyping() bool { return s.Chat().ShowTyping }
