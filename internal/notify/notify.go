// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify covers the two ways parley gets the user's attention:
// transient notifications (toasts) and notification sounds.
package notify

import (
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
)

// Notifier is the toast sink stores report outcomes to.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Player plays a notification sound from the catalogue.
type Player interface {
	Play(sound string) error
}

// =============================================================================
// SOUND CATALOGUE
// =============================================================================

// Sound is one selectable notification sound.
type Sound struct {
	File  string
	Label string
}

// DefaultSound is selected until the user picks another.
const DefaultSound = "default-notification.mp3"

// Sounds is the fixed catalogue, in display order.
var Sounds = []Sound{
	{File: "default-notification.mp3", Label: "Default"},
	{File: "apear-notification.mp3", Label: "Apear"},
	{File: "bell-notification.mp3", Label: "Bell"},
	{File: "glow-notification.mp3", Label: "Glow"},
	{File: "happy-notification.mp3", Label: "Happy"},
	{File: "offset-notification.mp3", Label: "Offset"},
	{File: "perfume-notification.mp3", Label: "Perfume"},
	{File: "tear-notification.mp3", Label: "Tear"},
	{File: "train-notification.mp3", Label: "Train"},
}

// LookupSound finds a catalogue entry by file name or by short name
// ("bell" matches bell-notification.mp3).
func LookupSound(name string) (Sound, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Sounds {
		if s.File == name || strings.TrimSuffix(s.File, "-notification.mp3") == name {
			return s, true
		}
	}
	return Sound{}, false
}

// =============================================================================
// PLAYERS
// =============================================================================

// BeepPlayer plays sounds through gen2brain/beeep. Terminals cannot play
// the catalogue's audio files, so each sound maps to a tone; with Desktop
// set a desktop notification is raised instead.
type BeepPlayer struct {
	Desktop bool
	Title   string
}

// Play implements Player.
func (p BeepPlayer) Play(sound string) error {
	if p.Desktop {
		title := p.Title
		if title == "" {
			title = "parley"
		}
		return beeep.Notify(title, "New message", "")
	}
	return beeep.Beep(toneFor(sound), beeep.DefaultDuration)
}

// toneFor spreads the catalogue over distinct pitches.
func toneFor(sound string) float64 {
	for i, s := range Sounds {
		if s.File == sound {
			return 440 + float64(i)*55
		}
	}
	return beeep.DefaultFreq
}

// NopPlayer discards every sound.
type NopPlayer struct{}

// Play implements Player.
func (NopPlayer) Play(string) error { return nil }

// NewPlayer returns the player named by config: "beep", "notify" or "none".
func NewPlayer(kind string) Player {
	switch kind {
	case "notify":
		return BeepPlayer{Desktop: true}
	case "none":
		return NopPlayer{}
	default:
		return BeepPlayer{}
	}
}

// =============================================================================
// RECORDERS
// =============================================================================

// Recorder is a Notifier and Player that remembers what it was given.
// The CLI uses it to print outcomes after a command; tests use it to
// assert on them.
type Recorder struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	played    []string
}

// Success implements Notifier.
func (r *Recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

// Error implements Notifier.
func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

// Play implements Player.
func (r *Recorder) Play(sound string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, sound)
	return nil
}

// Successes returns recorded success messages.
func (r *Recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

// Errors returns recorded error messages.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// Played returns the sounds played so far.
func (r *Recorder) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}

// LastError returns the most recent error message, or "".
func (r *Recorder) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) == 0 {
		return ""
	}
	return r.errors[len(r.errors)-1]
}
