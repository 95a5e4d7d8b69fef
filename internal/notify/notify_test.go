// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import "testing"

func TestLookupSound(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"bell", "bell-notification.mp3", true},
		{"train-notification.mp3", "train-notification.mp3", true},
		{" Glow ", "glow-notification.mp3", true},
		{"airhorn", "", false},
	}
	for _, tc := range tests {
		got, ok := LookupSound(tc.in)
		if ok != tc.ok || got.File != tc.want {
			t.Errorf("LookupSound(%q) = %q, %v; want %q, %v", tc.in, got.File, ok, tc.want, tc.ok)
		}
	}
}

func TestCatalogue(t *testing.T) {
	if len(Sounds) != 9 {
		t.Errorf("catalogue has %d sounds, want 9", len(Sounds))
	}
	if Sounds[0].File != DefaultSound {
		t.Errorf("first sound = %q, want default", Sounds[0].File)
	}
	seen := map[float64]bool{}
	for _, s := range Sounds {
		tone := toneFor(s.File)
		if seen[tone] {
			t.Errorf("tone %v reused", tone)
		}
		seen[tone] = true
	}
}

func TestNewPlayer(t *testing.T) {
	if _, ok := NewPlayer("none").(NopPlayer); !ok {
		t.Error("none should be NopPlayer")
	}
	if p, ok := NewPlayer("notify").(BeepPlayer); !ok || !p.Desktop {
		t.Error("notify should be a desktop BeepPlayer")
	}
	if p, ok := NewPlayer("beep").(BeepPlayer); !ok || p.Desktop {
		t.Error("beep should be a tone BeepPlayer")
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var n Notifier = &r
	var p Player = &r

	n.Success("Logged in successfully!")
	n.Error("Failed to send message.")
	n.Error("Session expired. Please log in again.")
	_ = p.Play(DefaultSound)

	if got := r.Successes(); len(got) != 1 {
		t.Errorf("Successes = %v", got)
	}
	if r.LastError() != "Session expired. Please log in again." {
		t.Errorf("LastError = %q", r.LastError())
	}
	if got := r.Played(); len(got) != 1 || got[0] != DefaultSound {
		t.Errorf("Played = %v", got)
	}
}
