// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

type samplePrefs struct {
	Sound string `json:"notificationsSound"`
	Muted bool   `json:"isNotificationsMuted"`
}

// backends returns one of each store for shared behaviour tests.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := Open(BackendFile, DefaultPath(dir, BackendFile))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	sqlite, err := Open(BackendSQLite, DefaultPath(dir, BackendSQLite))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	mem, err := Open(BackendMemory, "")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	stores := map[string]Store{"file": file, "sqlite": sqlite, "memory": mem}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_LoadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var p samplePrefs
			found, err := s.Load("chat-settings", &p)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if found {
				t.Error("Load reported a key that was never saved")
			}
		})
	}
}

func TestStore_SaveLoadOverwrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save("chat-settings", samplePrefs{Sound: "bell-notification.mp3"}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save("chat-settings", samplePrefs{Sound: "glow-notification.mp3", Muted: true}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save("chat-theme", map[string]bool{"isDarkMode": true}); err != nil {
				t.Fatalf("Save other key: %v", err)
			}

			var p samplePrefs
			found, err := s.Load("chat-settings", &p)
			if err != nil || !found {
				t.Fatalf("Load = %v, %v", found, err)
			}
			if p.Sound != "glow-notification.mp3" || !p.Muted {
				t.Errorf("Load = %+v, want overwritten value", p)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("redis", "/tmp/x"); err == nil {
		t.Error("Open(redis) should fail")
	}
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s, _ := NewFileStore(path)
	if err := s.Save("k", 1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o, want 0600", info.Mode().Perm())
	}
}

func TestFileStore_SeesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s, _ := NewFileStore(path)
	if err := s.Save("chat-settings", samplePrefs{Sound: "default-notification.mp3"}); err != nil {
		t.Fatal(err)
	}

	// Another process rewrites the file
	if err := os.WriteFile(path, []byte(`{"chat-settings":{"notificationsSound":"train-notification.mp3"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	var p samplePrefs
	if _, err := s.Load("chat-settings", &p); err != nil {
		t.Fatal(err)
	}
	if p.Sound != "train-notification.mp3" {
		t.Errorf("Sound = %q, want external edit", p.Sound)
	}
}

func TestFileStore_Closed(t *testing.T) {
	s, _ := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
	s.Close()
	if err := s.Save("k", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close = %v, want ErrClosed", err)
	}
}

func TestSQLStore_UpdatedAt(t *testing.T) {
	s, err := OpenSQLStore(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, found, _ := s.UpdatedAt("k"); found {
		t.Error("UpdatedAt found a missing key")
	}
	if err := s.Save("k", "v"); err != nil {
		t.Fatal(err)
	}
	ts, found, err := s.UpdatedAt("k")
	if err != nil || !found || ts.IsZero() {
		t.Errorf("UpdatedAt = %v, %v, %v", ts, found, err)
	}
}

func TestMemoryStore_Saves(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Save("a", 1)
	_ = s.Save("a", 2)
	if s.Saves() != 2 {
		t.Errorf("Saves = %d, want 2", s.Saves())
	}
}

// =============================================================================
// SESSION FILE
// =============================================================================

func TestSessionFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := NewSessionFile(filepath.Join(dir, "session"), filepath.Join(dir, "session.key"))

	cookies, err := f.Load()
	if err != nil || cookies != nil {
		t.Fatalf("Load before Save = %v, %v", cookies, err)
	}

	in := []*http.Cookie{{Name: "jwt", Value: "abc.def.ghi", Path: "/", HttpOnly: true}}
	if err := f.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, _ := os.ReadFile(filepath.Join(dir, "session"))
	if len(raw) == 0 || bytes.Contains(raw, []byte("abc.def.ghi")) {
		t.Error("session file is not sealed")
	}

	out, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].Name != "jwt" || out[0].Value != "abc.def.ghi" {
		t.Errorf("Load = %+v", out)
	}

	if err := f.Clear(); err != nil {
		t.Fatal(err)
	}
	if out, _ := f.Load(); out != nil {
		t.Errorf("Load after Clear = %+v", out)
	}
	if err := f.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSessionFile_Tampered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session")
	f := NewSessionFile(path, filepath.Join(dir, "session.key"))
	if err := f.Save([]*http.Cookie{{Name: "jwt", Value: "x"}}); err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(path)
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(); !errors.Is(err, ErrSealBroken) {
		t.Errorf("Load tampered = %v, want ErrSealBroken", err)
	}
}

func TestSessionFile_MissingKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "session.key")
	f := NewSessionFile(filepath.Join(dir, "session"), keyPath)
	if err := f.Save([]*http.Cookie{{Name: "jwt", Value: "x"}}); err != nil {
		t.Fatal(err)
	}
	os.Remove(keyPath)
	if _, err := f.Load(); !errors.Is(err, ErrSealBroken) {
		t.Errorf("Load without key = %v, want ErrSealBroken", err)
	}
}
