// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jeranaias/parley-tui/internal/util"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrSealBroken means the session file exists but cannot be opened with
// the key (tampered, truncated, or the key was replaced).
var ErrSealBroken = errors.New("storage: session file cannot be unsealed")

// SessionFile keeps the backend's session cookies sealed with a per-user
// key that sits next to it. Both files are 0600.
type SessionFile struct {
	path    string
	keyPath string
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewSessionFile returns a SessionFile at path using keyPath for the key.
func NewSessionFile(path, keyPath string) *SessionFile {
	return &SessionFile{path: path, keyPath: keyPath}
}

func (f *SessionFile) key(create bool) (*[keySize]byte, error) {
	var key [keySize]byte
	data, err := os.ReadFile(f.keyPath)
	switch {
	case err == nil && len(data) == keySize:
		copy(key[:], data)
		return &key, nil
	case err == nil:
		return nil, fmt.Errorf("%w: key file has %d bytes", ErrSealBroken, len(data))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read session key: %w", err)
	case !create:
		return nil, nil
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if err := util.AtomicWriteFile(f.keyPath, key[:], 0600); err != nil {
		return nil, fmt.Errorf("failed to write session key: %w", err)
	}
	return &key, nil
}

// Save seals cookies to disk. Only name and value are kept.
func (f *SessionFile) Save(cookies []*http.Cookie) error {
	key, err := f.key(true)
	if err != nil {
		return err
	}

	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	plain, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, key)
	return util.AtomicWriteFile(f.path, sealed, 0600)
}

// Load returns the stored cookies, or nil when nothing has been saved.
func (f *SessionFile) Load() ([]*http.Cookie, error) {
	sealed, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	key, err := f.key(false)
	if err != nil {
		return nil, err
	}
	if key == nil || len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrSealBroken
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrSealBroken
	}

	var stored []storedCookie
	if err := json.Unmarshal(plain, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealBroken, err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies, nil
}

// Clear removes the session file. The key is kept.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
