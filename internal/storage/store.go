// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// Store persists JSON-encodable values under string keys.
type Store interface {
	// Load decodes the value stored under key into v. It reports false
	// when the key has never been saved.
	Load(key string, v any) (bool, error)
	// Save replaces the value stored under key.
	Save(key string, v any) error
	// Path is the backing file, or "" when there is none.
	Path() string
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultPath returns the default location of a backend's file.
func DefaultPath(dataDir, backend string) string {
	switch backend {
	case BackendSQLite:
		return filepath.Join(dataDir, "prefs.db")
	case BackendMemory:
		return ""
	default:
		return filepath.Join(dataDir, "prefs.json")
	}
}

// Open creates the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		return OpenSQLStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
