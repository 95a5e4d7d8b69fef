// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides client-local persistence for parley.
//
// Two things live on disk: presentation preferences, kept in a key-value
// Store, and the session cookie, kept sealed in a SessionFile so a restart
// can re-probe the session.
//
// # Key Types
//
//   - Store: key-value persistence capability (JSON values)
//   - FileStore: one JSON document, written atomically
//   - SQLStore: SQLite table prefs(key, value, updated_at)
//   - MemoryStore: in-process, for tests and --storage memory
//   - SessionFile: NaCl secretbox sealed cookie file
//
// # Usage
//
//	store, err := storage.Open("file", storage.DefaultPath(dataDir, "file"))
//	var prefs settings.Preferences
//	found, err := store.Load("chat-theme", &prefs)
//	err = store.Save("chat-theme", prefs)
//
// # Storage Location
//
// Files live under ~/.parley/ (or PARLEY_DATA_DIR) with 0600 permissions.
package storage
