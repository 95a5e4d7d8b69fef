// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the preference file must be quiet before it
// is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// ErrNotWatchable is returned by Watch for stores without a backing file.
var ErrNotWatchable = errors.New("settings: store has no file to watch")

// Watcher reloads the store when its preference file is changed by
// another process.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	file     string
	debounce time.Duration

	mu      sync.Mutex
	pending time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Watch starts watching the preference file. The parent directory is
// watched so atomic replace-by-rename writes are seen.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) (*Watcher, error) {
	path := s.prefs.Path()
	if path == "" {
		return nil, ErrNotWatchable
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		store:    s,
		watcher:  fsw,
		file:     filepath.Clean(path),
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.processEvents()
	go w.processPending()
	return w, nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.log.Warn().Err(err).Msg("preference watcher error")
		}
	}
}

func (w *Watcher) processPending() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	s := w.store
	if mod, ok := s.modTime(); ok {
		s.mu.Lock()
		own := mod.Equal(s.lastWrite)
		s.mu.Unlock()
		if own {
			return
		}
	}
	if err := s.Load(); err != nil {
		s.log.Warn().Err(err).Msg("reloading preferences failed")
		return
	}
	s.log.Debug().Msg("preferences reloaded from disk")
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}
