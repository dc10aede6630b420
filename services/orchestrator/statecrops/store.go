// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package statecrops

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Builder rebuilds the manifest from the backing stores.
type Builder interface {
	Build(ctx context.Context) (*Manifest, error)
}

// Store holds the live manifest for the process.
//
// # Description
//
// The current manifest sits behind an atomic pointer: readers call Current
// and never block, a refresh builds a fresh manifest off to the side and
// swaps it in. Refresh is serialized by a mutex so concurrent staleness
// checks cannot trigger duplicate rebuilds.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	path    string
	builder Builder

	current atomic.Pointer[Manifest]

	refreshMu sync.Mutex

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a Store over the manifest at path. builder may be nil
// for read-only deployments; RefreshIfStale then only reloads from disk.
func NewStore(path string, builder Builder) *Store {
	s := &Store{
		path:    path,
		builder: builder,
		done:    make(chan struct{}),
	}
	s.current.Store(NewManifest())
	return s
}

// Current returns the live manifest. Never nil.
func (s *Store) Current() *Manifest {
	return s.current.Load()
}

// LoadFromDisk replaces the live manifest with the on-disk artifact.
// A missing or corrupt file leaves the current manifest in place.
func (s *Store) LoadFromDisk() error {
	m, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(m)
	slog.Info("Loaded state-crops manifest",
		"path", s.path,
		"states", len(m.StateCodes),
		"lastUpdated", m.LastUpdated,
	)
	return nil
}

// RefreshIfStale rebuilds the manifest when the staleness window has
// elapsed.
//
// # Description
//
//	Checks now-LastUpdated against the six hour window. Before the window
//	the artifact is untouched. On refresh the new manifest is written
//	atomically to disk and then swapped in. A build failure leaves the
//	previous manifest serving.
//
// # Outputs
//
//   - bool: whether a refresh actually ran.
//   - error: non-nil when the rebuild or write failed.
func (s *Store) RefreshIfStale(ctx context.Context) (bool, error) {
	if !s.Current().IsStale(time.Now()) {
		return false, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Re-check under the lock: another caller may have refreshed while we
	// waited.
	if !s.Current().IsStale(time.Now()) {
		return false, nil
	}
	if err := s.ForceRefresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ForceRefresh rebuilds and swaps the manifest regardless of staleness.
func (s *Store) ForceRefresh(ctx context.Context) error {
	if s.builder == nil {
		return fmt.Errorf("no manifest builder configured")
	}

	m, err := s.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild the state-crops manifest: %w", err)
	}
	m.LastUpdated = time.Now().UTC()

	if err := m.WriteAtomic(s.path); err != nil {
		return fmt.Errorf("failed to persist the state-crops manifest: %w", err)
	}

	s.current.Store(m)
	slog.Info("Refreshed state-crops manifest",
		"path", s.path,
		"states", len(m.StateCodes),
	)
	return nil
}

// Watch starts a background fsnotify watcher that hot-reloads the manifest
// when the file is rewritten, e.g. by the refresh-crops CLI in another
// process.
//
// The watch is placed on the parent directory because the atomic
// tmp+rename replace would otherwise drop the watch on the old inode.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create the manifest watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch the manifest directory: %w", err)
	}
	s.watcher = watcher

	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if err := s.LoadFromDisk(); err != nil {
				slog.Warn("Failed to hot-reload the state-crops manifest",
					"path", s.path, "error", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Manifest watcher error", "error", err)
		}
	}
}

// Stop shuts the watcher down. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}
