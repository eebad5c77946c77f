// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the configuration file for changes and triggers a
// debounced reload. The parent directory is watched rather than the file
// itself because editors commonly save by writing a temporary file and
// renaming it over the original, which would orphan a direct file watch.
type Watcher struct {
	// fsWatcher is the underlying filesystem watcher
	fsWatcher *fsnotify.Watcher

	// path is the absolute path of the watched configuration file
	path string

	// onChange is invoked after the debounce window closes
	onChange func()

	// logger is used for structured logging
	logger *slog.Logger

	// debounceDelay is the delay before triggering a reload after file changes
	debounceDelay time.Duration

	// pendingReload is the active debounce timer, if any
	pendingReload *time.Timer

	// mu protects pendingReload
	mu sync.Mutex

	// ctx is the watcher's lifecycle context
	ctx context.Context

	// cancel stops the watcher
	cancel context.CancelFunc

	// wg tracks the event processing goroutine
	wg sync.WaitGroup
}

// WatcherConfig configures the configuration file watcher.
type WatcherConfig struct {
	// Path is the configuration file to watch (required)
	Path string

	// OnChange is invoked after the file changes settle (required)
	OnChange func()

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay is the delay before triggering a reload after file changes (defaults to 200ms)
	DebounceDelay time.Duration
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("onChange callback is required")
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(absPath), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:     fsWatcher,
		path:          absPath,
		onChange:      cfg.OnChange,
		logger:        logger,
		debounceDelay: debounceDelay,
		ctx:           ctx,
		cancel:        cancel,
	}

	// Start event processing loop
	w.wg.Add(1)
	go w.processEvents()

	w.logger.Debug("watching configuration file", "path", absPath)

	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// processEvents processes filesystem events and triggers reloads.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			// Rename covers atomic editor saves (write temp, rename over)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.handleFileChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

// handleFileChange schedules a debounced reload when the watched file changed.
// Events for sibling files in the watched directory are ignored.
func (w *Watcher) handleFileChange(changedPath string) {
	absPath, err := filepath.Abs(changedPath)
	if err != nil {
		return
	}
	if absPath != w.path {
		return
	}

	w.logger.Info("configuration file changed", "file", absPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Cancel existing timer if any
	if w.pendingReload != nil {
		w.pendingReload.Stop()
	}

	w.pendingReload = time.AfterFunc(w.debounceDelay, func() {
		w.mu.Lock()
		w.pendingReload = nil
		w.mu.Unlock()

		select {
		case <-w.ctx.Done():
			return
		default:
		}

		w.onChange()
	})
}

// Close shuts down the watcher.
func (w *Watcher) Close() error {
	w.cancel()

	// Cancel any pending reload timer
	w.mu.Lock()
	if w.pendingReload != nil {
		w.pendingReload.Stop()
		w.pendingReload = nil
	}
	w.mu.Unlock()

	// Wait for event processing to stop
	w.wg.Wait()

	return w.fsWatcher.Close()
}
