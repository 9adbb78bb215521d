/*
Copyright 2025 Trident Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package watch turns changes to the registry file and data root into
// debounced reload signals.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// signal is sent.
const DefaultDebounce = time.Second

// Config holds watcher options.
type Config struct {
	// Files are watched through their parent directory, so replacing
	// them by rename is seen.
	Files []string
	// Dirs are watched together with their immediate subdirectories.
	Dirs     []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher signals changes to its files and directories.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]struct{}
	dirs      map[string]struct{}
	debounce  time.Duration
	logger    *slog.Logger
	onChange  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	stopErr   error
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsWatcher: fsw,
		files:     make(map[string]struct{}, len(cfg.Files)),
		dirs:      make(map[string]struct{}),
		debounce:  cfg.Debounce,
		logger:    cfg.Logger,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	for _, f := range cfg.Files {
		w.files[filepath.Clean(f)] = struct{}{}
	}
	for _, d := range cfg.Dirs {
		w.dirs[filepath.Clean(d)] = struct{}{}
	}
	return w, nil
}

// Start begins watching. The returned channel receives one signal per
// burst of changes; signals are dropped while one is pending.
func (w *Watcher) Start() (<-chan struct{}, error) {
	watched := make(map[string]struct{})
	add := func(dir string) error {
		if _, ok := watched[dir]; ok {
			return nil
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
		watched[dir] = struct{}{}
		return nil
	}

	for f := range w.files {
		if err := add(filepath.Dir(f)); err != nil {
			return nil, err
		}
	}
	for d := range w.dirs {
		if err := add(d); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(d)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", d, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				if err := add(filepath.Join(d, e.Name())); err != nil {
					return nil, err
				}
			}
		}
	}

	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources. Later calls return
// the result of the first one.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
		w.stopErr = w.fsWatcher.Close()
	})
	return w.stopErr
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)
	fired := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			w.logger.Debug("watched path changed", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				w.follow(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = true

		case <-fired():
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// follow starts watching a subdirectory created under a watched data root.
func (w *Watcher) follow(path string) {
	if _, ok := w.dirs[filepath.Dir(path)]; !ok {
		return
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("watching new directory", "path", path, "error", err)
		}
	}
}

// isRelevantEvent keeps content changes to watched files and to anything
// under a watched directory.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if _, ok := w.files[name]; ok {
		return true
	}
	dir := filepath.Dir(name)
	if _, ok := w.dirs[dir]; ok {
		return true
	}
	_, ok := w.dirs[filepath.Dir(dir)]
	return ok
}

// Run calls reload on every signal from changes and, when interval is
// positive, on every tick, until ctx is done. Reload failures are logged;
// the next trigger tries again.
func Run(ctx context.Context, changes <-chan struct{}, interval time.Duration, reload func(context.Context) error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		var cause string
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			cause = "change"
		case <-tick:
			cause = "interval"
		}
		if err := reload(ctx); err != nil {
			logger.ErrorContext(ctx, "reload failed", "trigger", cause, "error", err)
			continue
		}
		logger.InfoContext(ctx, "reloaded", "trigger", cause)
	}
}
