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

package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("snapshot manager closed")

// Manager owns the current snapshot of a source. Acquire and Current are
// safe for concurrent use with Reload. Reloads are serialized.
type Manager struct {
	src    Source
	opts   []Option
	logger *slog.Logger

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	reloads    singleflight.Group
	lastErr    atomic.Pointer[reloadFailure]
}

type reloadFailure struct {
	err error
	at  time.Time
}

// NewManager loads the first generation of src.
func NewManager(ctx context.Context, src Source, opts ...Option) (*Manager, error) {
	m := &Manager{src: src, opts: opts, logger: newOptions(opts).logger}
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	m.current.Store(snap)
	return m, nil
}

func (m *Manager) load(ctx context.Context) (*Snapshot, error) {
	opts := append(m.opts[:len(m.opts):len(m.opts)], withGeneration(m.generation.Load()+1))
	snap, err := Load(ctx, m.src, opts...)
	if err != nil {
		return nil, err
	}
	m.generation.Store(snap.Generation)
	return snap, nil
}

// Acquire returns the current snapshot and a function releasing it. The
// snapshot stays usable, even across reloads, until release is called.
// Release is idempotent. Acquire returns nil after Close.
func (m *Manager) Acquire() (*Snapshot, func()) {
	for {
		snap := m.current.Load()
		if snap == nil {
			return nil, func() {}
		}
		if snap.retain() {
			return snap, sync.OnceFunc(snap.release)
		}
		// Lost a race with a reload retiring snap; the new generation is
		// already published.
	}
}

// Current returns the current snapshot without retaining it. It suits
// short reads that tolerate the data root closing under them.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// Reload builds a new generation and publishes it. Concurrent calls share
// one build, which does not stop when a caller gives up: a caller whose
// ctx ends returns ctx.Err() and the others still get the build result.
// On failure the current snapshot keeps serving.
func (m *Manager) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := m.reloads.DoChan("reload", func() (any, error) {
		return nil, m.reload(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			m.logger.DebugContext(ctx, "joined in-flight reload")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) reload(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "Reload")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if m.current.Load() == nil {
		return ErrClosed
	}

	next, err := m.load(ctx)
	if err != nil {
		m.lastErr.Store(&reloadFailure{err: err, at: time.Now()})
		if cur := m.current.Load(); cur != nil {
			m.logger.ErrorContext(ctx, "reload failed, keeping current snapshot",
				"error", err,
				"serving", cur.ID,
				"generation", cur.Generation,
			)
		}
		return err
	}

	prev := m.current.Swap(next)
	if prev == nil {
		// Closed while building.
		m.current.Store(nil)
		next.release()
		return ErrClosed
	}
	m.lastErr.Store(nil)
	prev.release()

	span.SetAttributes(attribute.String("snapshot", next.ID.String()))
	span.AddEvent("published", trace.WithAttributes(attribute.Int64("generation", int64(next.Generation))))
	m.logger.InfoContext(ctx, "snapshot published",
		"id", next.ID,
		"generation", next.Generation,
		"previous", prev.ID,
	)
	return nil
}

// Close retires the current snapshot. Snapshots still acquired stay
// usable until released.
func (m *Manager) Close() {
	if snap := m.current.Swap(nil); snap != nil {
		snap.release()
	}
}

// Status summarizes the serving snapshot.
type Status struct {
	Profile    string    `json:"profile,omitempty" yaml:"profile,omitempty"`
	ID         string    `json:"id" yaml:"id"`
	Generation uint64    `json:"generation" yaml:"generation"`
	LoadedAt   time.Time `json:"loaded_at" yaml:"loaded_at"`
	Registry   string    `json:"registry" yaml:"registry"`
	DataRoot   string    `json:"data_root" yaml:"data_root"`
	Split      bool      `json:"split,omitempty" yaml:"split,omitempty"`
	Version    string    `json:"version,omitempty" yaml:"version,omitempty"`
	Date       string    `json:"date,omitempty" yaml:"date,omitempty"`
	Entries    int       `json:"entries" yaml:"entries"`
	Aliases    int       `json:"aliases" yaml:"aliases"`
	Ambiguous  int       `json:"ambiguous" yaml:"ambiguous"`
	LastError  string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Status reports on the current snapshot. ok is false after Close.
func (m *Manager) Status() (st Status, ok bool) {
	snap, release := m.Acquire()
	defer release()
	if snap == nil {
		return Status{}, false
	}
	return snap.status(m.lastErr.Load()), true
}

// Status reports on the snapshot alone.
func (s *Snapshot) Status() Status {
	return s.status(nil)
}

func (s *Snapshot) status(failure *reloadFailure) Status {
	stats := s.Index.Stats()
	st := Status{
		Profile:    s.Source.Profile,
		ID:         s.ID.String(),
		Generation: s.Generation,
		LoadedAt:   s.LoadedAt,
		Registry:   s.Source.Registry,
		DataRoot:   s.Source.DataRoot,
		Split:      s.Source.Split,
		Version:    s.Index.Version(),
		Date:       s.Index.Date(),
		Entries:    stats.Entries,
		Aliases:    stats.Aliases,
		Ambiguous:  stats.Ambiguous,
	}
	if failure != nil {
		st.LastError = failure.at.Format(time.RFC3339) + ": " + failure.err.Error()
	}
	return st
}
