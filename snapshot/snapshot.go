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

// Package snapshot publishes generations of registry state. A Snapshot
// bundles a built registry index with the data root it was loaded against;
// a Manager swaps snapshots atomically while readers keep the generation
// they acquired until they release it.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jplu/langtags/langtag"
	"github.com/jplu/langtags/registry"
	"github.com/jplu/langtags/resolve"
	"github.com/jplu/langtags/store"
)

const (
	// DefaultCacheTTL is how long a snapshot remembers a resolution.
	DefaultCacheTTL = 10 * time.Minute
	// DefaultCacheSize bounds the number of resolutions a snapshot
	// remembers.
	DefaultCacheSize = 1 << 16
)

var tracer = otel.Tracer("github.com/jplu/langtags/snapshot")

// Source locates the inputs of a snapshot.
type Source struct {
	// Profile names the configuration profile the source came from.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
	// Registry is the path of a langtags.json or langtags.txt file.
	Registry string `json:"registry" yaml:"registry"`
	// DataRoot is the data root, a directory or a blob URL.
	DataRoot string `json:"data_root" yaml:"data_root"`
	// Split is set when the data root holds flat and unflat trees.
	Split bool `json:"split,omitempty" yaml:"split,omitempty"`
}

type options struct {
	parser     *langtag.Parser
	logger     *slog.Logger
	cacheTTL   time.Duration
	cacheSize  int
	generation uint64
}

// Option configures loading.
type Option func(*options)

// WithParser sets the tag parser used to build the index.
func WithParser(p *langtag.Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCacheTTL sets how long resolutions are memoized. A non-positive ttl
// keeps them for the life of the snapshot.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.cacheTTL = ttl
	}
}

// WithCacheSize bounds the number of memoized resolutions. Once it is
// reached new outcomes are no longer remembered until entries expire. A
// non-positive size disables memoization.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

func withGeneration(g uint64) Option {
	return func(o *options) {
		o.generation = g
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), cacheTTL: DefaultCacheTTL, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parser == nil {
		o.parser = langtag.NewParser()
	}
	return o
}

// Snapshot is one immutable generation of registry state.
type Snapshot struct {
	ID         xid.ID
	Generation uint64
	LoadedAt   time.Time
	Source     Source
	Index      *registry.Index
	Store      *store.Store

	memo     *gocache.Cache
	memoSize int
	logger   *slog.Logger
	// refs counts the holders of the snapshot. The store closes when it
	// drops to zero and the snapshot can never be retained again.
	refs atomic.Int64
}

// memoized is a cached resolution outcome.
type memoized struct {
	result resolve.Result
	err    error
}

// Load reads the registry of src, builds its index and opens its data
// root. The caller holds the only reference and must Close the snapshot.
func Load(ctx context.Context, src Source, opts ...Option) (snap *Snapshot, err error) {
	o := newOptions(opts)

	ctx, span := tracer.Start(ctx, "Load", trace.WithAttributes(
		attribute.String("registry", src.Registry),
		attribute.String("data_root", src.DataRoot),
		attribute.Int64("generation", int64(o.generation)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	idx, err := readIndex(src.Registry, o)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, src.DataRoot, store.WithLogger(o.logger), store.WithSplit(src.Split))
	if err != nil {
		return nil, err
	}

	snap = &Snapshot{
		ID:         xid.New(),
		Generation: o.generation,
		LoadedAt:   time.Now(),
		Source:     src,
		Index:      idx,
		Store:      st,
		memo:       newMemo(o.cacheTTL),
		memoSize:   o.cacheSize,
		logger:     o.logger,
	}
	snap.refs.Store(1)
	span.SetAttributes(attribute.String("snapshot", snap.ID.String()))
	o.logger.InfoContext(ctx, "snapshot loaded",
		"id", snap.ID,
		"generation", snap.Generation,
		"version", idx.Version(),
		"entries", idx.Len(),
	)
	return snap, nil
}

func readIndex(path string, o options) (*registry.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	defer f.Close()

	src, err := registry.Read(path, f)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}
	idx, err := registry.Build(src, registry.WithParser(o.parser), registry.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("building registry %s: %w", path, err)
	}
	return idx, nil
}

func newMemo(ttl time.Duration) *gocache.Cache {
	if ttl <= 0 {
		return gocache.New(gocache.NoExpiration, 0)
	}
	return gocache.New(ttl, 2*ttl)
}

// Resolve resolves raw against the index of the snapshot. Outcomes are
// memoized by normalized tag for the life of the snapshot, subject to its
// cache TTL and size. Malformed input is never memoized.
func (s *Snapshot) Resolve(raw string) (resolve.Result, error) {
	tag, err := s.Index.Parser().Parse(raw)
	if err != nil {
		return resolve.Result{}, &resolve.Error{Input: raw, Err: resolve.ErrInvalid, Cause: err}
	}
	key := tag.String()
	if v, ok := s.memo.Get(key); ok {
		if m, ok := v.(memoized); ok {
			return m.result, withInput(m.err, raw)
		}
	}
	res, err := resolve.ResolveTag(s.Index, tag)
	if s.memoSize > 0 && s.memo.ItemCount() < s.memoSize {
		s.memo.SetDefault(key, memoized{result: res, err: err})
	}
	return res, withInput(err, raw)
}

// withInput reports a resolution error against the input as the caller
// spelled it.
func withInput(err error, raw string) error {
	var re *resolve.Error
	if !errors.As(err, &re) || re.Input == raw {
		return err
	}
	out := *re
	out.Input = raw
	return &out
}

// Memoized returns the number of resolutions currently remembered.
func (s *Snapshot) Memoized() int {
	return s.memo.ItemCount()
}

// Open reads the locale document of e from the data root of the snapshot.
func (s *Snapshot) Open(ctx context.Context, e *registry.Entry, opts ...store.OpenOption) (*store.Document, error) {
	return s.Store.Open(ctx, e, opts...)
}

// Close drops the reference returned by Load.
func (s *Snapshot) Close() {
	s.release()
}

// retain takes a reference unless the snapshot has already been released
// for good.
func (s *Snapshot) retain() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *Snapshot) release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		s.memo.Flush()
		if err := s.Store.Close(); err != nil {
			s.logger.Error("closing data root", "id", s.ID, "error", err)
		}
		s.logger.Debug("snapshot retired", "id", s.ID, "generation", s.Generation)
	case n < 0:
		panic(fmt.Sprintf("snapshot %s released more often than retained", s.ID))
	}
}

// Refs returns the number of live references to the snapshot.
func (s *Snapshot) Refs() int64 {
	return s.refs.Load()
}
