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

package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jplu/langtags/registry"
)

// Inconsistency is an entry the registry and the data root disagree on.
type Inconsistency struct {
	Entry *registry.Entry
	Err   error
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s: %v", i.Entry.Canonical, i.Err)
}

// Verify checks that every entry of idx declaring locale data has a
// document in the data root, in both trees of a split data root. Entries are checked concurrently by at most
// workers goroutines, runtime.NumCPU() when workers is not positive. The
// result is ordered by entry ID.
func (s *Store) Verify(ctx context.Context, idx *registry.Index, workers int) (out []Inconsistency, err error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, span := s.tracer.Start(ctx, "Verify", trace.WithAttributes(
		attribute.Int("entries", idx.Len()),
		attribute.Int("workers", workers),
	))
	defer func() { endSpan(span, err) }()

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		s.logger.ErrorContext(ctx, "verify worker panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("starting verify pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for e := range idx.Entries() {
		if !e.HasLocaleData {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			for _, prefix := range s.trees() {
				if _, _, err := s.locate(ctx, e, prefix); err != nil && ctx.Err() == nil {
					mu.Lock()
					out = append(out, Inconsistency{Entry: e, Err: err})
					mu.Unlock()
				}
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("scheduling verification of %s: %w", e.Canonical, submitErr)
		}
	}
	wg.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	slices.SortStableFunc(out, func(a, b Inconsistency) int { return a.Entry.ID - b.Entry.ID })
	span.SetAttributes(attribute.Int("inconsistencies", len(out)))
	if n := countMissing(out); n > 0 {
		s.logger.WarnContext(ctx, "data root inconsistent with registry", "missing", n, "failed", len(out)-n)
	}
	return out, nil
}

func (s *Store) trees() []string {
	if !s.split {
		return []string{s.prefix(false)}
	}
	return []string{s.prefix(false), s.prefix(true)}
}

func countMissing(out []Inconsistency) int {
	n := 0
	for _, i := range out {
		if errors.Is(i.Err, ErrMissing) {
			n++
		}
	}
	return n
}
