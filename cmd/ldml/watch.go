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

package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jplu/langtags/snapshot"
	"github.com/jplu/langtags/watch"
)

// watch serves a manager until ctx is done, reloading on changes to the
// registry file or a local data root and on the configured interval.
func (a *app) watch(ctx context.Context) error {
	src, err := a.source()
	if err != nil {
		return err
	}
	opts, err := a.snapshotOptions()
	if err != nil {
		return err
	}
	m, err := snapshot.NewManager(ctx, src, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	cfg := watch.Config{
		Files:    []string{src.Registry},
		Debounce: a.cfg.WatchDebounce,
		Logger:   a.logger,
	}
	switch {
	case strings.Contains(src.DataRoot, "://"):
	case src.Split:
		cfg.Dirs = append(cfg.Dirs, filepath.Join(src.DataRoot, "flat"), filepath.Join(src.DataRoot, "unflat"))
	default:
		cfg.Dirs = append(cfg.Dirs, src.DataRoot)
	}
	w, err := watch.New(cfg)
	if err != nil {
		return err
	}
	defer w.Stop()
	changes, err := w.Start()
	if err != nil {
		return err
	}

	if st, ok := m.Status(); ok {
		a.logger.InfoContext(ctx, "serving", "profile", st.Profile, "generation", st.Generation, "entries", st.Entries)
	}
	watch.Run(ctx, changes, a.cfg.ReloadInterval, m.Reload, a.logger)
	return nil
}
