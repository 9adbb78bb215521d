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

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/jplu/langtags/config"
)

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", name, err)
	}
	return l, nil
}

// New returns a tint logger writing to w as cfg requests. An invalid level
// falls back to info and is reported through the returned logger.
func New(w io.Writer, cfg config.Configuration) *slog.Logger {
	level, err := ParseLevel(cfg.LogLevel)
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: cfg.LogTimeFormat,
		NoColor:    !cfg.LogColored,
	}))
	if err != nil {
		logger.Warn("using default log level", "error", err)
	}
	return logger
}
