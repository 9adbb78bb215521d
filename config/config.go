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

// Package config holds the process configuration: settings read from the
// environment, and the profiles file naming the registry and data root of
// each deployment.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// DefaultProfile is selected when no profile is requested.
const DefaultProfile = "production"

var (
	// ErrUnknownProfile is returned when neither the requested profile
	// nor the default one is defined.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrNoRegistry is returned when a profile directory holds no
	// langtags file.
	ErrNoRegistry = errors.New("no langtags file")
)

// Configuration is read from the environment.
type Configuration struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	Profile          string        `envDefault:"production"   env:"LDML_PROFILE"          yaml:"profile"`
	ProfilesFile     string        `envDefault:"ldml-api.yaml" env:"LDML_PROFILES_FILE"   yaml:"profiles_file"`
	SubtagRegistry   string        `envDefault:""             env:"LDML_SUBTAG_REGISTRY"  yaml:"subtag_registry"`
	ReloadInterval   time.Duration `envDefault:"0s"    env:"LDML_RELOAD_INTERVAL"  yaml:"reload_interval"`
	WatchDebounce    time.Duration `envDefault:"1s"    env:"LDML_WATCH_DEBOUNCE"   yaml:"watch_debounce"`
	VerifyWorkers    int           `envDefault:"0"     env:"LDML_VERIFY_WORKERS"   yaml:"verify_workers"`
	ResolveCacheTTL  time.Duration `envDefault:"10m"   env:"LDML_RESOLVE_CACHE_TTL" yaml:"resolve_cache_ttl"`
	ResolveCacheSize int           `envDefault:"65536" env:"LDML_RESOLVE_CACHE_SIZE" yaml:"resolve_cache_size"`
}

// FromEnv reads the configuration from the environment.
func FromEnv() (Configuration, error) {
	return env.ParseAs[Configuration]()
}

// Profile locates the inputs of one deployment.
type Profile struct {
	Name string `mapstructure:"-" yaml:"name"`
	// Langtags is a langtags.json or langtags.txt file, or a directory
	// holding one.
	Langtags string `mapstructure:"langtags" yaml:"langtags"`
	// SLDR is the data root.
	SLDR string `mapstructure:"sldr" yaml:"sldr"`
	// Split marks a data root holding a flat and an unflat tree side by
	// side, in the flat and unflat subdirectories.
	Split bool `mapstructure:"split" yaml:"split"`
	// Fallback marks the profile served when the requested one is not
	// defined.
	Fallback bool `mapstructure:"fallback" yaml:"fallback"`
}

// Registry returns the langtags file of the profile, preferring
// langtags.json over langtags.txt in a directory.
func (p Profile) Registry() (string, error) {
	fi, err := os.Stat(p.Langtags)
	if err != nil {
		return "", fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if !fi.IsDir() {
		return p.Langtags, nil
	}
	for _, name := range []string{"langtags.json", "langtags.txt"} {
		path := filepath.Join(p.Langtags, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("profile %s: %w in %s", p.Name, ErrNoRegistry, p.Langtags)
}

// Profiles maps profile names to profiles.
type Profiles map[string]Profile

// LoadProfiles reads a profiles file. Its format follows the file
// extension: YAML, JSON or TOML. Relative paths are taken from the
// directory of the file.
func LoadProfiles(path string) (Profiles, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading profiles %s: %w", path, err)
	}

	var raw map[string]Profile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decoding profiles %s: %w", path, err)
	}

	base := filepath.Dir(path)
	out := make(Profiles, len(raw))
	for name, p := range raw {
		p.Name = name
		p.Langtags = resolvePath(base, p.Langtags)
		p.SLDR = resolvePath(base, p.SLDR)
		out[name] = p
	}
	return out, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) || hasScheme(p) {
		return p
	}
	return filepath.Join(base, p)
}

func hasScheme(p string) bool {
	for i, c := range p {
		switch {
		case c == ':':
			return i > 0 && len(p) > i+2 && p[i+1:i+3] == "//"
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return false
}

// Select returns the named profile. When name is empty or undefined it
// returns the profile marked as fallback, the first by name if several
// are, and then the default profile.
func (ps Profiles) Select(name string) (Profile, error) {
	if p, ok := ps[name]; ok {
		return p, nil
	}
	if p, ok := ps.Fallback(); ok {
		return p, nil
	}
	if p, ok := ps[DefaultProfile]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("%w %q (have %v)", ErrUnknownProfile, name, ps.Names())
}

// Fallback returns the profile marked as fallback.
func (ps Profiles) Fallback() (Profile, bool) {
	for _, name := range ps.Names() {
		if p := ps[name]; p.Fallback {
			return p, true
		}
	}
	return Profile{}, false
}

// Names returns the sorted profile names.
func (ps Profiles) Names() []string {
	return slices.Sorted(maps.Keys(ps))
}
