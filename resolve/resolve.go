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

// Package resolve maps arbitrary language tags to the canonical tag of a
// registry entry.
//
// Resolution tries, in decreasing order of specificity:
//
//  1. the tag itself, then the tag without private use, without extensions
//     and without variants;
//  2. partial forms with registry defaults: the tag without its region,
//     then the (language, script), (language, region) and (language)
//     secondary indexes;
//  3. the same two steps again with the primary language replaced by its
//     macrolanguage, taken from the registry aliases or from the IANA
//     subtag registry.
//
// Every candidate found after the first probe must admit the input tag.
// A key claimed by several admitting entries is never guessed: when no
// later probe succeeds, resolution fails with ErrAmbiguous.
package resolve

import (
	"errors"
	"fmt"

	"github.com/jplu/langtags/langtag"
	"github.com/jplu/langtags/registry"
)

// Errors returned by Resolve, each wrapped in an *Error.
var (
	ErrInvalid   = errors.New("invalid language tag")
	ErrNotFound  = errors.New("no registry entry matches")
	ErrAmbiguous = errors.New("several registry entries match")
)

// Error reports the input that failed to resolve.
type Error struct {
	Input string
	Err   error
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resolving %q: %v: %v", e.Input, e.Err, e.Cause)
	}
	return fmt.Sprintf("resolving %q: %v", e.Input, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Kind tells how a result was reached.
type Kind uint8

const (
	Exact Kind = iota
	PartialWithDefaults
	MacrolanguageFallback
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case PartialWithDefaults:
		return "partial"
	case MacrolanguageFallback:
		return "macrolanguage"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result is the outcome of a successful resolution.
type Result struct {
	Canonical langtag.LanguageTag `json:"canonical" yaml:"canonical"`
	Entry     *registry.Entry     `json:"-" yaml:"-"`
	Kind      Kind                `json:"kind" yaml:"kind"`
}

// Resolve parses raw with the parser of idx and resolves it.
func Resolve(idx *registry.Index, raw string) (Result, error) {
	tag, err := idx.Parser().Parse(raw)
	if err != nil {
		return Result{}, &Error{Input: raw, Err: ErrInvalid, Cause: err}
	}
	return resolve(idx, raw, tag)
}

// ResolveTag resolves an already parsed tag. The tag is normalized first.
func ResolveTag(idx *registry.Index, tag langtag.LanguageTag) (Result, error) {
	return resolve(idx, tag.String(), idx.Parser().Normalize(tag))
}

func resolve(idx *registry.Index, raw string, tag langtag.LanguageTag) (Result, error) {
	r := resolver{idx: idx, input: tag}

	if e, kind, ok := r.lookup(tag); ok {
		return Result{Canonical: e.Canonical, Entry: e, Kind: kind}, nil
	}
	if e, ok := r.macrolanguage(); ok {
		return Result{Canonical: e.Canonical, Entry: e, Kind: MacrolanguageFallback}, nil
	}

	if r.ambiguous {
		return Result{}, &Error{Input: raw, Err: ErrAmbiguous}
	}
	return Result{}, &Error{Input: raw, Err: ErrNotFound}
}

type resolver struct {
	idx   *registry.Index
	input langtag.LanguageTag
	// ambiguous records that a probe hit a key several admitting
	// entries claim.
	ambiguous bool
}

// accept returns the entry of m if it is the only one and admits the input.
// The first probe of a lookup, on the input itself, skips the admission
// check.
func (r *resolver) accept(m registry.Match, check bool) (*registry.Entry, bool) {
	switch m.Probe() {
	case registry.Hit:
		if !check || m[0].Admits(r.input) {
			return m[0], true
		}
	case registry.Ambiguous:
		for _, e := range m {
			if e.Admits(r.input) {
				r.ambiguous = true
				break
			}
		}
	case registry.Miss:
	}
	return nil, false
}

// lookup runs the exact and partial steps for tag, which is the input or
// the input with its language replaced.
func (r *resolver) lookup(tag langtag.LanguageTag) (*registry.Entry, Kind, bool) {
	base := tag.WithoutExtensions().WithoutVariants()
	seen := make(map[string]struct{}, 4)
	for _, probe := range []langtag.LanguageTag{tag, tag.WithoutPrivateUse(), tag.WithoutExtensions(), base} {
		key := probe.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		check := len(seen) > 1 || !tag.Equal(r.input)
		if e, ok := r.accept(r.idx.Lookup(key), check); ok {
			return e, exactKind(tag, e), true
		}
	}

	lang := tag.Language()
	script, hasScript := tag.Script()
	region, hasRegion := tag.Region()
	if hasRegion {
		if e, ok := r.accept(r.idx.Lookup(base.WithoutRegion().String()), true); ok {
			return e, PartialWithDefaults, true
		}
	}

	keys := make([]registry.Key, 0, 3)
	if hasScript {
		keys = append(keys, registry.Key{Language: lang, Script: script})
	}
	if hasRegion {
		keys = append(keys, registry.Key{Language: lang, Region: region})
	}
	keys = append(keys, registry.Key{Language: lang})
	for _, k := range keys {
		if e, ok := r.accept(r.idx.Secondary(k), true); ok {
			return e, PartialWithDefaults, true
		}
	}
	return nil, Exact, false
}

// exactKind reports a hit on a form lacking the script or region of the
// canonical tag as PartialWithDefaults.
func exactKind(tag langtag.LanguageTag, e *registry.Entry) Kind {
	if _, ok := tag.Script(); !ok && e.Script() != "" {
		return PartialWithDefaults
	}
	if _, ok := tag.Region(); !ok && e.Region() != "" {
		return PartialWithDefaults
	}
	return Exact
}

// macrolanguage retries the lookup with the primary language replaced, in
// turn, by the extended language subtag, the language the registry files
// the input language under, and its IANA macrolanguage.
func (r *resolver) macrolanguage() (*registry.Entry, bool) {
	lang := r.input.Language()
	var langs []string
	if ext, ok := r.input.ExtendedLanguage(); ok {
		langs = append(langs, ext)
	}
	if m := r.idx.Macro(lang); len(m) > 0 {
		owner := m[0].Canonical.Language()
		for _, e := range m[1:] {
			if e.Canonical.Language() != owner {
				owner = ""
				r.ambiguous = true
				break
			}
		}
		if owner != "" {
			langs = append(langs, owner)
		}
	}
	if macro, ok := r.idx.Parser().Macrolanguage(lang); ok {
		langs = append(langs, macro)
	}

	for _, l := range langs {
		if l == lang {
			continue
		}
		if e, _, ok := r.lookup(r.input.WithLanguage(l)); ok {
			return e, true
		}
	}
	return nil, false
}
