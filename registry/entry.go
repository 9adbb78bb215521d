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

package registry

import (
	"slices"
	"strings"

	"github.com/jplu/langtags/langtag"
)

// Entry is one equivalence class of the index. Entries are owned by their
// Index and must not be modified.
type Entry struct {
	// ID is the stable position of the entry in its Index.
	ID int
	// Canonical is the maximally specific tag of the class.
	Canonical langtag.LanguageTag
	// Tags lists every form of the class: the short tag first, the
	// aliases in source order, and the canonical tag last.
	Tags []langtag.LanguageTag
	// Regions lists the regions, besides the canonical one, the class is
	// valid for.
	Regions  []string
	Variants []string

	HasLocaleData bool
	DisplayName   string
	LocalName     string
	NoPhonVars    bool
	Obsolete      bool

	parser  *langtag.Parser
	allowed map[string]struct{}
}

// Script returns the script subtag of the canonical tag.
func (e *Entry) Script() string {
	s, _ := e.Canonical.Script()
	return s
}

// Region returns the region subtag of the canonical tag.
func (e *Entry) Region() string {
	r, _ := e.Canonical.Region()
	return r
}

// Short returns the shortest tag of the class.
func (e *Entry) Short() langtag.LanguageTag {
	return e.Tags[0]
}

// Admits reports whether tag may be served by the class: its script, if
// any, is the canonical script; its region, if any, is the canonical region
// or one the class lists; each variant is allowed for the class; and it
// carries the canonical private use when the canonical tag has one.
func (e *Entry) Admits(tag langtag.LanguageTag) bool {
	if s, ok := tag.Script(); ok && s != e.Script() {
		return false
	}
	if r, ok := tag.Region(); ok && r != e.Region() && !slices.Contains(e.Regions, r) {
		return false
	}
	for _, v := range tag.Variants() {
		if _, ok := e.allowed[v]; !ok {
			return false
		}
	}
	if want, ok := e.Canonical.PrivateUse(); ok {
		if got, _ := tag.PrivateUse(); got != want {
			return false
		}
	}
	return true
}

// String renders the class as its equivalence set, e.g.
// "aa=aa-ET=aa-Latn=aa-Latn-ET".
func (e *Entry) String() string {
	return joinSet(e.Tags)
}

// EquivalenceSets expands the class into every concrete set of equivalent
// tags: the main set, one set per extra region (substituted into each tag
// that carries a region), and one set per variant of each of those.
func (e *Entry) EquivalenceSets() [][]langtag.LanguageTag {
	sets := [][]langtag.LanguageTag{e.Tags}
	for _, region := range e.Regions {
		var set []langtag.LanguageTag
		for _, t := range e.Tags {
			if _, ok := t.Region(); ok {
				set = append(set, t.WithRegion(region))
			}
		}
		if len(set) > 0 {
			sets = append(sets, set)
		}
	}

	prototypes := len(sets)
	for _, proto := range sets[:prototypes] {
		for _, v := range e.Variants {
			set := make([]langtag.LanguageTag, 0, len(proto))
			for _, t := range proto {
				if !slices.Contains(t.Variants(), v) {
					t = e.parser.Normalize(t.WithVariant(v))
				}
				set = append(set, t)
			}
			sets = append(sets, set)
		}
	}
	return sets
}

// RenderSets renders sets one per line in equivalence set notation.
func RenderSets(sets [][]langtag.LanguageTag) string {
	var b strings.Builder
	for _, set := range sets {
		b.WriteString(joinSet(set))
		b.WriteByte('\n')
	}
	return b.String()
}

func joinSet(set []langtag.LanguageTag) string {
	parts := make([]string, len(set))
	for i, t := range set {
		parts[i] = t.String()
	}
	return strings.Join(parts, "=")
}
