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

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeKind tells whether a line appeared or disappeared.
type ChangeKind int8

const (
	Removed ChangeKind = -1
	Added   ChangeKind = 1
)

func (k ChangeKind) String() string {
	if k == Removed {
		return "-"
	}
	return "+"
}

// Change is one equivalence set present in only one of two indexes.
type Change struct {
	Kind ChangeKind
	Set  string
}

// Diff compares the equivalence sets of two indexes, in canonical tag
// order. Entries whose sets are unchanged produce no change.
func Diff(from, to *Index) []Change {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(renderIndex(from), renderIndex(to))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []Change
	for _, d := range diffs {
		var kind ChangeKind
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = Removed
		case diffmatchpatch.DiffInsert:
			kind = Added
		case diffmatchpatch.DiffEqual:
			continue
		}
		for line := range strings.Lines(d.Text) {
			out = append(out, Change{Kind: kind, Set: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// renderIndex renders every set of x, one per line, sorted.
func renderIndex(x *Index) string {
	var lines []string
	for e := range x.Entries() {
		for _, set := range e.EquivalenceSets() {
			lines = append(lines, joinSet(set))
		}
	}
	slices.Sort(lines)
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
