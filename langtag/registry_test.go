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

//nolint:testpackage // This is a white-box test file for an internal package. It needs to be in the same package to test unexported functions.
package langtag

import (
	"testing"
)

// TestRecord_IsGrandfathered checks RFC 5646 Section 2.2.8: both
// 'grandfathered' and 'redundant' registrations are tag records.
func TestRecord_IsGrandfathered(t *testing.T) {
	for typ, want := range map[string]bool{
		"grandfathered": true,
		"redundant":     true,
		"language":      false,
		"extlang":       false,
		"variant":       false,
		"":              false,
	} {
		rec := Record{Type: typ}
		if got := rec.IsGrandfathered(); got != want {
			t.Errorf("IsGrandfathered() for type %q = %v, want %v", typ, got, want)
		}
	}
}

func TestRegistry_Tag(t *testing.T) {
	reg := p.Registry()
	tests := []struct {
		tag       string
		want      string
		wantFound bool
	}{
		{tag: "i-klingon", want: "tlh", wantFound: true},
		{tag: "ZH_MIN_NAN", want: "nan", wantFound: true},
		{tag: "i-default", want: "", wantFound: true},
		{tag: "en", wantFound: false},
		// Subtag records are never returned as tag records.
		{tag: "language:en", wantFound: false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			rec, ok := reg.Tag(tt.tag)
			if ok != tt.wantFound || rec.PreferredValue != tt.want {
				t.Errorf("Tag(%q) = %q, %v, want %q, %v", tt.tag, rec.PreferredValue, ok, tt.want, tt.wantFound)
			}
		})
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var reg *Registry
	if _, ok := reg.Subtag(typeLanguage, "en"); ok {
		t.Error("nil Registry Subtag() ok = true")
	}
	if _, ok := reg.Tag("i-klingon"); ok {
		t.Error("nil Registry Tag() ok = true")
	}
	if got := reg.variantRank("rozaj"); got != 0 {
		t.Errorf("nil Registry variantRank() = %d, want 0", got)
	}
}

// TestRegistry_variantRank checks that the rank counts the variants already
// required by the longest Prefix.
func TestRegistry_variantRank(t *testing.T) {
	reg := p.Registry()
	for variant, want := range map[string]int{
		"rozaj":    0,
		"scotland": 0,
		"biske":    1,
		"1994":     2,
		"BISKE":    1,
		"fonipa":   unprefixedRank,
		"unknown":  unprefixedRank,
	} {
		if got := reg.variantRank(variant); got != want {
			t.Errorf("variantRank(%q) = %d, want %d", variant, got, want)
		}
	}
}
