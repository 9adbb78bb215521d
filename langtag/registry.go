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

package langtag

import "strings"

const (
	typeLanguage      = "language"
	typeVariant       = "variant"
	typeGrandfathered = "grandfathered"
	typeRedundant     = "redundant"

	// unprefixedRank sorts variants without a Prefix after every prefixed one.
	unprefixedRank = 1 << 10
)

// Registry holds the parsed data from the IANA Language Subtag Registry file.
// Subtag records are keyed "type:subtag"; tag records (grandfathered and
// redundant) are keyed by the lower-cased tag.
type Registry struct {
	Records  map[string]Record
	FileDate string

	variantRanks map[string]int
}

// Record represents a single entry in the IANA Language Subtag Registry.
// The fields correspond to the fields defined in RFC 5646, Section 3.1.
type Record struct {
	Type           string   `json:"type"`
	Subtag         string   `json:"subtag,omitempty"`
	Tag            string   `json:"tag,omitempty"`
	Description    []string `json:"description"`
	Added          string   `json:"added"`
	Deprecated     string   `json:"deprecated,omitempty"`
	PreferredValue string   `json:"preferredValue,omitempty"`
	Prefix         []string `json:"prefix,omitempty"`
	SuppressScript string   `json:"suppressScript,omitempty"`
	Macrolanguage  string   `json:"macrolanguage,omitempty"`
	Scope          string   `json:"scope,omitempty"`
	Comments       []string `json:"comments,omitempty"`
}

// IsGrandfathered returns true if the record type is 'grandfathered' or 'redundant'.
func (r *Record) IsGrandfathered() bool {
	return r.Type == typeGrandfathered || r.Type == typeRedundant
}

// Subtag returns the record of the given type for subtag.
func (r *Registry) Subtag(typ, subtag string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	rec, ok := r.Records[typ+":"+strings.ToLower(subtag)]
	return rec, ok
}

// Tag returns the grandfathered or redundant record registered for tag.
func (r *Registry) Tag(tag string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	rec, ok := r.Records[strings.ToLower(strings.ReplaceAll(tag, "_", "-"))]
	if !ok || !rec.IsGrandfathered() {
		return Record{}, false
	}
	return rec, true
}

// variantRank returns the precedence of a variant: the number of variants
// its longest Prefix already requires, so "rozaj" (prefix "sl") sorts before
// "biske" (prefix "sl-rozaj"). Variants without a prefix, or unknown to the
// registry, rank last. A nil registry ranks everything equally.
func (r *Registry) variantRank(variant string) int {
	if r == nil {
		return 0
	}
	if rank, ok := r.variantRanks[strings.ToLower(variant)]; ok {
		return rank
	}
	return unprefixedRank
}

// indexVariants computes variantRanks from the variant records.
func (r *Registry) indexVariants() {
	r.variantRanks = make(map[string]int)
	for _, rec := range r.Records {
		if rec.Type != typeVariant || len(rec.Prefix) == 0 {
			continue
		}
		rank := 0
		for _, prefix := range rec.Prefix {
			lt, err := Parse(prefix)
			if err != nil {
				continue
			}
			rank = max(rank, len(lt.variants))
		}
		r.variantRanks[strings.ToLower(rec.Subtag)] = rank
	}
}
