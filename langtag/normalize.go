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

import (
	"io"
	"slices"
	"strings"
)

// Parser parses and normalizes language tags. It optionally carries an IANA
// Language Subtag Registry used for variant precedence, registered
// grandfathered tags and macrolanguage lookups. A Parser is immutable and
// safe for concurrent use.
type Parser struct {
	registry *Registry
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegistry attaches an IANA subtag registry to the parser.
func WithRegistry(r *Registry) Option {
	return func(p *Parser) {
		p.registry = r
	}
}

// NewParser returns a parser configured with opts. A parser without a
// registry orders variants lexically.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewParserFromRegistry reads an IANA Language Subtag Registry file and
// returns a parser backed by it.
//
// IMPORTANT: parsing the full IANA registry is an expensive operation. Call
// this once at application startup and reuse the returned parser.
func NewParserFromRegistry(r io.Reader) (*Parser, error) {
	registry, err := ParseRegistry(r)
	if err != nil {
		return nil, err
	}
	return NewParser(WithRegistry(registry)), nil
}

// Registry returns the IANA registry backing the parser, or nil.
func (p *Parser) Registry() *Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// Parse parses raw and returns its normalized form. Registered grandfathered
// and redundant tags with a Preferred-Value are replaced by it. Unlike the
// package level Parse, a tag made only of private use subtags is rejected
// with ErrMissingLanguage.
func (p *Parser) Parse(raw string) (LanguageTag, error) {
	if rec, ok := p.Registry().Tag(raw); ok && rec.PreferredValue != "" {
		raw = rec.PreferredValue
	}
	lt, err := Parse(raw)
	if err != nil {
		return LanguageTag{}, err
	}
	if lt.language == "" {
		return LanguageTag{}, &MalformedTagError{Tag: raw, Err: ErrMissingLanguage}
	}
	return p.Normalize(lt), nil
}

// Normalize returns lt with canonical casing, variants in registry
// precedence order and extensions sorted by singleton. Normalize is
// idempotent.
func (p *Parser) Normalize(lt LanguageTag) LanguageTag {
	out := lt.clone()
	out.language = strings.ToLower(out.language)
	out.extlang = strings.ToLower(out.extlang)
	out.script = titleCase(out.script)
	out.region = strings.ToUpper(out.region)
	for i, v := range out.variants {
		out.variants[i] = strings.ToLower(v)
	}
	for i, ext := range out.extensions {
		out.extensions[i].Value = strings.ToLower(ext.Value)
	}
	for i, pu := range out.privateuse {
		out.privateuse[i] = strings.ToLower(pu)
	}

	if len(out.variants) > 1 {
		reg := p.Registry()
		slices.SortStableFunc(out.variants, func(a, b string) int {
			if ra, rb := reg.variantRank(a), reg.variantRank(b); ra != rb {
				return ra - rb
			}
			return strings.Compare(a, b)
		})
	}
	if len(out.extensions) > 1 {
		slices.SortStableFunc(out.extensions, func(a, b Extension) int {
			return int(a.Singleton) - int(b.Singleton)
		})
	}
	return out
}

// Macrolanguage returns the macrolanguage the IANA registry lists for the
// given primary language subtag.
func (p *Parser) Macrolanguage(lang string) (string, bool) {
	rec, ok := p.Registry().Subtag(typeLanguage, lang)
	if !ok || rec.Macrolanguage == "" {
		return "", false
	}
	return strings.ToLower(rec.Macrolanguage), true
}
