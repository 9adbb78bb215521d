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
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jplu/langtags/langtag"
)

// Errors reported by Build, each wrapped in a *BuildError.
var (
	ErrDuplicateTag = errors.New("tag claimed by two entries")
	ErrMalformed    = errors.New("malformed tag")
)

// BuildError reports the record that made Build fail.
type BuildError struct {
	Record int
	Tag    string
	Err    error
	Cause  error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("registry record %d: tag %q: %v", e.Record, e.Tag, e.Err)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Key addresses the secondary indexes: a primary language with either a
// script, a region, or neither.
type Key struct {
	Language string
	Script   string
	Region   string
}

func (k Key) String() string {
	return strings.Join([]string{k.Language, k.Script, k.Region}, "/")
}

// Probe classifies the outcome of an index lookup.
type Probe uint8

const (
	Miss Probe = iota
	Hit
	Ambiguous
)

func (p Probe) String() string {
	switch p {
	case Hit:
		return "hit"
	case Ambiguous:
		return "ambiguous"
	default:
		return "miss"
	}
}

// Match is the result of a lookup: one entry on a hit, every entry that
// claimed the key when it is ambiguous, nothing on a miss.
type Match []*Entry

// Probe classifies the match.
func (m Match) Probe() Probe {
	switch len(m) {
	case 0:
		return Miss
	case 1:
		return Hit
	default:
		return Ambiguous
	}
}

// keyed maps keys to entry ids. A key added for a second entry moves to the
// ambiguous set, which keeps every claimant in insertion order.
type keyed[K comparable] struct {
	ids       map[K]int
	ambiguous map[K][]int
}

func newKeyed[K comparable]() keyed[K] {
	return keyed[K]{ids: make(map[K]int), ambiguous: make(map[K][]int)}
}

func (k keyed[K]) add(key K, id int) {
	if ids, ok := k.ambiguous[key]; ok {
		if !slices.Contains(ids, id) {
			k.ambiguous[key] = append(ids, id)
		}
		return
	}
	if prev, ok := k.ids[key]; ok && prev != id {
		delete(k.ids, key)
		k.ambiguous[key] = []int{prev, id}
		return
	}
	k.ids[key] = id
}

func (k keyed[K]) lookup(key K) []int {
	if id, ok := k.ids[key]; ok {
		return []int{id}
	}
	return k.ambiguous[key]
}

// Index is the read-only lookup structure over a registry snapshot. It is
// never mutated after Build and is safe for concurrent use.
type Index struct {
	parser  *langtag.Parser
	header  Header
	entries []Entry

	canonical map[string]int
	aliases   keyed[string]
	secondary keyed[Key]
	macro     keyed[string]

	scripts map[string]struct{}
	regions map[string]struct{}
}

// Stats summarises the size of an Index.
type Stats struct {
	Entries   int `json:"entries" yaml:"entries"`
	Aliases   int `json:"aliases" yaml:"aliases"`
	Ambiguous int `json:"ambiguous" yaml:"ambiguous"`
	Secondary int `json:"secondary" yaml:"secondary"`
}

type options struct {
	parser *langtag.Parser
	logger *slog.Logger
}

// Option configures Build.
type Option func(*options)

// WithParser sets the parser used to normalize every tag. The default
// parser carries no IANA registry.
func WithParser(p *langtag.Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithLogger sets the logger Build reports to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Build parses and normalizes every tag of src and returns the index over
// them. Canonical tags must be unique, and no canonical tag may be claimed
// as an alias by another entry; either violation fails with ErrDuplicateTag.
// An alias claimed by two entries, like a partial form reached from two
// entries, is kept out of the index and reported as Ambiguous on lookup.
func Build(src *Source, opts ...Option) (*Index, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parser == nil {
		o.parser = langtag.NewParser()
	}

	x := &Index{
		parser:    o.parser,
		header:    src.Header,
		entries:   make([]Entry, 0, len(src.Records)),
		canonical: make(map[string]int, len(src.Records)),
		aliases:   newKeyed[string](),
		secondary: newKeyed[Key](),
		macro:     newKeyed[string](),
		scripts:   make(map[string]struct{}),
		regions:   make(map[string]struct{}),
	}

	for i, rec := range src.Records {
		e, err := x.newEntry(i, rec)
		if err != nil {
			return nil, err
		}
		key := e.Canonical.String()
		if _, dup := x.canonical[key]; dup {
			return nil, &BuildError{Record: i, Tag: key, Err: ErrDuplicateTag}
		}
		x.canonical[key] = i
		x.entries = append(x.entries, e)
	}

	for i := range x.entries {
		if err := x.indexEntry(&x.entries[i]); err != nil {
			return nil, err
		}
	}
	x.indexConformance()

	st := x.Stats()
	o.logger.Debug("registry index built",
		"version", x.header.Version,
		"date", x.header.Date,
		"entries", st.Entries,
		"aliases", st.Aliases,
		"ambiguous", st.Ambiguous,
	)
	return x, nil
}

func (x *Index) newEntry(i int, rec Record) (Entry, error) {
	parse := func(raw string) (langtag.LanguageTag, error) {
		lt, err := x.parser.Parse(raw)
		if err != nil {
			return lt, &BuildError{Record: i, Tag: raw, Err: ErrMalformed, Cause: err}
		}
		return lt, nil
	}

	canonical, err := parse(rec.Full)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:            i,
		Canonical:     canonical,
		HasLocaleData: rec.SLDR,
		DisplayName:   norm.NFC.String(rec.Name),
		LocalName:     norm.NFC.String(rec.LocalName),
		NoPhonVars:    rec.NoPhonVars,
		Obsolete:      rec.Obsolete,
		parser:        x.parser,
	}

	seen := map[string]struct{}{canonical.String(): {}}
	for _, raw := range append([]string{rec.Tag}, rec.Tags...) {
		if raw == "" {
			continue
		}
		lt, err := parse(raw)
		if err != nil {
			return Entry{}, err
		}
		if _, dup := seen[lt.String()]; dup {
			continue
		}
		seen[lt.String()] = struct{}{}
		e.Tags = append(e.Tags, lt)
	}
	e.Tags = append(e.Tags, canonical)

	for _, r := range rec.Regions {
		e.Regions = append(e.Regions, strings.ToUpper(r))
	}
	for _, v := range rec.Variants {
		e.Variants = append(e.Variants, strings.ToLower(v))
	}
	e.allowed = x.allowedVariants(&e)
	return e, nil
}

// allowedVariants collects the variants an entry accepts: its own, those of
// its tags, the global ones, and the phonetic ones for Latin script classes
// that do not opt out.
func (x *Index) allowedVariants(e *Entry) map[string]struct{} {
	allowed := make(map[string]struct{})
	add := func(vs []string) {
		for _, v := range vs {
			allowed[strings.ToLower(v)] = struct{}{}
		}
	}
	add(e.Variants)
	for _, t := range e.Tags {
		add(t.Variants())
	}
	add(x.header.GlobalVariants)

	_, shortHasScript := e.Short().Script()
	if !e.NoPhonVars && (!shortHasScript || e.Script() == "Latn") {
		add(x.header.PhoneticVariants)
	}
	return allowed
}

func (x *Index) indexEntry(e *Entry) error {
	lang := e.Canonical.Language()
	for _, t := range e.Tags[:len(e.Tags)-1] {
		key := t.String()
		if owner, ok := x.canonical[key]; ok {
			if owner != e.ID {
				return &BuildError{Record: e.ID, Tag: key, Err: ErrDuplicateTag}
			}
			continue
		}
		x.aliases.add(key, e.ID)
		if t.Language() != lang {
			x.macro.add(t.Language(), e.ID)
		}
	}

	// Only plain tags assert a default for their partial forms.
	for _, t := range e.Tags {
		if _, private := t.PrivateUse(); private || t.HasVariants() {
			continue
		}
		x.secondary.add(Key{Language: t.Language()}, e.ID)
		if s, ok := t.Script(); ok {
			x.secondary.add(Key{Language: t.Language(), Script: s}, e.ID)
		}
		if r, ok := t.Region(); ok {
			x.secondary.add(Key{Language: t.Language(), Region: r}, e.ID)
		}
	}
	return nil
}

func (x *Index) indexConformance() {
	for _, s := range x.header.Scripts {
		x.scripts[s] = struct{}{}
	}
	for _, r := range x.header.Regions {
		x.regions[r] = struct{}{}
	}
	for i := range x.entries {
		e := &x.entries[i]
		if s := e.Script(); s != "" {
			x.scripts[s] = struct{}{}
		}
		if r := e.Region(); r != "" {
			x.regions[r] = struct{}{}
		}
		for _, r := range e.Regions {
			x.regions[r] = struct{}{}
		}
	}
}

// Lookup returns the entry owning the normalized tag string.
func (x *Index) Lookup(tag string) Match {
	if id, ok := x.canonical[tag]; ok {
		return Match{&x.entries[id]}
	}
	return x.match(x.aliases.lookup(tag))
}

// Secondary probes the partial-form index.
func (x *Index) Secondary(k Key) Match {
	return x.match(x.secondary.lookup(k))
}

// Macro returns the entries listing lang as the primary subtag of one of
// their aliases while their canonical tag uses another language.
func (x *Index) Macro(lang string) Match {
	return x.match(x.macro.lookup(strings.ToLower(lang)))
}

func (x *Index) match(ids []int) Match {
	if len(ids) == 0 {
		return nil
	}
	m := make(Match, len(ids))
	for i, id := range ids {
		m[i] = &x.entries[id]
	}
	return m
}

// Entry returns the entry with the given id.
func (x *Index) Entry(id int) (*Entry, bool) {
	if id < 0 || id >= len(x.entries) {
		return nil, false
	}
	return &x.entries[id], true
}

// Entries iterates over the entries in source order.
func (x *Index) Entries() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for i := range x.entries {
			if !yield(&x.entries[i]) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (x *Index) Len() int {
	return len(x.entries)
}

// Header returns the metadata of the source document.
func (x *Index) Header() Header {
	return x.header
}

// Version returns the langtags API version of the source document.
func (x *Index) Version() string {
	return x.header.Version
}

// Date returns the publication date of the source document.
func (x *Index) Date() string {
	return x.header.Date
}

// Parser returns the parser the index normalizes tags with.
func (x *Index) Parser() *langtag.Parser {
	return x.parser
}

// Conformant reports whether the script and region of tag, when present,
// are known to the registry.
func (x *Index) Conformant(tag langtag.LanguageTag) bool {
	if s, ok := tag.Script(); ok {
		if _, known := x.scripts[s]; !known {
			return false
		}
	}
	if r, ok := tag.Region(); ok {
		if _, known := x.regions[r]; !known {
			return false
		}
	}
	return true
}

// Stats returns the size of the index.
func (x *Index) Stats() Stats {
	return Stats{
		Entries:   len(x.entries),
		Aliases:   len(x.aliases.ids),
		Ambiguous: len(x.aliases.ambiguous) + len(x.secondary.ambiguous) + len(x.macro.ambiguous),
		Secondary: len(x.secondary.ids),
	}
}
