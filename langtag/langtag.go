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

// Package langtag parses, normalizes and compares IETF BCP 47 language tags
// as used to address writing systems in a langtags registry.
//
// A LanguageTag is an immutable value made of a primary language subtag, an
// optional extended language, script and region, an ordered list of
// variants, and optional extension and private-use sequences.
//
// # Parsing and normalization
//
//   - Parse performs a purely syntactic parse. It folds the case of every
//     subtag (language lower, script title, region upper) and accepts both
//     '-' and '_' as separators, so LDML file stems such as "en_Latn_US"
//     parse too.
//   - A Parser built with an IANA Language Subtag Registry additionally maps
//     grandfathered tags to their preferred values and orders variants by
//     their registry precedence. Without a registry, variants are ordered
//     lexically so normalization stays deterministic.
//
// Equality and ordering of tags are defined over the normalized string only.
package langtag

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTag matches every syntax error returned by Parse.
var ErrMalformedTag = errors.New("malformed language tag")

// Errors that can occur during language tag parsing. Each of them is
// wrapped in a *MalformedTagError.
var (
	ErrEmptyExtension     = errors.New("if an extension subtag is present, it must not be empty")
	ErrEmptyPrivateUse    = errors.New("if the 'x' subtag is present, it must not be empty")
	ErrForbiddenChar      = errors.New("the langtag contains a char not allowed")
	ErrInvalidSubtag      = errors.New("a subtag fails to parse or appears out of order")
	ErrInvalidLanguage    = errors.New("the given language subtag is invalid")
	ErrSubtagTooLong      = errors.New("a subtag may be eight characters in length at maximum")
	ErrEmptySubtag        = errors.New("a subtag should not be empty")
	ErrTooManyExtlangs    = errors.New("at maximum one extlang is allowed")
	ErrDuplicateVariant   = errors.New("the same variant subtag appears more than once")
	ErrDuplicateSingleton = errors.New("the same extension singleton appears more than once")
	ErrMissingLanguage    = errors.New("a private use tag has no primary language subtag")
)

// MalformedTagError reports the subtag that made a tag fail to parse.
// Position is the zero-based index of the offending subtag.
type MalformedTagError struct {
	Tag      string
	Subtag   string
	Position int
	Err      error
}

func (e *MalformedTagError) Error() string {
	if e.Subtag == "" {
		return fmt.Sprintf("malformed language tag %q at subtag %d: %v", e.Tag, e.Position, e.Err)
	}
	return fmt.Sprintf("malformed language tag %q at subtag %d (%q): %v", e.Tag, e.Position, e.Subtag, e.Err)
}

func (e *MalformedTagError) Unwrap() error {
	return e.Err
}

// Is makes every MalformedTagError match ErrMalformedTag.
func (e *MalformedTagError) Is(target error) bool {
	return target == ErrMalformedTag
}

// Extension represents a single extension in a language tag, e.g., `-u-co-phonebk`.
type Extension struct {
	Singleton rune
	Value     string
}

// LanguageTag represents a well-formed language tag. The zero value is the
// empty tag.
type LanguageTag struct {
	language      string
	extlang       string
	script        string
	region        string
	variants      []string
	extensions    []Extension
	privateuse    []string
	grandfathered bool
}

// String returns the tag rendered with canonical casing. It implements the
// fmt.Stringer interface.
func (lt LanguageTag) String() string {
	var b strings.Builder
	lt.render(&b)
	return b.String()
}

// IsZero reports whether the tag is the empty tag.
func (lt LanguageTag) IsZero() bool {
	return lt.language == "" && len(lt.privateuse) == 0
}

// Language returns the primary language subtag.
func (lt LanguageTag) Language() string {
	return lt.language
}

// ExtendedLanguage returns the extended language subtag.
func (lt LanguageTag) ExtendedLanguage() (string, bool) {
	return lt.extlang, lt.extlang != ""
}

// FullLanguage returns the primary language subtag and its extended language subtag.
func (lt LanguageTag) FullLanguage() string {
	if lt.extlang == "" {
		return lt.language
	}
	return lt.language + "-" + lt.extlang
}

// Script returns the script subtag.
func (lt LanguageTag) Script() (string, bool) {
	return lt.script, lt.script != ""
}

// Region returns the region subtag.
func (lt LanguageTag) Region() (string, bool) {
	return lt.region, lt.region != ""
}

// Variants returns a copy of the variant subtags in tag order.
func (lt LanguageTag) Variants() []string {
	if len(lt.variants) == 0 {
		return nil
	}
	return append([]string(nil), lt.variants...)
}

// HasVariants reports whether the tag carries variant subtags.
func (lt LanguageTag) HasVariants() bool {
	return len(lt.variants) > 0
}

// Extensions returns a copy of the parsed extensions.
func (lt LanguageTag) Extensions() []Extension {
	if len(lt.extensions) == 0 {
		return nil
	}
	return append([]Extension(nil), lt.extensions...)
}

// PrivateUse returns the private use subtags joined by '-' (e.g., `phonebk-sort`).
func (lt LanguageTag) PrivateUse() (string, bool) {
	if len(lt.privateuse) == 0 {
		return "", false
	}
	return strings.Join(lt.privateuse, "-"), true
}

// IsGrandfathered returns true if the tag is an irregular or regular
// grandfathered tag without a preferred value.
func (lt LanguageTag) IsGrandfathered() bool {
	return lt.grandfathered
}

// Base returns the tag reduced to its language, script and region.
func (lt LanguageTag) Base() LanguageTag {
	return LanguageTag{
		language:      lt.language,
		extlang:       lt.extlang,
		script:        lt.script,
		region:        lt.region,
		grandfathered: lt.grandfathered,
	}
}

// WithLanguage returns a copy of the tag with its primary language replaced
// and any extended language dropped.
func (lt LanguageTag) WithLanguage(lang string) LanguageTag {
	out := lt.clone()
	out.language = strings.ToLower(lang)
	out.extlang = ""
	out.grandfathered = false
	return out
}

// WithoutScript returns a copy of the tag without its script subtag.
func (lt LanguageTag) WithoutScript() LanguageTag {
	out := lt.clone()
	out.script = ""
	return out
}

// WithoutRegion returns a copy of the tag without its region subtag.
func (lt LanguageTag) WithoutRegion() LanguageTag {
	out := lt.clone()
	out.region = ""
	return out
}

// WithRegion returns a copy of the tag with the region subtag replaced.
func (lt LanguageTag) WithRegion(region string) LanguageTag {
	out := lt.clone()
	out.region = strings.ToUpper(region)
	return out
}

// WithoutVariants returns a copy of the tag without variant subtags.
func (lt LanguageTag) WithoutVariants() LanguageTag {
	out := lt.clone()
	out.variants = nil
	return out
}

// WithVariant returns a copy of the tag with the variant appended. Callers
// normalize afterwards if registry order matters.
func (lt LanguageTag) WithVariant(variant string) LanguageTag {
	out := lt.clone()
	out.variants = append(out.variants, strings.ToLower(variant))
	return out
}

// WithoutExtensions returns a copy of the tag without extension and
// private-use sequences.
func (lt LanguageTag) WithoutExtensions() LanguageTag {
	out := lt.clone()
	out.extensions = nil
	out.privateuse = nil
	return out
}

// WithoutPrivateUse returns a copy of the tag without its private-use
// sequence.
func (lt LanguageTag) WithoutPrivateUse() LanguageTag {
	out := lt.clone()
	out.privateuse = nil
	return out
}

// Equal reports whether two tags render to the same string. Both tags are
// expected to be normalized.
func (lt LanguageTag) Equal(other LanguageTag) bool {
	return lt.String() == other.String()
}

// Compare orders tags by their rendered string.
func Compare(a, b LanguageTag) int {
	return strings.Compare(a.String(), b.String())
}

func (lt LanguageTag) clone() LanguageTag {
	out := lt
	if len(lt.variants) > 0 {
		out.variants = append([]string(nil), lt.variants...)
	}
	if len(lt.extensions) > 0 {
		out.extensions = append([]Extension(nil), lt.extensions...)
	}
	if len(lt.privateuse) > 0 {
		out.privateuse = append([]string(nil), lt.privateuse...)
	}
	return out
}

// render reconstructs the language tag string from the parsed components.
func (lt LanguageTag) render(b *strings.Builder) {
	if lt.language == "" {
		writePrivateUse(b, lt.privateuse, false)
		return
	}
	b.WriteString(lt.language)
	if lt.extlang != "" {
		b.WriteByte('-')
		b.WriteString(lt.extlang)
	}
	if lt.script != "" {
		b.WriteByte('-')
		b.WriteString(lt.script)
	}
	if lt.region != "" {
		b.WriteByte('-')
		b.WriteString(lt.region)
	}
	for _, v := range lt.variants {
		b.WriteByte('-')
		b.WriteString(v)
	}
	for _, ext := range lt.extensions {
		b.WriteByte('-')
		b.WriteRune(ext.Singleton)
		b.WriteByte('-')
		b.WriteString(ext.Value)
	}
	writePrivateUse(b, lt.privateuse, true)
}

func writePrivateUse(b *strings.Builder, subtags []string, leadingDash bool) {
	if len(subtags) == 0 {
		return
	}
	if leadingDash {
		b.WriteByte('-')
	}
	b.WriteByte('x')
	for _, s := range subtags {
		b.WriteByte('-')
		b.WriteString(s)
	}
}

// MarshalJSON implements the json.Marshaler interface. It marshals the language
// tag as a JSON string.
func (lt LanguageTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(lt.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface. It performs a
// syntactic parse of the JSON string; registry-aware normalization is left to
// the caller's Parser.
func (lt *LanguageTag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		*lt = LanguageTag{}
		return nil
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*lt = parsed
	return nil
}
