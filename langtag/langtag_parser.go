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
	"strings"
	"unicode"
)

// BCP 47 constants for subtag validation.
const (
	maxSubtagLen        = 8 // Maximum length of any subtag.
	minLanguageLen      = 2 // Minimum length of a primary language subtag.
	scriptLen           = 4 // A script subtag is always 4 letters.
	regionAlphaLen      = 2 // An alphabetic region subtag is always 2 letters.
	regionNumericLen    = 3 // A numeric region subtag is always 3 digits.
	extlangLen          = 3 // An extended language subtag is always 3 letters.
	shortPrimaryLangLen = 3 // Max length of a primary language that can be followed by an extlang.
	minVariantLenAlpha  = 5 // Min length of a variant starting with a letter.
	minVariantLenDigit  = 4 // Min length of a variant starting with a digit.
	minExtensionLen     = 2 // Min length of an extension subtag.
)

// parseState represents the current position in the state machine during parsing.
type parseState int

const (
	stateStart         parseState = iota // Expecting a primary language subtag.
	stateAfterLanguage                   // After a 2-3 char primary language, expecting extlang, script, etc.
	stateAfterExtLang                    // After a longer primary lang or an extlang, expecting script, region, etc.
	stateAfterScript                     // After a script, expecting region, variant, etc.
	stateAfterRegion                     // After a region, expecting variant, etc.
	stateInVariant                       // In a sequence of one or more variants.
	stateInExtension                     // In an extension sequence (after a singleton).
	stateInPrivateUse                    // In a private-use sequence (after 'x').
)

// grandfathered lists the RFC 5646 grandfathered tags. Tags with a
// replacement parse as the replacement; the others are kept whole as a
// single language subtag.
//
//nolint:gochecknoglobals // fixed table from RFC 5646 section 2.2.8.
var grandfathered = map[string]string{
	"art-lojban":  "jbo",
	"cel-gaulish": "",
	"en-gb-oed":   "en-GB-oxendict",
	"i-ami":       "ami",
	"i-bnn":       "bnn",
	"i-default":   "",
	"i-enochian":  "",
	"i-hak":       "hak",
	"i-klingon":   "tlh",
	"i-lux":       "lb",
	"i-mingo":     "",
	"i-navajo":    "nv",
	"i-pwn":       "pwn",
	"i-tao":       "tao",
	"i-tay":       "tay",
	"i-tsu":       "tsu",
	"no-bok":      "nb",
	"no-nyn":      "nn",
	"sgn-be-fr":   "sfb",
	"sgn-be-nl":   "vgt",
	"sgn-ch-de":   "sgg",
	"zh-guoyu":    "cmn",
	"zh-hakka":    "hak",
	"zh-min":      "",
	"zh-min-nan":  "nan",
	"zh-xiang":    "hsn",
}

// parseRun holds the state for a single parse. It is not exposed publicly.
type parseRun struct {
	input   string
	subtags []string
	tag     LanguageTag
	// Internal state for the parsing process.
	state             parseState
	seenVariants      map[string]struct{}
	seenSingletons    map[rune]struct{}
	extensionExpected bool
}

// Parse checks that raw is a well-formed language tag and splits it into
// its components. Subtags are separated by '-' or '_'. The case of every
// subtag is folded to its canonical form; variant order is preserved.
//
// Grandfathered tags are recognised as whole units and replaced by their
// preferred value when RFC 5646 defines one.
func Parse(raw string) (LanguageTag, error) {
	input := strings.ReplaceAll(raw, "_", "-")
	if input == "" {
		return LanguageTag{}, &MalformedTagError{Tag: raw, Err: ErrEmptySubtag}
	}

	if preferred, ok := grandfathered[strings.ToLower(input)]; ok {
		if preferred == "" {
			return LanguageTag{language: strings.ToLower(input), grandfathered: true}, nil
		}
		input = preferred
	}

	run := &parseRun{input: raw, subtags: strings.Split(input, "-")}
	if err := run.parse(); err != nil {
		return LanguageTag{}, err
	}
	return run.tag, nil
}

// MustParse is like Parse but panics on error. It is meant for tests and
// package level tables.
func MustParse(raw string) LanguageTag {
	lt, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return lt
}

// fail builds the error for the subtag at position i.
func (run *parseRun) fail(i int, err error) error {
	subtag := ""
	if i >= 0 && i < len(run.subtags) {
		subtag = run.subtags[i]
	}
	return &MalformedTagError{Tag: run.input, Subtag: subtag, Position: i, Err: err}
}

// validateSubtag performs basic syntactic checks on a single subtag.
func validateSubtag(subtag string) error {
	if len(subtag) == 0 {
		return ErrEmptySubtag
	}
	if len(subtag) > maxSubtagLen {
		return ErrSubtagTooLong
	}
	for i := range len(subtag) {
		if !isAlphanum(subtag[i]) {
			return ErrForbiddenChar
		}
	}
	return nil
}

// parse executes the parsing state machine over the subtags.
func (run *parseRun) parse() error {
	for i, subtag := range run.subtags {
		if err := validateSubtag(subtag); err != nil {
			return run.fail(i, err)
		}

		var err error
		switch run.state {
		case stateInPrivateUse:
			run.tag.privateuse = append(run.tag.privateuse, strings.ToLower(subtag))
		case stateInExtension:
			err = run.handleExtensionSubtag(subtag)
		case stateStart, stateAfterLanguage, stateAfterExtLang, stateAfterScript, stateAfterRegion, stateInVariant:
			err = run.handleLangtagSubtag(i, subtag)
		}
		if err != nil {
			return run.fail(i, err)
		}
	}

	last := len(run.subtags) - 1
	// A singleton as the last subtag, e.g. "en-a" or "en-a-bb-c".
	if run.extensionExpected {
		return run.fail(last, ErrEmptyExtension)
	}
	if run.state == stateInPrivateUse && len(run.tag.privateuse) == 0 {
		return run.fail(last, ErrEmptyPrivateUse)
	}
	return nil
}

// handleLangtagSubtag dispatches parsing for a subtag that is part of the main langtag.
func (run *parseRun) handleLangtagSubtag(i int, subtag string) error {
	if i == 0 {
		if strings.EqualFold(subtag, "x") {
			run.state = stateInPrivateUse
			return nil
		}
		return run.handlePrimaryLanguage(subtag)
	}
	if len(subtag) == 1 {
		return run.handleSingleton(subtag)
	}

	// Attempt to parse the subtag in the order defined by the RFC:
	// extlang -> script -> region -> variant
	if run.tryParseAsExtlang(subtag) {
		run.state = stateAfterExtLang
		return nil
	}
	if run.state == stateAfterExtLang && run.tag.extlang != "" &&
		len(subtag) == extlangLen && isAlphabetic(subtag) {
		return ErrTooManyExtlangs
	}
	if run.tryParseAsScript(subtag) {
		run.state = stateAfterScript
		return nil
	}
	if run.tryParseAsRegion(subtag) {
		run.state = stateAfterRegion
		return nil
	}
	if parsed, err := run.tryParseAsVariant(subtag); parsed || err != nil {
		if parsed {
			run.state = stateInVariant
		}
		return err
	}

	return ErrInvalidSubtag
}

// handlePrimaryLanguage handles the parsing and validation of the first subtag.
func (run *parseRun) handlePrimaryLanguage(subtag string) error {
	if len(subtag) < minLanguageLen || !isAlphanumeric(subtag) {
		return ErrInvalidLanguage
	}
	run.tag.language = strings.ToLower(subtag)
	run.state = stateAfterExtLang
	if len(subtag) <= shortPrimaryLangLen {
		run.state = stateAfterLanguage
	}
	return nil
}

// tryParseAsExtlang attempts to parse the subtag as an extended language.
func (run *parseRun) tryParseAsExtlang(subtag string) bool {
	if run.state != stateAfterLanguage || len(subtag) != extlangLen || !isAlphabetic(subtag) {
		return false
	}
	run.tag.extlang = strings.ToLower(subtag)
	return true
}

// tryParseAsScript attempts to parse the subtag as a script.
func (run *parseRun) tryParseAsScript(subtag string) bool {
	if run.state > stateAfterExtLang || len(subtag) != scriptLen || !isAlphabetic(subtag) {
		return false
	}
	run.tag.script = titleCase(subtag)
	return true
}

// tryParseAsRegion attempts to parse the subtag as a region.
func (run *parseRun) tryParseAsRegion(subtag string) bool {
	isRegionFmt := (len(subtag) == regionAlphaLen && isAlphabetic(subtag)) ||
		(len(subtag) == regionNumericLen && isNumeric(subtag))
	if run.state > stateAfterScript || !isRegionFmt {
		return false
	}
	run.tag.region = strings.ToUpper(subtag)
	return true
}

// tryParseAsVariant attempts to parse the subtag as a variant.
func (run *parseRun) tryParseAsVariant(subtag string) (bool, error) {
	longForm := len(subtag) >= minVariantLenAlpha
	digitForm := len(subtag) == minVariantLenDigit && isDigit(subtag[0])
	if run.state > stateInVariant || !(longForm || digitForm) {
		return false, nil
	}

	lower := strings.ToLower(subtag)
	if run.seenVariants == nil {
		run.seenVariants = make(map[string]struct{})
	}
	if _, seen := run.seenVariants[lower]; seen {
		return false, ErrDuplicateVariant
	}
	run.seenVariants[lower] = struct{}{}
	run.tag.variants = append(run.tag.variants, lower)
	return true, nil
}

// handleExtensionSubtag parses a subtag that is part of an extension sequence.
func (run *parseRun) handleExtensionSubtag(subtag string) error {
	if len(subtag) == 1 {
		return run.handleSingleton(subtag)
	}
	if len(subtag) < minExtensionLen {
		return ErrInvalidSubtag
	}
	lastExt := &run.tag.extensions[len(run.tag.extensions)-1]
	if lastExt.Value == "" {
		lastExt.Value = strings.ToLower(subtag)
	} else {
		lastExt.Value += "-" + strings.ToLower(subtag)
	}
	run.extensionExpected = false
	return nil
}

// handleSingleton handles a single-character subtag, which starts an
// extension or a private-use sequence.
func (run *parseRun) handleSingleton(subtag string) error {
	if run.extensionExpected {
		return ErrEmptyExtension
	}
	s := unicode.ToLower(rune(subtag[0]))
	if s == 'x' {
		run.state = stateInPrivateUse
		return nil
	}
	if run.seenSingletons == nil {
		run.seenSingletons = make(map[rune]struct{})
	}
	if _, ok := run.seenSingletons[s]; ok {
		return ErrDuplicateSingleton
	}
	run.seenSingletons[s] = struct{}{}
	run.state = stateInExtension
	run.extensionExpected = true
	run.tag.extensions = append(run.tag.extensions, Extension{Singleton: s})
	return nil
}
