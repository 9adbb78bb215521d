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
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"
)

//nolint:gochecknoglobals // p is a global parser instance, initialized once by TestMain to speed up tests.
var p *Parser

func TestMain(m *testing.M) {
	f, err := os.Open("testdata/language-subtag-registry")
	if err == nil {
		p, err = NewParserFromRegistry(f)
		f.Close()
	}
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		logger.Error("FATAL: Failed to create new parser for tests", "error", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// mustParse is a test helper that parses and normalizes a tag with the
// registry-backed parser and fails the test if an error occurs.
func mustParse(t *testing.T, tag string) LanguageTag {
	t.Helper()
	lt, err := p.Parse(tag)
	if err != nil {
		t.Fatalf("mustParse failed for tag '%s': %v", tag, err)
	}
	return lt
}

// TestLanguageTag_Accessors checks every component accessor on a fully
// populated tag.
func TestLanguageTag_Accessors(t *testing.T) {
	lt := mustParse(t, "zh-yue-Hant-HK-fonipa-u-co-pinyin-x-private")

	if got := lt.Language(); got != "zh" {
		t.Errorf("Language() = %q, want %q", got, "zh")
	}
	if got, ok := lt.ExtendedLanguage(); !ok || got != "yue" {
		t.Errorf("ExtendedLanguage() = %q, %v, want %q, true", got, ok, "yue")
	}
	if got := lt.FullLanguage(); got != "zh-yue" {
		t.Errorf("FullLanguage() = %q, want %q", got, "zh-yue")
	}
	if got, ok := lt.Script(); !ok || got != "Hant" {
		t.Errorf("Script() = %q, %v, want %q, true", got, ok, "Hant")
	}
	if got, ok := lt.Region(); !ok || got != "HK" {
		t.Errorf("Region() = %q, %v, want %q, true", got, ok, "HK")
	}
	if got := lt.Variants(); !reflect.DeepEqual(got, []string{"fonipa"}) {
		t.Errorf("Variants() = %v, want [fonipa]", got)
	}
	if !lt.HasVariants() {
		t.Error("HasVariants() = false, want true")
	}
	wantExt := []Extension{{Singleton: 'u', Value: "co-pinyin"}}
	if got := lt.Extensions(); !reflect.DeepEqual(got, wantExt) {
		t.Errorf("Extensions() = %v, want %v", got, wantExt)
	}
	if got, ok := lt.PrivateUse(); !ok || got != "private" {
		t.Errorf("PrivateUse() = %q, %v, want %q, true", got, ok, "private")
	}
	if lt.IsGrandfathered() {
		t.Error("IsGrandfathered() = true, want false")
	}
	if lt.IsZero() {
		t.Error("IsZero() = true, want false")
	}
}

func TestLanguageTag_AbsentComponents(t *testing.T) {
	lt := mustParse(t, "en")

	if _, ok := lt.ExtendedLanguage(); ok {
		t.Error("ExtendedLanguage() ok = true, want false")
	}
	if _, ok := lt.Script(); ok {
		t.Error("Script() ok = true, want false")
	}
	if _, ok := lt.Region(); ok {
		t.Error("Region() ok = true, want false")
	}
	if lt.Variants() != nil || lt.HasVariants() {
		t.Errorf("Variants() = %v, want nil", lt.Variants())
	}
	if lt.Extensions() != nil {
		t.Errorf("Extensions() = %v, want nil", lt.Extensions())
	}
	if _, ok := lt.PrivateUse(); ok {
		t.Error("PrivateUse() ok = true, want false")
	}
	if !(LanguageTag{}).IsZero() {
		t.Error("zero LanguageTag IsZero() = false, want true")
	}
}

// TestLanguageTag_Immutable ensures the slices returned by accessors are
// copies and that builders never alias the receiver.
func TestLanguageTag_Immutable(t *testing.T) {
	lt := mustParse(t, "sl-rozaj-biske")

	variants := lt.Variants()
	variants[0] = "mutated"
	if got := lt.String(); got != "sl-rozaj-biske" {
		t.Errorf("String() after mutating Variants() = %q, want %q", got, "sl-rozaj-biske")
	}

	_ = lt.WithVariant("1994")
	if got := lt.String(); got != "sl-rozaj-biske" {
		t.Errorf("String() after WithVariant() = %q, want %q", got, "sl-rozaj-biske")
	}
}

func TestLanguageTag_Builders(t *testing.T) {
	tests := []struct {
		name  string
		build func(LanguageTag) LanguageTag
		tag   string
		want  string
	}{
		{
			name:  "Base drops variants, extensions and private use",
			build: LanguageTag.Base,
			tag:   "sl-Latn-IT-rozaj-u-co-phonebk-x-foo",
			want:  "sl-Latn-IT",
		},
		{
			name:  "WithoutRegion",
			build: LanguageTag.WithoutRegion,
			tag:   "en-Latn-US",
			want:  "en-Latn",
		},
		{
			name:  "WithoutScript",
			build: LanguageTag.WithoutScript,
			tag:   "en-Latn-US",
			want:  "en-US",
		},
		{
			name:  "WithoutVariants",
			build: LanguageTag.WithoutVariants,
			tag:   "sl-IT-rozaj-biske",
			want:  "sl-IT",
		},
		{
			name:  "WithoutExtensions drops private use too",
			build: LanguageTag.WithoutExtensions,
			tag:   "en-US-u-ca-gregory-x-foo",
			want:  "en-US",
		},
		{
			name:  "WithoutPrivateUse keeps extensions",
			build: LanguageTag.WithoutPrivateUse,
			tag:   "en-US-u-ca-gregory-x-foo",
			want:  "en-US-u-ca-gregory",
		},
		{
			name:  "WithRegion folds case",
			build: func(lt LanguageTag) LanguageTag { return lt.WithRegion("gb") },
			tag:   "en-Latn-US",
			want:  "en-Latn-GB",
		},
		{
			name:  "WithLanguage drops the extlang",
			build: func(lt LanguageTag) LanguageTag { return lt.WithLanguage("YUE") },
			tag:   "zh-yue-HK",
			want:  "yue-HK",
		},
		{
			name:  "WithVariant appends",
			build: func(lt LanguageTag) LanguageTag { return lt.WithVariant("FONIPA") },
			tag:   "en-US",
			want:  "en-US-fonipa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build(mustParse(t, tt.tag)).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLanguageTag_EqualAndCompare(t *testing.T) {
	a := mustParse(t, "EN_latn_us")
	b := mustParse(t, "en-Latn-US")
	c := mustParse(t, "en-Latn-GB")

	if !a.Equal(b) {
		t.Errorf("%v.Equal(%v) = false, want true", a, b)
	}
	if a.Equal(c) {
		t.Errorf("%v.Equal(%v) = true, want false", a, c)
	}
	if got := Compare(a, b); got != 0 {
		t.Errorf("Compare(%v, %v) = %d, want 0", a, b, got)
	}
	if got := Compare(c, a); got >= 0 {
		t.Errorf("Compare(%v, %v) = %d, want < 0", c, a, got)
	}
	if got := Compare(a, c); got <= 0 {
		t.Errorf("Compare(%v, %v) = %d, want > 0", a, c, got)
	}
}

// TestParser_Normalize checks variant precedence with and without an IANA
// registry and the ordering of extensions.
func TestParser_Normalize(t *testing.T) {
	tests := []struct {
		name   string
		parser *Parser
		tag    string
		want   string
	}{
		{
			name:   "registry prefix chain orders variants",
			parser: p,
			tag:    "sl-1994-biske-rozaj",
			want:   "sl-rozaj-biske-1994",
		},
		{
			name:   "prefixed variant before unprefixed one",
			parser: p,
			tag:    "en-fonipa-scotland",
			want:   "en-scotland-fonipa",
		},
		{
			name:   "lexical order without registry",
			parser: NewParser(),
			tag:    "en-scotland-fonipa",
			want:   "en-fonipa-scotland",
		},
		{
			name:   "extensions sorted by singleton",
			parser: p,
			tag:    "en-t-abc-a-def",
			want:   "en-a-def-t-abc",
		},
		{
			name:   "case folding",
			parser: p,
			tag:    "SR_cyrl_rs",
			want:   "sr-Cyrl-RS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt, err := tt.parser.Parse(tt.tag)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.tag, err)
			}
			if got := lt.String(); got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.tag, got, tt.want)
			}
			if again := tt.parser.Normalize(lt); !again.Equal(lt) {
				t.Errorf("Normalize(%q) = %q, not idempotent", lt, again)
			}
		})
	}
}

func TestParser_ParseGrandfathered(t *testing.T) {
	tests := []struct {
		tag               string
		want              string
		wantGrandfathered bool
	}{
		{tag: "i-klingon", want: "tlh"},
		{tag: "zh-min-nan", want: "nan"},
		{tag: "I-DEFAULT", want: "i-default", wantGrandfathered: true},
		{tag: "en-GB-oed", want: "en-GB-oxendict"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			lt := mustParse(t, tt.tag)
			if got := lt.String(); got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.tag, got, tt.want)
			}
			if got := lt.IsGrandfathered(); got != tt.wantGrandfathered {
				t.Errorf("IsGrandfathered() = %v, want %v", got, tt.wantGrandfathered)
			}
		})
	}
}

func TestParser_ParsePrivateUseOnly(t *testing.T) {
	for _, tag := range []string{"x-private", "X-Whatever-Else"} {
		_, err := p.Parse(tag)
		if !errors.Is(err, ErrMissingLanguage) {
			t.Errorf("Parse(%q) error = %v, want %v", tag, err, ErrMissingLanguage)
		}
		if !errors.Is(err, ErrMalformedTag) {
			t.Errorf("Parse(%q) error = %v, want a malformed tag error", tag, err)
		}
	}

	// The syntax-only parser still accepts the privateuse production.
	if _, err := Parse("x-private"); err != nil {
		t.Errorf("package Parse(%q) error = %v", "x-private", err)
	}
}

func TestParser_Macrolanguage(t *testing.T) {
	tests := []struct {
		name   string
		parser *Parser
		lang   string
		want   string
		wantOK bool
	}{
		{name: "member language", parser: p, lang: "cmn", want: "zh", wantOK: true},
		{name: "case insensitive", parser: p, lang: "YUE", want: "zh", wantOK: true},
		{name: "not a member", parser: p, lang: "en"},
		{name: "unknown language", parser: p, lang: "xx"},
		{name: "no registry", parser: NewParser(), lang: "cmn"},
		{name: "nil parser", parser: nil, lang: "cmn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.parser.Macrolanguage(tt.lang)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Macrolanguage(%q) = %q, %v, want %q, %v", tt.lang, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewParserFromRegistry_Error(t *testing.T) {
	if _, err := NewParserFromRegistry(errorReader{}); err == nil {
		t.Error("NewParserFromRegistry() error = nil, want error")
	}
}

func TestLanguageTag_MarshalJSON(t *testing.T) {
	type payload struct {
		Tag LanguageTag `json:"tag"`
	}
	got, err := json.Marshal(payload{Tag: mustParse(t, "en-us")})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if want := `{"tag":"en-US"}`; string(got) != want {
		t.Errorf("json.Marshal() = %s, want %s", got, want)
	}
}

func TestLanguageTag_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr error
	}{
		{name: "valid tag", data: `"EN_us"`, want: "en-US"},
		{name: "empty string is the zero tag", data: `""`, want: ""},
		{name: "malformed tag", data: `"e"`, wantErr: ErrMalformedTag},
		{name: "not a string", data: `12`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lt LanguageTag
			err := json.Unmarshal([]byte(tt.data), &lt)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("UnmarshalJSON() error = %v, want %v", err, tt.wantErr)
				}
			case tt.want == "" && tt.data != `""`:
				if err == nil {
					t.Error("UnmarshalJSON() error = nil, want error")
				}
			default:
				if err != nil {
					t.Fatalf("UnmarshalJSON() error = %v", err)
				}
				if got := lt.String(); got != tt.want {
					t.Errorf("UnmarshalJSON() = %q, want %q", got, tt.want)
				}
			}
		})
	}
}
