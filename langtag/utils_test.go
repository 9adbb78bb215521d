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

import "testing"

// Test_byteClasses verifies the ALPHA and DIGIT classes of RFC 5646, Section 2.1.
func Test_byteClasses(t *testing.T) {
	tests := []struct {
		b                   byte
		alpha, digit, alnum bool
	}{
		{b: 'a', alpha: true, alnum: true},
		{b: 'Z', alpha: true, alnum: true},
		{b: '0', digit: true, alnum: true},
		{b: '9', digit: true, alnum: true},
		{b: '-'},
		{b: '_'},
		{b: '@'},
		{b: '['},
		{b: '`'},
		{b: '{'},
		{b: ' '},
	}

	for _, tt := range tests {
		t.Run(string(tt.b), func(t *testing.T) {
			if got := isAlpha(tt.b); got != tt.alpha {
				t.Errorf("isAlpha(%q) = %v, want %v", tt.b, got, tt.alpha)
			}
			if got := isDigit(tt.b); got != tt.digit {
				t.Errorf("isDigit(%q) = %v, want %v", tt.b, got, tt.digit)
			}
			if got := isAlphanum(tt.b); got != tt.alnum {
				t.Errorf("isAlphanum(%q) = %v, want %v", tt.b, got, tt.alnum)
			}
		})
	}
}

func Test_stringClasses(t *testing.T) {
	tests := []struct {
		s                                 string
		alphabetic, numeric, alphanumeric bool
	}{
		{s: "Latn", alphabetic: true, alphanumeric: true},
		{s: "419", numeric: true, alphanumeric: true},
		{s: "1994", numeric: true, alphanumeric: true},
		{s: "1abc", alphanumeric: true},
		{s: ""},
		{s: "en-US"},
		{s: "é"},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			if got := isAlphabetic(tt.s); got != tt.alphabetic {
				t.Errorf("isAlphabetic(%q) = %v, want %v", tt.s, got, tt.alphabetic)
			}
			if got := isNumeric(tt.s); got != tt.numeric {
				t.Errorf("isNumeric(%q) = %v, want %v", tt.s, got, tt.numeric)
			}
			if got := isAlphanumeric(tt.s); got != tt.alphanumeric {
				t.Errorf("isAlphanumeric(%q) = %v, want %v", tt.s, got, tt.alphanumeric)
			}
		})
	}
}

func Test_titleCase(t *testing.T) {
	tests := map[string]string{
		"":     "",
		"latn": "Latn",
		"LATN": "Latn",
		"hANS": "Hans",
		"q":    "Q",
	}
	for in, want := range tests {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
