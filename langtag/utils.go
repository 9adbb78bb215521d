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

func isAlpha(b byte) bool    { return (b|0x20) >= 'a' && (b|0x20) <= 'z' }
func isDigit(b byte) bool    { return b >= '0' && b <= '9' }
func isAlphanum(b byte) bool { return isAlpha(b) || isDigit(b) }

// every reports whether s is non-empty and every byte of s satisfies class.
func every(s string, class func(byte) bool) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		if !class(s[i]) {
			return false
		}
	}
	return true
}

func isAlphabetic(s string) bool   { return every(s, isAlpha) }
func isNumeric(s string) bool      { return every(s, isDigit) }
func isAlphanumeric(s string) bool { return every(s, isAlphanum) }

// titleCase returns an ASCII subtag with its first letter upper case and the
// rest lower case, e.g. "Latn".
func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
