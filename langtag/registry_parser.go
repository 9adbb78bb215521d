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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	recordSeparator   = "%%"
	rangeSeparator    = ".."
	maxRangeExpansion = 40000
)

// Errors reported while reading a subtag registry file.
var (
	ErrEmptyRegistry = errors.New("subtag registry contains no record")
	ErrInvalidRange  = errors.New("invalid subtag range")
)

// recordJar accumulates the fields of the record being read. Field names are
// folded to lower case; a field may repeat (Description, Prefix, Comments).
type recordJar struct {
	registry *Registry
	fields   map[string][]string
	last     string
	header   bool
}

// ParseRegistry reads an IANA Language Subtag Registry file (the record-jar
// format of RFC 5646 section 3.1) and returns the parsed Registry. Ranges
// such as "qaa..qtz" are expanded into one record per subtag and variant
// precedence is computed before returning.
func ParseRegistry(r io.Reader) (*Registry, error) {
	jar := &recordJar{
		registry: &Registry{Records: make(map[string]Record)},
		fields:   make(map[string][]string),
		header:   true,
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if err := jar.feed(scanner.Text()); err != nil {
			return nil, fmt.Errorf("subtag registry line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading subtag registry: %w", err)
	}
	if err := jar.flush(); err != nil {
		return nil, fmt.Errorf("subtag registry line %d: %w", line, err)
	}
	if len(jar.registry.Records) == 0 {
		return nil, ErrEmptyRegistry
	}

	jar.registry.indexVariants()
	return jar.registry, nil
}

// feed consumes one line of the file.
func (j *recordJar) feed(line string) error {
	if line == recordSeparator {
		j.header = false
		return j.flush()
	}

	// Continuation lines fold into the previous field body.
	if line != "" && (line[0] == ' ' || line[0] == '\t') {
		if values := j.fields[j.last]; len(values) > 0 {
			values[len(values)-1] += " " + strings.TrimSpace(line)
		}
		return nil
	}

	name, body, ok := strings.Cut(line, ":")
	if !ok {
		return nil
	}
	name = strings.ToLower(strings.TrimSpace(name))
	body = strings.TrimSpace(body)

	if j.header {
		if name == "file-date" {
			j.registry.FileDate = body
		}
		return nil
	}
	j.fields[name] = append(j.fields[name], body)
	j.last = name
	return nil
}

// flush turns the accumulated fields into records and resets the jar.
func (j *recordJar) flush() error {
	defer func() {
		j.fields = make(map[string][]string)
		j.last = ""
	}()
	if len(j.fields) == 0 {
		return nil
	}

	rec := j.record()
	switch {
	case rec.Subtag != "":
		subtags, err := expandRange(rec.Subtag)
		if err != nil {
			return err
		}
		for _, s := range subtags {
			r := rec
			r.Subtag = s
			j.registry.Records[rec.Type+":"+strings.ToLower(s)] = r
		}
	case rec.Tag != "":
		j.registry.Records[strings.ToLower(rec.Tag)] = rec
	}
	return nil
}

func (j *recordJar) record() Record {
	first := func(name string) string {
		if values := j.fields[name]; len(values) > 0 {
			return values[0]
		}
		return ""
	}
	return Record{
		Type:           first("type"),
		Subtag:         first("subtag"),
		Tag:            first("tag"),
		Description:    j.fields["description"],
		Added:          first("added"),
		Deprecated:     first("deprecated"),
		PreferredValue: first("preferred-value"),
		Prefix:         j.fields["prefix"],
		SuppressScript: first("suppress-script"),
		Macrolanguage:  first("macrolanguage"),
		Scope:          first("scope"),
		Comments:       j.fields["comments"],
	}
}

// expandRange expands "start..end" into every subtag between both bounds
// inclusive. A subtag without a range expands to itself. Both bounds must
// have the same length and be either all letters or all digits.
func expandRange(bounds string) ([]string, error) {
	start, end, ok := strings.Cut(bounds, rangeSeparator)
	if !ok {
		return []string{bounds}, nil
	}
	start, end = strings.ToLower(start), strings.ToLower(end)

	switch {
	case start == "" || len(start) != len(end):
		return nil, fmt.Errorf("%w %q: bounds differ in length", ErrInvalidRange, bounds)
	case !(isAlphabetic(start) && isAlphabetic(end)) && !(isNumeric(start) && isNumeric(end)):
		return nil, fmt.Errorf("%w %q: bounds mix letters and digits", ErrInvalidRange, bounds)
	case start > end:
		return nil, fmt.Errorf("%w %q: start is after end", ErrInvalidRange, bounds)
	}

	lo, hi := byte('a'), byte('z')
	if isDigit(start[0]) {
		lo, hi = '0', '9'
	}

	cur := []byte(start)
	out := []string{start}
	for string(cur) != end {
		if len(out) >= maxRangeExpansion {
			return nil, fmt.Errorf("%w %q: too large to expand", ErrInvalidRange, bounds)
		}
		for i := len(cur) - 1; i >= 0; i-- {
			if cur[i] < hi {
				cur[i]++
				break
			}
			cur[i] = lo
		}
		out = append(out, string(cur))
	}
	return out, nil
}
