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

// Package registry builds the immutable lookup index over a langtags
// snapshot: the curated list of equivalence classes that map every known
// form of a language tag to one canonical, maximally specific tag.
//
// Two source formats are understood. langtags.json carries a few header
// objects (version, conformance sets, global and phonetic variants)
// followed by one tagset object per class. langtags.txt carries one class
// per line, its tags separated by '=' and starred when locale data exists.
package registry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnknownFormat is returned by Read for a file name it cannot map to a
// source format.
var ErrUnknownFormat = errors.New("unknown langtags source format")

// Header holds the metadata objects found at the start of langtags.json.
type Header struct {
	Version          string   `json:"version,omitempty" yaml:"version,omitempty"`
	Date             string   `json:"date,omitempty" yaml:"date,omitempty"`
	Scripts          []string `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	Regions          []string `json:"regions,omitempty" yaml:"regions,omitempty"`
	GlobalVariants   []string `json:"globalVariants,omitempty" yaml:"globalVariants,omitempty"`
	PhoneticVariants []string `json:"phoneticVariants,omitempty" yaml:"phoneticVariants,omitempty"`
}

// Record is one equivalence class as published. Tags are kept as strings;
// Build parses them.
type Record struct {
	Full       string   `json:"full"`
	Tag        string   `json:"tag"`
	Tags       []string `json:"tags,omitempty"`
	Regions    []string `json:"regions,omitempty"`
	Variants   []string `json:"variants,omitempty"`
	SLDR       bool     `json:"sldr"`
	Name       string   `json:"name,omitempty"`
	Names      []string `json:"names,omitempty"`
	LocalName  string   `json:"localname,omitempty"`
	ISO639     string   `json:"iso639_3,omitempty"`
	Windows    string   `json:"windows,omitempty"`
	NoPhonVars bool     `json:"nophonvars,omitempty"`
	Obsolete   bool     `json:"obsolete,omitempty"`
}

// Source is a registry snapshot document loaded wholesale.
type Source struct {
	Header  Header
	Records []Record
}

// header objects are recognised by their "tag" member.
const (
	headerVersion     = "_version"
	headerConformance = "_conformance"
	headerGlobalVar   = "_globalvar"
	headerPhonVar     = "_phonvar"
)

type rawHeader struct {
	Tag      string   `json:"tag"`
	API      string   `json:"api"`
	Date     string   `json:"date"`
	Scripts  []string `json:"scripts"`
	Regions  []string `json:"regions"`
	Variants []string `json:"variants"`
}

// ReadJSON decodes a langtags.json document. Header objects are consumed
// until the first object whose tag does not start with '_'; every remaining
// object must be a tagset.
func ReadJSON(r io.Reader) (*Source, error) {
	var values []json.RawMessage
	if err := json.NewDecoder(r).Decode(&values); err != nil {
		return nil, fmt.Errorf("decoding langtags.json: %w", err)
	}

	src := &Source{}
	start := 0
	for ; start < len(values); start++ {
		var h rawHeader
		if err := json.Unmarshal(values[start], &h); err != nil || !strings.HasPrefix(h.Tag, "_") {
			break
		}
		src.Header.apply(h)
	}

	src.Records = make([]Record, 0, len(values)-start)
	for i, raw := range values[start:] {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding langtags.json tagset %d: %w", start+i, err)
		}
		src.Records = append(src.Records, rec)
	}
	return src, nil
}

func (h *Header) apply(raw rawHeader) {
	switch raw.Tag {
	case headerVersion:
		h.Version, h.Date = raw.API, raw.Date
	case headerConformance:
		h.Scripts = append(h.Scripts, raw.Scripts...)
		h.Regions = append(h.Regions, raw.Regions...)
	case headerGlobalVar:
		h.GlobalVariants = raw.Variants
	case headerPhonVar:
		h.PhoneticVariants = raw.Variants
	}
}

// ReadText decodes a langtags.txt document. Each non-blank line is one
// class: its tags are ordered from least to most specific, the first one
// becoming the short tag and the last one the canonical tag. A '*' anywhere
// on the line marks the class as having locale data.
func ReadText(r io.Reader) (*Source, error) {
	src := &Source{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		rec, err := parseTextLine(string(text))
		if err != nil {
			return nil, fmt.Errorf("langtags.txt line %d: %w", line, err)
		}
		src.Records = append(src.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading langtags.txt: %w", err)
	}
	return src, nil
}

func parseTextLine(line string) (Record, error) {
	var tags []string
	for field := range strings.SplitSeq(line, "=") {
		tag := strings.Trim(field, " \t*")
		if tag == "" {
			return Record{}, fmt.Errorf("empty tag in %q", line)
		}
		tags = append(tags, tag)
	}
	slices.SortFunc(tags, bySpecificity)
	tags = slices.Compact(tags)

	rec := Record{
		Tag:  tags[0],
		Full: tags[len(tags)-1],
		SLDR: strings.Contains(line, "*"),
	}
	if len(tags) > 2 {
		rec.Tags = tags[1 : len(tags)-1]
	}
	return rec, nil
}

// bySpecificity orders tags by subtag count, then lexically.
func bySpecificity(a, b string) int {
	if na, nb := strings.Count(a, "-"), strings.Count(b, "-"); na != nb {
		return na - nb
	}
	return strings.Compare(a, b)
}

// Read decodes a source document, picking the format from the extension
// of name (".json" or ".txt").
func Read(name string, r io.Reader) (*Source, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return ReadJSON(r)
	case ".txt":
		return ReadText(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}
