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

package store

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// SILNamespace is the namespace of the SIL extensions to LDML.
const SILNamespace = "urn://www.sil.org/ldml/0.1"

var (
	// ErrMalformed reports a document that is not well-formed XML.
	ErrMalformed = errors.New("malformed LDML document")
	// ErrNoIdentity reports a document without a sil:identity element.
	ErrNoIdentity = errors.New("sil:identity element not found")
	// ErrInvalidUID reports a unique id that is neither a positive 32-bit
	// integer nor "unknown".
	ErrInvalidUID = errors.New("invalid unique id")
)

// ParseUID parses a document unique id: a positive 32-bit integer, or
// "unknown" for a random one.
func ParseUID(s string) (uint32, error) {
	if strings.EqualFold(s, "unknown") {
		return rand.Uint32N(^uint32(0)) + 1, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUID, s)
	}
	return uint32(n), nil
}

// Customize returns data reduced to the top level elements named in
// include, identity always kept, and with uid stamped on its sil:identity
// element. An empty include keeps every element and a zero uid leaves the
// identity alone. The result is re-indented.
func Customize(data []byte, include []string, uid uint32) ([]byte, error) {
	doc, err := parseLDML(data)
	if err != nil {
		return nil, err
	}
	return customize(doc, include, uid)
}

func parseLDML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.Root() == nil {
		return nil, ErrMalformed
	}
	return doc, nil
}

func customize(doc *etree.Document, include []string, uid uint32) ([]byte, error) {
	if len(include) > 0 {
		subset(doc.Root(), include)
	}
	if uid != 0 {
		ident := silIdentity(doc)
		if ident == nil {
			return nil, ErrNoIdentity
		}
		ident.CreateAttr("uid", strconv.FormatUint(uint64(uid), 10))
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

// subset drops the children of root not named in include.
func subset(root *etree.Element, include []string) {
	for _, child := range root.ChildElements() {
		if child.Tag == "identity" || slices.Contains(include, child.Tag) {
			continue
		}
		root.RemoveChild(child)
	}
}

// silIdentity returns the first identity element in the SIL namespace,
// in document order. An undeclared sil prefix is accepted as well.
func silIdentity(doc *etree.Document) *etree.Element {
	return findIdentity(doc.Root())
}

func findIdentity(e *etree.Element) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == "identity" && (c.Space == "sil" || c.NamespaceURI() == SILNamespace) {
			return c
		}
		if found := findIdentity(c); found != nil {
			return found
		}
	}
	return nil
}

// revid returns the revid attribute of the sil:identity element.
func revid(doc *etree.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	ident := silIdentity(doc)
	if ident == nil {
		return "", false
	}
	for _, a := range ident.Attr {
		if a.Space == "" && a.Key == "revid" {
			return a.Value, a.Value != ""
		}
	}
	return "", false
}
