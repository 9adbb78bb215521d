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

// Package store binds registry entries to the LDML documents of a data
// root. The data root is a read-only gocloud.dev blob bucket laid out as
// <first letter of the language>/<tag with '-' replaced by '_'>.xml. A split
// data root holds two such trees, flat/ with inherited data resolved into
// each document and unflat/ without.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // mem:// data roots
	"gocloud.dev/gcerrors"

	"github.com/jplu/langtags/langtag"
	"github.com/jplu/langtags/registry"
)

const extension = ".xml"

var (
	// ErrNoData reports an entry the registry declares has no document.
	ErrNoData = errors.New("no locale data for entry")
	// ErrMissing reports an entry whose document is absent from the data
	// root although the registry declares one.
	ErrMissing = errors.New("locale data missing from data root")
	// ErrUnavailable wraps failures of the data root itself.
	ErrUnavailable = errors.New("data root unavailable")
	// ErrNoUnflat reports a request for unflattened data from a data root
	// that is not split.
	ErrNoUnflat = errors.New("data root holds no unflat tree")
)

// Error describes a failed document lookup.
type Error struct {
	Tag   string
	Key   string
	Err   error
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "opening %s", e.Tag)
	if e.Key != "" {
		fmt.Fprintf(&b, " (%s)", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Document is a locale document read from the data root. Data is owned by
// the caller.
type Document struct {
	Key     string
	Tag     langtag.LanguageTag
	Data    []byte
	ModTime time.Time
	Size    int64
	// ETag is the quoted entity tag of the document: its revision id when
	// it carries one, else the tag of the data root, else a hash of the
	// modification time and size. It is weak for a customized document.
	ETag string
	// Unflat is set for a document read from the unflat tree.
	Unflat bool
}

// Reader returns a reader over the document content.
func (d *Document) Reader() *bytes.Reader {
	return bytes.NewReader(d.Data)
}

// Store is a handle on one data root. It is safe for concurrent use.
type Store struct {
	bucket *blob.Bucket
	root   string
	split  bool
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger of the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSplit declares a data root holding flat and unflat trees.
func WithSplit(split bool) Option {
	return func(s *Store) {
		s.split = split
	}
}

// Open opens the data root at root, either a gocloud.dev blob URL such as
// file:///srv/sldr or mem://, or a plain directory path.
func Open(ctx context.Context, root string, opts ...Option) (*Store, error) {
	var (
		bucket *blob.Bucket
		err    error
	)
	if strings.Contains(root, "://") {
		bucket, err = blob.OpenBucket(ctx, root)
	} else {
		bucket, err = fileblob.OpenBucket(root, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("opening data root %s: %w", root, err)
	}
	return New(bucket, root, opts...), nil
}

// New wraps an open bucket. The store takes ownership of the bucket.
func New(bucket *blob.Bucket, root string, opts ...Option) *Store {
	s := &Store{
		bucket: bucket,
		root:   root,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/jplu/langtags/store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split reports whether the data root holds flat and unflat trees.
func (s *Store) Split() bool {
	return s.split
}

// Root returns the location the store was opened from.
func (s *Store) Root() string {
	return s.root
}

// Close releases the data root.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Key returns the document key of tag, filed under the language of owner.
func Key(owner, tag langtag.LanguageTag) string {
	lang := owner.Language()
	if lang == "" {
		lang = "_"
	}
	return lang[:1] + "/" + strings.ReplaceAll(tag.String(), "-", "_") + extension
}

// Candidates lists the keys tried for e: the canonical tag first, then the
// other tags of the class from most to least specific.
func Candidates(e *registry.Entry) []string {
	keys := make([]string, 0, len(e.Tags))
	for _, t := range slices.Backward(e.Tags) {
		k := Key(e.Canonical, t)
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// OpenOption customizes the document returned by Store.Open.
type OpenOption func(*openOptions)

type openOptions struct {
	unflat  bool
	include []string
	uid     uint32
}

// Unflat reads the document from the unflat tree of a split data root.
func Unflat() OpenOption {
	return func(o *openOptions) {
		o.unflat = true
	}
}

// Include keeps only the named top level elements, and identity.
func Include(elements ...string) OpenOption {
	return func(o *openOptions) {
		o.include = append(o.include, elements...)
	}
}

// UID stamps uid on the sil:identity element. Zero leaves it alone.
func UID(uid uint32) OpenOption {
	return func(o *openOptions) {
		o.uid = uid
	}
}

func (o openOptions) customized() bool {
	return len(o.include) > 0 || o.uid != 0
}

// Open reads the document of e. It never touches the data root for an
// entry without locale data.
func (s *Store) Open(ctx context.Context, e *registry.Entry, opts ...OpenOption) (doc *Document, err error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	tag := e.Canonical.String()
	if !e.HasLocaleData {
		return nil, &Error{Tag: tag, Err: ErrNoData}
	}
	if o.unflat && !s.split {
		return nil, &Error{Tag: tag, Err: ErrNoUnflat}
	}

	ctx, span := s.tracer.Start(ctx, "Open", trace.WithAttributes(
		attribute.String("langtag", tag),
		attribute.Bool("unflat", o.unflat),
	))
	defer func() { endSpan(span, err) }()

	key, attrs, err := s.locate(ctx, e, s.prefix(o.unflat))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("key", key))

	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, &Error{Tag: tag, Key: key, Err: ErrMissing, Cause: err}
		}
		return nil, &Error{Tag: tag, Key: key, Err: ErrUnavailable, Cause: err}
	}

	// A document that does not parse is still served as is, without a
	// revision id, unless it has to be customized.
	tree, parseErr := parseLDML(data)
	doc = &Document{
		Key:     key,
		Tag:     e.Canonical,
		ModTime: attrs.ModTime,
		Unflat:  o.unflat,
		ETag:    etag(tree, attrs),
	}
	if o.customized() {
		if parseErr != nil {
			return nil, &Error{Tag: tag, Key: key, Err: parseErr}
		}
		if data, err = customize(tree, o.include, o.uid); err != nil {
			return nil, &Error{Tag: tag, Key: key, Err: err}
		}
		doc.ETag = "W/" + doc.ETag
	}
	doc.Data = data
	doc.Size = int64(len(data))
	s.logger.DebugContext(ctx, "opened locale document", "tag", tag, "key", key, "size", doc.Size)
	return doc, nil
}

func (s *Store) prefix(unflat bool) string {
	switch {
	case !s.split:
		return ""
	case unflat:
		return "unflat/"
	default:
		return "flat/"
	}
}

// locate returns the first candidate key of e present in the data root.
func (s *Store) locate(ctx context.Context, e *registry.Entry, prefix string) (string, *blob.Attributes, error) {
	tag := e.Canonical.String()
	for _, key := range Candidates(e) {
		key = prefix + key
		attrs, err := s.bucket.Attributes(ctx, key)
		if err == nil {
			return key, attrs, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		if gcerrors.Code(err) != gcerrors.NotFound {
			return "", nil, &Error{Tag: tag, Key: key, Err: ErrUnavailable, Cause: err}
		}
	}
	return "", nil, &Error{Tag: tag, Key: prefix + Key(e.Canonical, e.Canonical), Err: ErrMissing}
}

// etag prefers the revision id recorded in the document identity.
func etag(doc *etree.Document, attrs *blob.Attributes) string {
	if id, ok := revid(doc); ok {
		return `"` + id + `"`
	}
	if attrs.ETag != "" {
		return attrs.ETag
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%d:%d", attrs.ModTime.UnixNano(), attrs.Size)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
