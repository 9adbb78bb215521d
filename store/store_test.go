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

package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/jplu/langtags/langtag"
	"github.com/jplu/langtags/registry"
	"github.com/jplu/langtags/store"
)

const ldml = `<?xml version="1.0" encoding="utf-8"?>
<ldml><identity><special><sil:identity revid="4b1b4e0c" source="cldr"/></special></identity></ldml>
`

func buildIndex(t *testing.T) *registry.Index {
	t.Helper()
	idx, err := registry.Build(&registry.Source{Records: []registry.Record{
		{Full: "en-Latn-US", Tag: "en", Tags: []string{"en-Latn", "en-US"}, SLDR: true},
		{Full: "zh-Hans-CN", Tag: "zh", Tags: []string{"cmn", "zh-CN"}, SLDR: true},
		{Full: "en-Dsrt-US", Tag: "en-Dsrt"},
		{Full: "pt-Latn-BR", Tag: "pt", Tags: []string{"pt-BR"}, SLDR: true},
	}})
	require.NoError(t, err)
	return idx
}

func entry(t *testing.T, idx *registry.Index, tag string) *registry.Entry {
	t.Helper()
	m := idx.Lookup(tag)
	require.Len(t, m, 1, tag)
	return m[0]
}

func newBucket(t *testing.T, files map[string]string) *blob.Bucket {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	for key, data := range files {
		require.NoError(t, bucket.WriteAll(context.Background(), key, []byte(data), nil))
	}
	return bucket
}

func TestKey(t *testing.T) {
	assert.Equal(t, "e/en_Latn_US.xml", store.Key(langtag.MustParse("en-Latn-US"), langtag.MustParse("en-Latn-US")))
	assert.Equal(t, "z/cmn_CN.xml", store.Key(langtag.MustParse("zh-Hans-CN"), langtag.MustParse("cmn-CN")))
}

func TestCandidates(t *testing.T) {
	idx := buildIndex(t)
	assert.Equal(t,
		[]string{"e/en_Latn_US.xml", "e/en_US.xml", "e/en_Latn.xml", "e/en.xml"},
		store.Candidates(entry(t, idx, "en")))
	assert.Equal(t,
		[]string{"z/zh_Hans_CN.xml", "z/zh_CN.xml", "z/cmn.xml", "z/zh.xml"},
		store.Candidates(entry(t, idx, "zh")))
}

func TestStore_Open(t *testing.T) {
	idx := buildIndex(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		files   map[string]string
		tag     string
		wantKey string
	}{
		{
			name:    "canonical document",
			files:   map[string]string{"e/en_Latn_US.xml": ldml, "e/en.xml": "short"},
			tag:     "en",
			wantKey: "e/en_Latn_US.xml",
		},
		{
			name:    "most specific alias",
			files:   map[string]string{"e/en_US.xml": ldml, "e/en.xml": "short"},
			tag:     "en-US",
			wantKey: "e/en_US.xml",
		},
		{
			name:    "short tag",
			files:   map[string]string{"z/zh.xml": ldml},
			tag:     "cmn",
			wantKey: "z/zh.xml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.New(newBucket(t, tt.files), "mem://")
			defer s.Close()

			doc, err := s.Open(ctx, entry(t, idx, tt.tag))
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, doc.Key)
			assert.Equal(t, tt.files[tt.wantKey], string(doc.Data))
			assert.Equal(t, int64(len(doc.Data)), doc.Size)
			assert.NotEmpty(t, doc.ETag)
			assert.Equal(t, entry(t, idx, tt.tag).Canonical, doc.Tag)
		})
	}
}

func TestStore_OpenETag(t *testing.T) {
	idx := buildIndex(t)
	s := store.New(newBucket(t, map[string]string{
		"e/en_Latn_US.xml": ldml,
		"p/pt_Latn_BR.xml": "<ldml/>",
	}), "mem://")
	defer s.Close()

	doc, err := s.Open(context.Background(), entry(t, idx, "en"))
	require.NoError(t, err)
	assert.Equal(t, `"4b1b4e0c"`, doc.ETag)

	doc, err = s.Open(context.Background(), entry(t, idx, "pt"))
	require.NoError(t, err)
	assert.NotEqual(t, `"4b1b4e0c"`, doc.ETag)
	assert.NotEmpty(t, doc.ETag)
}

func TestStore_OpenSplit(t *testing.T) {
	idx := buildIndex(t)
	ctx := context.Background()
	files := map[string]string{
		"flat/e/en_Latn_US.xml":   ldml,
		"unflat/e/en_Latn_US.xml": "<ldml/>",
	}

	s := store.New(newBucket(t, files), "mem://", store.WithSplit(true))
	defer s.Close()
	assert.True(t, s.Split())

	doc, err := s.Open(ctx, entry(t, idx, "en"))
	require.NoError(t, err)
	assert.Equal(t, "flat/e/en_Latn_US.xml", doc.Key)
	assert.Equal(t, ldml, string(doc.Data))
	assert.False(t, doc.Unflat)

	doc, err = s.Open(ctx, entry(t, idx, "en"), store.Unflat())
	require.NoError(t, err)
	assert.Equal(t, "unflat/e/en_Latn_US.xml", doc.Key)
	assert.Equal(t, "<ldml/>", string(doc.Data))
	assert.True(t, doc.Unflat)

	_, err = s.Open(ctx, entry(t, idx, "zh"), store.Unflat())
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unflat/z/zh_Hans_CN.xml", se.Key)

	plain := store.New(newBucket(t, files), "mem://")
	defer plain.Close()
	_, err = plain.Open(ctx, entry(t, idx, "en"), store.Unflat())
	assert.ErrorIs(t, err, store.ErrNoUnflat)
	_, err = plain.Open(ctx, entry(t, idx, "en"))
	assert.ErrorIs(t, err, store.ErrMissing)
}

func TestStore_OpenCustomized(t *testing.T) {
	idx := buildIndex(t)
	ctx := context.Background()
	s := store.New(newBucket(t, map[string]string{
		"e/en_Latn_US.xml": `<ldml><identity><special><sil:identity revid="4b1b4e0c"/></special></identity><layout/><characters/></ldml>`,
		"z/zh_Hans_CN.xml": `<ldml><identity/><layout/></ldml>`,
		"p/pt_Latn_BR.xml": `<ldml <layout/>`,
	}), "mem://")
	defer s.Close()

	doc, err := s.Open(ctx, entry(t, idx, "en"), store.Include("layout"), store.UID(42))
	require.NoError(t, err)
	assert.Equal(t, `W/"4b1b4e0c"`, doc.ETag)
	assert.Contains(t, string(doc.Data), `uid="42"`)
	assert.Contains(t, string(doc.Data), "<layout/>")
	assert.NotContains(t, string(doc.Data), "characters")
	assert.Equal(t, int64(len(doc.Data)), doc.Size)

	doc, err = s.Open(ctx, entry(t, idx, "en"), store.UID(0))
	require.NoError(t, err)
	assert.Equal(t, `"4b1b4e0c"`, doc.ETag)
	assert.NotContains(t, string(doc.Data), "uid=")

	_, err = s.Open(ctx, entry(t, idx, "zh"), store.UID(7))
	assert.ErrorIs(t, err, store.ErrNoIdentity)

	_, err = s.Open(ctx, entry(t, idx, "pt"), store.Include("layout"))
	assert.ErrorIs(t, err, store.ErrMalformed)

	// Served as is when no customization is asked for.
	doc, err = s.Open(ctx, entry(t, idx, "pt"))
	require.NoError(t, err)
	assert.Equal(t, `<ldml <layout/>`, string(doc.Data))
}

func TestStore_OpenErrors(t *testing.T) {
	idx := buildIndex(t)

	t.Run("no data never reads", func(t *testing.T) {
		bucket := newBucket(t, nil)
		s := store.New(bucket, "mem://")
		require.NoError(t, s.Close())

		_, err := s.Open(context.Background(), entry(t, idx, "en-Dsrt"))
		assert.ErrorIs(t, err, store.ErrNoData)
		assert.NotErrorIs(t, err, store.ErrUnavailable)
	})

	t.Run("missing", func(t *testing.T) {
		s := store.New(newBucket(t, map[string]string{"z/zh.xml": ldml}), "mem://")
		defer s.Close()

		_, err := s.Open(context.Background(), entry(t, idx, "en"))
		require.ErrorIs(t, err, store.ErrMissing)
		var se *store.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "en-Latn-US", se.Tag)
		assert.Equal(t, "e/en_Latn_US.xml", se.Key)
	})

	t.Run("canceled", func(t *testing.T) {
		s := store.New(newBucket(t, nil), "mem://")
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Open(ctx, entry(t, idx, "en"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t)

	t.Run("directory", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "e"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "e", "en_US.xml"), []byte(ldml), 0o600))

		s, err := store.Open(ctx, root)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, root, s.Root())

		doc, err := s.Open(ctx, entry(t, idx, "en"))
		require.NoError(t, err)
		assert.Equal(t, "e/en_US.xml", doc.Key)
		assert.False(t, doc.ModTime.IsZero())
	})

	t.Run("url", func(t *testing.T) {
		s, err := store.Open(ctx, "mem://")
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Open(ctx, entry(t, idx, "en"))
		assert.ErrorIs(t, err, store.ErrMissing)
	})

	t.Run("bad root", func(t *testing.T) {
		_, err := store.Open(ctx, filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})
}

func TestStore_Verify(t *testing.T) {
	idx := buildIndex(t)
	s := store.New(newBucket(t, map[string]string{
		"e/en_US.xml": ldml,
		"z/cmn.xml":   ldml,
	}), "mem://")
	defer s.Close()

	for _, workers := range []int{0, 1, 3} {
		got, err := s.Verify(context.Background(), idx, workers)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "pt-Latn-BR", got[0].Entry.Canonical.String())
		assert.ErrorIs(t, got[0].Err, store.ErrMissing)
		assert.Contains(t, got[0].String(), "pt-Latn-BR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Verify(ctx, idx, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_VerifySplit(t *testing.T) {
	idx := buildIndex(t)
	s := store.New(newBucket(t, map[string]string{
		"flat/e/en_US.xml":   ldml,
		"unflat/e/en_US.xml": ldml,
		"flat/z/cmn.xml":     ldml,
		"flat/p/pt.xml":      ldml,
		"unflat/p/pt_BR.xml": ldml,
	}), "mem://", store.WithSplit(true))
	defer s.Close()

	got, err := s.Verify(context.Background(), idx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "zh-Hans-CN", got[0].Entry.Canonical.String())
	assert.ErrorContains(t, got[0].Err, "unflat/z/zh_Hans_CN.xml")
}

func TestError_Error(t *testing.T) {
	err := &store.Error{Tag: "en-Latn-US", Key: "e/en_Latn_US.xml", Err: store.ErrMissing}
	assert.Equal(t, "opening en-Latn-US (e/en_Latn_US.xml): locale data missing from data root", err.Error())

	err = &store.Error{Tag: "en", Err: store.ErrUnavailable, Cause: errors.New("boom")}
	assert.Equal(t, "opening en: data root unavailable: boom", err.Error())
	assert.ErrorIs(t, err, store.ErrUnavailable)
}
