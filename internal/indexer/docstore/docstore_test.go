package docstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func ids(summaries []Summary) []string {
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.ID)
	}
	return out
}

func TestPutGetList(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBuilder(nil)
	b.Put("uploads/b.txt", "b.txt", map[string]string{"content": "beta"}, now)
	b.Put("uploads/a.txt", "a.txt", map[string]string{"content": "alpha"}, now.Add(time.Second))
	snap := b.Build()

	assert.Equal(t, []string{"uploads/b.txt", "uploads/a.txt"}, ids(snap.List()))

	doc, err := snap.Get("uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", doc.Filename)
	assert.Equal(t, "alpha", doc.Fields["content"])
	assert.Equal(t, now.Add(time.Second), doc.IndexedAt)

	doc.Fields["content"] = "mutated"
	text, ok := snap.Field("uploads/a.txt", "content")
	require.True(t, ok)
	assert.Equal(t, "alpha", text, "Get must return a copy")
}

func TestGetMissing(t *testing.T) {
	_, err := Empty().Get("nope")
	assert.True(t, errors.Is(err, apperrors.ErrDocumentNotFound))
}

func TestPutOverwritesAndMovesToEnd(t *testing.T) {
	b := NewBuilder(nil)
	b.Put("a", "a", map[string]string{"content": "one"}, time.Time{})
	b.Put("b", "b", map[string]string{"content": "two"}, time.Time{})
	base := b.Build()

	b2 := NewBuilder(base)
	b2.Put("a", "a", map[string]string{"content": "three"}, time.Time{})
	next := b2.Build()

	assert.Equal(t, 2, next.Len())
	assert.Equal(t, []string{"b", "a"}, ids(next.List()))
	text, _ := next.Field("a", "content")
	assert.Equal(t, "three", text)

	old, _ := base.Field("a", "content")
	assert.Equal(t, "one", old)
}

func TestDelete(t *testing.T) {
	b := NewBuilder(nil)
	b.Put("a", "a", nil, time.Time{})
	base := b.Build()

	b2 := NewBuilder(base)
	assert.False(t, b2.Delete("missing"))
	assert.True(t, b2.Delete("a"))
	next := b2.Build()

	assert.Equal(t, 0, next.Len())
	assert.Empty(t, next.List())
	assert.True(t, base.Has("a"))
}

func TestLoadKeepsOrderAndSequence(t *testing.T) {
	b := NewBuilder(nil)
	b.Put("x", "x", nil, time.Time{})
	b.Put("y", "y", nil, time.Time{})
	snap := b.Build()

	loaded := Load(snap.Documents())
	assert.Equal(t, ids(snap.List()), ids(loaded.List()))

	b2 := NewBuilder(loaded)
	b2.Put("z", "z", nil, time.Time{})
	assert.Equal(t, []string{"x", "y", "z"}, ids(b2.Build().List()))
}
