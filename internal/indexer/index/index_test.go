package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

var analyzer = tokenizer.Default()

func upsertText(b *Builder, docID, field, text string) {
	b.Upsert(docID, field, analyzer.Tokenize(text))
}

func TestUpsertAndPostings(t *testing.T) {
	b := NewBuilder(nil)
	upsertText(b, "b.txt", "content", "blood blood test")
	upsertText(b, "a.txt", "content", "blood analysis")
	snap := b.Build()

	pl := snap.Postings("content", "blood")
	require.Len(t, pl, 2)
	assert.Equal(t, "a.txt", pl[0].DocID, "postings must be sorted by doc id")
	assert.Equal(t, "b.txt", pl[1].DocID)
	assert.Equal(t, 2, pl[1].Frequency)
	assert.Equal(t, []int{0, 1}, pl[1].Positions)

	assert.Equal(t, 2, snap.DocFreq("content", "blood"))
	assert.Equal(t, 0, snap.DocFreq("content", "urine"))
	assert.Nil(t, snap.Postings("filename", "blood"))
	assert.Equal(t, 2, snap.TotalDocs())
	assert.Equal(t, int64(5), snap.FieldTokens("content"))
	assert.InDelta(t, 2.5, snap.AvgFieldLength("content"), 1e-9)
	assert.Equal(t, 3, snap.FieldLength("b.txt", "content"))
}

func TestUpsertReplacesFieldPostings(t *testing.T) {
	b := NewBuilder(nil)
	upsertText(b, "a.txt", "content", "old words here")
	base := b.Build()

	b2 := NewBuilder(base)
	upsertText(b2, "a.txt", "content", "new words")
	next := b2.Build()

	assert.Empty(t, next.Postings("content", "old"))
	assert.Empty(t, next.Postings("content", "here"))
	assert.Len(t, next.Postings("content", "new"), 1)
	assert.Equal(t, 1, next.TotalDocs())
	assert.Equal(t, int64(2), next.FieldTokens("content"))

	// The base snapshot is untouched.
	assert.Len(t, base.Postings("content", "old"), 1)
	assert.Empty(t, base.Postings("content", "new"))
	assert.Equal(t, int64(3), base.FieldTokens("content"))
}

func TestRemoveDecrementsDocFreqOncePerTerm(t *testing.T) {
	b := NewBuilder(nil)
	upsertText(b, "a.txt", "content", "blood blood blood")
	upsertText(b, "a.txt", "filename", "blood report")
	upsertText(b, "b.txt", "content", "blood")
	snap := b.Build()
	require.Equal(t, 2, snap.DocFreq("content", "blood"))

	b2 := NewBuilder(snap)
	assert.True(t, b2.Remove("a.txt"))
	assert.False(t, b2.Remove("missing.txt"))
	next := b2.Build()

	assert.Equal(t, 1, next.DocFreq("content", "blood"))
	assert.Equal(t, 0, next.DocFreq("filename", "blood"))
	assert.Equal(t, 0, next.DocFreq("filename", "report"))
	assert.Equal(t, 1, next.TotalDocs())
	assert.False(t, next.Has("a.txt"))
	assert.Equal(t, int64(1), next.FieldTokens("content"))
	assert.Equal(t, int64(0), next.FieldTokens("filename"))
	assert.NotContains(t, next.Fields(), "filename")
}

func TestEmptyFieldStillRegistersDocument(t *testing.T) {
	b := NewBuilder(nil)
	upsertText(b, "empty.pdf", "content", "")
	snap := b.Build()
	assert.True(t, snap.Has("empty.pdf"))
	assert.Equal(t, 1, snap.TotalDocs())
	assert.Equal(t, 0, snap.TermCount())
}

func TestBuildWithoutChangesReturnsBase(t *testing.T) {
	base := Empty()
	b := NewBuilder(base)
	assert.False(t, b.Dirty())
	assert.Same(t, base, b.Build())
}

func TestBuilderReusableAfterBuild(t *testing.T) {
	b := NewBuilder(nil)
	upsertText(b, "a.txt", "content", "alpha")
	first := b.Build()
	upsertText(b, "b.txt", "content", "alpha")
	second := b.Build()

	assert.Equal(t, 1, first.DocFreq("content", "alpha"))
	assert.Equal(t, 2, second.DocFreq("content", "alpha"))
	assert.Equal(t, 1, first.TotalDocs())
}

func TestEntriesAndLoadRoundTrip(t *testing.T) {
	b := NewBuilder(nil)
	upsertText(b, "a.txt", "content", "zeta alpha alpha")
	upsertText(b, "a.txt", "filename", "a txt")
	upsertText(b, "b.txt", "content", "alpha beta")
	upsertText(b, "c.txt", "content", "")
	snap := b.Build()

	var entries []TermEntry
	prev := ""
	for e := range snap.Entries() {
		key := e.Field + "\x00" + e.Term
		assert.Greater(t, key, prev, "entries must be ordered by field then term")
		prev = key
		entries = append(entries, e)
	}

	loaded := Load(entries, snap.DocRecords())
	assert.Equal(t, snap.Stats(), loaded.Stats())
	assert.Equal(t, snap.Postings("content", "alpha"), loaded.Postings("content", "alpha"))
	assert.Equal(t, []string{"alpha", "zeta"}, loaded.DocTerms("a.txt", "content"))
	assert.True(t, loaded.Has("c.txt"))

	// Removal on a loaded snapshot must find the reconstructed term lists.
	b2 := NewBuilder(loaded)
	b2.Remove("a.txt")
	next := b2.Build()
	assert.Equal(t, 1, next.DocFreq("content", "alpha"))
	assert.Equal(t, 0, next.DocFreq("content", "zeta"))
}

func TestPostingListHelpers(t *testing.T) {
	var pl PostingList
	pl = pl.with(Posting{DocID: "b", Frequency: 1})
	pl = pl.with(Posting{DocID: "a", Frequency: 1})
	pl = pl.with(Posting{DocID: "c", Frequency: 1})
	pl = pl.with(Posting{DocID: "b", Frequency: 5})
	require.Len(t, pl, 3)
	assert.Equal(t, "a", pl[0].DocID)
	p, ok := pl.Get("b")
	require.True(t, ok)
	assert.Equal(t, 5, p.Frequency)

	shorter := pl.without("a")
	assert.Len(t, shorter, 2)
	assert.Len(t, pl, 3)
	same := pl.without("zzz")
	assert.Equal(t, pl, same)
}
