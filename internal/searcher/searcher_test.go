package searcher

import (
	"context"
	"fmt"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

func newEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	e, err := indexer.Open(config.IndexConfig{Analyzer: "standard", Fields: []string{"filename", "content"}})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func index(t *testing.T, e *indexer.Engine, id, content string) {
	t.Helper()
	require.NoError(t, e.IndexDocument(context.Background(), indexer.Document{
		ID:       id,
		Filename: path.Base(id),
		Fields:   map[string]string{"content": content},
	}))
}

func labEngine(t *testing.T) *indexer.Engine {
	e := newEngine(t)
	index(t, e, "uploads/a.txt", "Laboratory blood test results.")
	index(t, e, "uploads/b.txt", "Urine analysis report.")
	return e
}

func searchConfig() config.SearchConfig {
	return config.Default().Search
}

func TestSearchReturnsHitsWithSnippets(t *testing.T) {
	s := New(labEngine(t), searchConfig())

	resp, err := s.Search(context.Background(), "blood", 10)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	hit := resp.Hits[0]
	assert.Equal(t, "uploads/a.txt", hit.ID)
	assert.Equal(t, "a.txt", hit.Filename)
	assert.Greater(t, hit.Score, 0.0)
	assert.Equal(t, []string{"Laboratory <b>blood</b> test results"}, hit.Snippets)
	assert.Equal(t, hit.Snippets[0], hit.Highlight)
	assert.Equal(t, "blood", resp.Query)
	assert.Equal(t, uint64(2), resp.Generation)
	assert.False(t, resp.Cached)

	resp, err = s.Search(context.Background(), "analysis", 10)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "b.txt", resp.Hits[0].Filename)

	resp, err = s.Search(context.Background(), "urine OR blood", 10)
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 2)
	assert.Equal(t, 2, resp.Total)
}

func TestFilenameOnlyMatchStillGetsSnippet(t *testing.T) {
	s := New(labEngine(t), searchConfig())
	resp, err := s.Search(context.Background(), "filename:txt", 10)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	for _, h := range resp.Hits {
		require.Len(t, h.Snippets, 1)
		assert.NotContains(t, h.Snippets[0], "<b>")
	}
}

func TestSearchErrors(t *testing.T) {
	s := New(labEngine(t), searchConfig())
	ctx := context.Background()

	_, err := s.Search(ctx, "", 10)
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)
	_, err = s.Search(ctx, "author:smith", 10)
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)
	_, err = s.Search(ctx, "blood OR", 10)
	assert.ErrorIs(t, err, apperrors.ErrParse)
	_, err = s.Search(ctx, "blood", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)
}

func TestSearchEmptyIndex(t *testing.T) {
	s := New(newEngine(t), searchConfig())
	resp, err := s.Search(context.Background(), "blood", 10)
	require.NoError(t, err)
	assert.NotNil(t, resp.Hits)
	assert.Empty(t, resp.Hits)
	assert.Empty(t, s.ListDocuments())
}

func TestLimitDefaultsAndClamps(t *testing.T) {
	e := newEngine(t)
	for i := range 6 {
		index(t, e, fmt.Sprintf("d%d.txt", i), "shared words")
	}
	cfg := searchConfig()
	cfg.DefaultLimit = 3
	cfg.MaxResults = 4
	s := New(e, cfg)

	resp, err := s.Search(context.Background(), "shared", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 3)
	assert.Equal(t, 6, resp.Total)

	resp, err = s.Search(context.Background(), "shared", 50)
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 4)
}

func TestListAndGet(t *testing.T) {
	s := New(labEngine(t), searchConfig())
	docs := s.ListDocuments()
	require.Len(t, docs, 2)
	assert.Equal(t, "uploads/a.txt", docs[0].ID)
	assert.False(t, docs[0].IndexedAt.IsZero())

	doc, err := s.Get("uploads/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "Urine analysis report.", doc.Fields["content"])

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) DeleteMatching(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

func TestCachedResponsesFollowGeneration(t *testing.T) {
	e := labEngine(t)
	qc := cache.New[Response](&memStore{data: make(map[string][]byte)}, time.Minute, nil)
	s := New(e, searchConfig(), WithCache(qc))
	ctx := context.Background()

	first, err := s.Search(ctx, "blood", 10)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := s.Search(ctx, "  BLOOD ", 10)
	require.NoError(t, err)
	assert.True(t, second.Cached, "queries with the same canonical form share an entry")
	assert.Equal(t, first.Hits, second.Hits)

	index(t, e, "uploads/c.txt", "blood pressure")
	third, err := s.Search(ctx, "blood", 10)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Hits, 2)

	stats, ok := s.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)

	n, err := s.InvalidateCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSnippetsAreEscaped(t *testing.T) {
	e := newEngine(t)
	index(t, e, "x.html", "<script>alert(1)</script> blood")
	s := New(e, searchConfig())
	resp, err := s.Search(context.Background(), "blood", 10)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "script&gt;alert(1)&lt;/script&gt; <b>blood</b>", resp.Hits[0].Snippets[0])
}
