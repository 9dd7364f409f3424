package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func newServer(t *testing.T) (*httptest.Server, *indexer.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.Index.DataDir = ""
	e, err := indexer.Open(cfg.Index)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	ctx := context.Background()
	for id, content := range map[string]string{
		"uploads/a.txt": "Laboratory blood test results.",
		"uploads/b.txt": "Urine analysis report.",
	} {
		require.NoError(t, e.IndexDocument(ctx, indexer.Document{
			ID:     id,
			Fields: map[string]string{"content": content},
		}))
	}

	mux := http.NewServeMux()
	New(searcher.New(e, cfg.Search), e).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, e
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newServer(t)

	var body searcher.Response
	status := get(t, srv, "/api/v1/search?q="+url.QueryEscape("urine OR blood")+"&limit=5", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "(urine OR blood)", body.Query)
	require.Len(t, body.Hits, 2)
	for _, h := range body.Hits {
		assert.NotEmpty(t, h.Snippets)
	}
}

func TestSearchEndpointErrors(t *testing.T) {
	srv, _ := newServer(t)
	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/search", http.StatusBadRequest},
		{"/api/v1/search?q=", http.StatusBadRequest},
		{"/api/v1/search?q=author:x", http.StatusBadRequest},
		{"/api/v1/search?q=blood&limit=0", http.StatusBadRequest},
		{"/api/v1/search?q=blood&limit=abc", http.StatusBadRequest},
		{"/api/v1/search?q=" + url.QueryEscape("blood OR"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, tt.status, get(t, srv, tt.path, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDocumentEndpoints(t *testing.T) {
	srv, e := newServer(t)

	var list struct {
		Documents []struct {
			ID        string `json:"id"`
			Filename  string `json:"filename"`
			IndexedAt string `json:"indexed_at"`
		} `json:"documents"`
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/documents", &list))
	assert.Equal(t, 2, list.Count)
	for _, d := range list.Documents {
		assert.NotEmpty(t, d.IndexedAt)
	}

	var doc struct {
		ID       string            `json:"id"`
		Filename string            `json:"filename"`
		Fields   map[string]string `json:"fields"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/documents/uploads/a.txt", &doc))
	assert.Equal(t, "a.txt", doc.Filename)
	assert.Equal(t, "Laboratory blood test results.", doc.Fields["content"])

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/documents/uploads/none.txt", nil))

	require.NoError(t, e.DeleteDocument(context.Background(), "uploads/a.txt"))
	var body searcher.Response
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/search?q=blood", &body))
	assert.Empty(t, body.Hits)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/documents/uploads/a.txt", nil))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/uploads/b.txt", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "the read API has no delete route")
}

func TestStatsAndCacheEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	var stats indexer.Stats
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/stats", &stats))
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, uint64(2), stats.Generation)

	var cacheStats map[string]string
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/cache/stats", &cacheStats))
	assert.Equal(t, "disabled", cacheStats["status"])

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
