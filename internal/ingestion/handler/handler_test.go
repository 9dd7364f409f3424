package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func newServer(t *testing.T, maxBytes int64) (*httptest.Server, *indexer.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.Index.DataDir = ""
	cfg.Upload.Dir = filepath.Join(t.TempDir(), "uploads")
	cfg.Upload.MaxBytes = maxBytes
	e, err := indexer.Open(cfg.Index)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	p := ingestion.NewPipeline(cfg.Upload, ingestion.NewDirectSink(e), nil)
	mux := http.NewServeMux()
	New(p, cfg.Upload.MaxBytes).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, e
}

func upload(t *testing.T, srv *httptest.Server, field, name string, content []byte, out any) int {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/documents", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestUploadIndexes(t *testing.T) {
	srv, e := newServer(t, 1<<20)

	var receipt ingestion.Receipt
	status := upload(t, srv, "file", "a.txt", []byte("Laboratory blood test results."), &receipt)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, ingestion.StatusIndexed, receipt.Status)
	assert.Equal(t, "a.txt", receipt.Filename)
	assert.Equal(t, int64(30), receipt.Size)

	doc, err := e.GetDocument(receipt.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Laboratory blood test results.", doc.Fields["content"])
}

func TestUploadErrors(t *testing.T) {
	srv, _ := newServer(t, 16)

	var body map[string]any
	status := upload(t, srv, "", "", nil, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "no file provided", body["error"])

	body = nil
	status = upload(t, srv, "file", "image.png", []byte("png"), &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation failed", body["error"])
	assert.Contains(t, body["fields"], "filename")

	body = nil
	status = upload(t, srv, "file", "big.txt", bytes.Repeat([]byte("x"), 100), &body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "upload too large", body["error"])
}

func TestDelete(t *testing.T) {
	srv, e := newServer(t, 1<<20)

	var receipt ingestion.Receipt
	require.Equal(t, http.StatusCreated, upload(t, srv, "file", "b.txt", []byte("Urine analysis report."), &receipt))

	del := func() (int, map[string]string) {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/"+receipt.DocumentID, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, out := del()
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ingestion.StatusDeleted, out["status"])
	assert.Equal(t, 0, e.Stats().Documents)

	status, out = del()
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, out["error"], "not found")
}
