package metrics

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommit("ok", time.Millisecond, 1, 0)
		m.SetIndexSize(1, 1, 1)
		m.ObserveSearch("hit", "miss", time.Millisecond, 3)
		m.CacheHit()
		m.CacheMiss()
		m.ObserveUpload("ok")
		m.ExtractionFailed("pdf")
	})
}

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCommit("ok", 2*time.Millisecond, 3, 1)
	m.SetIndexSize(4, 10, 120)
	m.CacheHit()
	m.ExtractionFailed("pdf")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsDeletedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IndexGeneration))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.IndexTerms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionFailures.WithLabelValues("pdf")))
}

func TestHandlerServesPrivateRegistry(t *testing.T) {
	m := New(nil)
	m.SetIndexSize(9, 1, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "index_generation 9")
}

func TestStartServerPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	shutdown := StartServer(port, New(prometheus.NewRegistry()))
	assert.NoError(t, shutdown(context.Background()))
}
