package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// The catalog tests need a live PostgreSQL; set DOCSEARCH_TEST_POSTGRES=1
// with the usual SP_POSTGRES_* overrides to run them.
func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	if os.Getenv("DOCSEARCH_TEST_POSTGRES") == "" {
		t.Skip("DOCSEARCH_TEST_POSTGRES not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	client, err := postgres.New(context.Background(), cfg.Postgres)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	c := New(client)
	require.NoError(t, c.EnsureSchema(context.Background()))
	return c
}

func TestCatalogLifecycle(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	id := "uploads/catalog-test-" + time.Now().Format("150405.000000") + ".txt"
	t.Cleanup(func() {
		c.db.DB.Exec(`DELETE FROM documents WHERE id = $1`, id)
		c.db.DB.Exec(`DELETE FROM document_status_history WHERE document_id = $1`, id)
	})

	doc := ingestion.Document{
		ID:          id,
		Filename:    "catalog-test.txt",
		ContentHash: "abc",
		Size:        3,
		UploadedAt:  time.Now().UTC(),
	}
	require.NoError(t, c.Upsert(ctx, doc, ingestion.StatusPending))

	rec, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, rec.Status)
	assert.Nil(t, rec.IndexedAt)

	require.NoError(t, c.SetStatus(ctx, id, ingestion.StatusIndexed, ""))
	rec, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusIndexed, rec.Status)
	assert.NotNil(t, rec.IndexedAt)

	require.NoError(t, c.Upsert(ctx, doc, ingestion.StatusPending))
	rec, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, rec.IndexedAt, "re-upload resets indexed_at")

	counts, err := c.CountByStatus(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts[ingestion.StatusPending], 1)

	history, err := c.History(ctx, id)
	require.NoError(t, err)
	statuses := make([]string, len(history))
	for i, tr := range history {
		statuses[i] = tr.Status
	}
	assert.Equal(t, []string{ingestion.StatusPending, ingestion.StatusIndexed, ingestion.StatusPending}, statuses)
}

func TestCatalogMissingDocument(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	err := c.SetStatus(ctx, "uploads/never-uploaded.txt", ingestion.StatusIndexed, "")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	_, err = c.Get(ctx, "uploads/never-uploaded.txt")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	history, err := c.History(ctx, "uploads/never-uploaded.txt")
	require.NoError(t, err)
	assert.Empty(t, history, "a rolled-back update leaves no history")
}
