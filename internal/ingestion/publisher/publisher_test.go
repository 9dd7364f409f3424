package publisher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type fakeCatalog struct {
	status map[string]string
}

func (c *fakeCatalog) Upsert(_ context.Context, doc ingestion.Document, status string) error {
	c.status[doc.ID] = status
	return nil
}

func (c *fakeCatalog) SetStatus(_ context.Context, id, status, _ string) error {
	if _, ok := c.status[id]; !ok {
		return apperrors.ErrDocumentNotFound
	}
	c.status[id] = status
	return nil
}

func (c *fakeCatalog) Get(_ context.Context, id string) (*catalog.Record, error) {
	st, ok := c.status[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	return &catalog.Record{ID: id, Status: st}, nil
}

type published struct {
	key   string
	value any
}

type fakeProducer struct {
	events []published
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, key string, value any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{key, value})
	return nil
}

func setup() (*Publisher, *fakeCatalog, *fakeProducer, *fakeProducer) {
	cat := &fakeCatalog{status: map[string]string{}}
	ing, del := &fakeProducer{}, &fakeProducer{}
	return New(cat, ing, del), cat, ing, del
}

func TestSubmitPublishesPending(t *testing.T) {
	p, cat, ing, _ := setup()
	doc := ingestion.Document{ID: "uploads/a.txt", Filename: "a.txt"}

	status, err := p.Submit(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, status)
	assert.Equal(t, ingestion.StatusPending, cat.status["uploads/a.txt"])

	require.Len(t, ing.events, 1)
	assert.Equal(t, "uploads/a.txt", ing.events[0].key)
	event := ing.events[0].value.(ingestion.IngestEvent)
	assert.Equal(t, doc, event.Document)
	_, err = uuid.Parse(event.EventID)
	assert.NoError(t, err)
}

func TestSubmitMarksFailedWhenPublishFails(t *testing.T) {
	p, cat, ing, _ := setup()
	ing.err = errors.New("no brokers")

	_, err := p.Submit(context.Background(), ingestion.Document{ID: "uploads/a.txt"})
	assert.ErrorContains(t, err, "no brokers")
	assert.Equal(t, ingestion.StatusFailed, cat.status["uploads/a.txt"])
}

func TestRemove(t *testing.T) {
	p, cat, _, del := setup()
	ctx := context.Background()

	assert.ErrorIs(t, p.Remove(ctx, "uploads/missing.txt"), apperrors.ErrDocumentNotFound)

	cat.status["uploads/a.txt"] = ingestion.StatusIndexed
	require.NoError(t, p.Remove(ctx, "uploads/a.txt"))
	require.Len(t, del.events, 1)
	assert.Equal(t, "uploads/a.txt", del.events[0].value.(ingestion.DeleteEvent).DocumentID)

	cat.status["uploads/a.txt"] = ingestion.StatusDeleted
	assert.ErrorIs(t, p.Remove(ctx, "uploads/a.txt"), apperrors.ErrDocumentNotFound)
}
