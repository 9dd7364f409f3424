// Package publisher is the queueing ingestion sink: it records each upload
// in the catalog as PENDING and publishes an event for the indexer service.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// EventPublisher is implemented by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Catalog is the subset of *catalog.Catalog the publisher needs.
type Catalog interface {
	Upsert(ctx context.Context, doc ingestion.Document, status string) error
	SetStatus(ctx context.Context, id, status, message string) error
	Get(ctx context.Context, id string) (*catalog.Record, error)
}

// Publisher implements ingestion.Sink. Events are keyed by document id so
// an ingest and a later delete of the same document are consumed in order.
type Publisher struct {
	catalog Catalog
	ingest  EventPublisher
	delete  EventPublisher
	now     func() time.Time
	logger  *slog.Logger
}

func New(cat Catalog, ingest, del EventPublisher) *Publisher {
	return &Publisher{
		catalog: cat,
		ingest:  ingest,
		delete:  del,
		now:     time.Now,
		logger:  slog.Default().With("component", "publisher"),
	}
}

func (p *Publisher) Submit(ctx context.Context, doc ingestion.Document) (string, error) {
	if err := p.catalog.Upsert(ctx, doc, ingestion.StatusPending); err != nil {
		return "", err
	}
	event := ingestion.IngestEvent{
		EventID:    uuid.NewString(),
		Document:   doc,
		IngestedAt: p.now().UTC(),
	}
	if err := p.ingest.Publish(ctx, doc.ID, event); err != nil {
		if serr := p.catalog.SetStatus(ctx, doc.ID, ingestion.StatusFailed, "publish failed"); serr != nil {
			p.logger.Error("failed to mark unpublished document", "doc_id", doc.ID, "error", serr)
		}
		return "", fmt.Errorf("publishing ingest event for %s: %w", doc.ID, err)
	}
	p.logger.Info("ingest event published", "doc_id", doc.ID, "event_id", event.EventID)
	return ingestion.StatusPending, nil
}

// Remove publishes a delete event for id. It returns ErrDocumentNotFound
// when the catalog has no live record of id.
func (p *Publisher) Remove(ctx context.Context, id string) error {
	rec, err := p.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == ingestion.StatusDeleted {
		return fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	event := ingestion.DeleteEvent{
		EventID:     uuid.NewString(),
		DocumentID:  id,
		RequestedAt: p.now().UTC(),
	}
	if err := p.delete.Publish(ctx, id, event); err != nil {
		return fmt.Errorf("publishing delete event for %s: %w", id, err)
	}
	p.logger.Info("delete event published", "doc_id", id, "event_id", event.EventID)
	return nil
}
