// Package consumer applies ingestion events from Kafka to the index engine
// and reports the outcome to the document catalog.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// StatusUpdater is implemented by *catalog.Catalog.
type StatusUpdater interface {
	SetStatus(ctx context.Context, id, status, message string) error
}

type Handler struct {
	index   ingestion.Index
	catalog StatusUpdater
	logger  *slog.Logger
}

// New returns a Handler. cat may be nil when no catalog is configured.
func New(idx ingestion.Index, cat StatusUpdater) *Handler {
	return &Handler{
		index:   idx,
		catalog: cat,
		logger:  slog.Default().With("component", "index-consumer"),
	}
}

// HandleIngest indexes the document carried by an IngestEvent. Undecodable
// messages and documents the engine rejects are dropped; any other error is
// returned so the message is retried.
func (h *Handler) HandleIngest(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
	if err != nil {
		h.logger.Error("failed to decode ingest event", "key", string(key), "error", err)
		return nil
	}
	id := event.Document.ID
	h.logger.Debug("processing ingest event", "doc_id", id, "event_id", event.EventID)

	doc := ingestion.ToIndexDocument(event.Document, h.index.Schema())
	if err := h.index.IndexDocument(ctx, doc); err != nil {
		if !rejected(err) {
			return fmt.Errorf("indexing document %s: %w", id, err)
		}
		h.logger.Warn("document rejected", "doc_id", id, "error", err)
		h.setStatus(ctx, id, ingestion.StatusFailed, err.Error())
		return nil
	}
	h.setStatus(ctx, id, ingestion.StatusIndexed, "")
	h.logger.Info("document indexed", "doc_id", id, "event_id", event.EventID)
	return nil
}

// HandleDelete removes the document named by a DeleteEvent. Deleting a
// document that is not indexed is not an error here; the event may be a
// redelivery.
func (h *Handler) HandleDelete(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.DeleteEvent](value)
	if err != nil {
		h.logger.Error("failed to decode delete event", "key", string(key), "error", err)
		return nil
	}
	id := event.DocumentID
	err = h.index.DeleteDocument(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrDocumentNotFound):
		h.logger.Info("delete of unindexed document ignored", "doc_id", id)
	case err != nil:
		return fmt.Errorf("deleting document %s: %w", id, err)
	default:
		h.logger.Info("document deleted", "doc_id", id, "event_id", event.EventID)
	}
	h.setStatus(ctx, id, ingestion.StatusDeleted, "")
	return nil
}

func (h *Handler) setStatus(ctx context.Context, id, status, message string) {
	if h.catalog == nil {
		return
	}
	if err := h.catalog.SetStatus(ctx, id, status, message); err != nil {
		h.logger.Error("failed to update document status", "doc_id", id, "status", status, "error", err)
	}
}

// rejected reports whether err is a property of the document rather than of
// the engine, so retrying cannot help.
func rejected(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrUnknownField) ||
		errors.Is(err, apperrors.ErrReadOnly)
}

var _ ingestion.Index = (*indexer.Engine)(nil)
