package ingestion

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/schema"
)

// Index is the write surface of *indexer.Engine.
type Index interface {
	Schema() schema.Schema
	IndexDocument(ctx context.Context, doc indexer.Document) error
	DeleteDocument(ctx context.Context, id string) error
}

// DirectSink indexes documents in-process, committing each one before the
// upload is acknowledged.
type DirectSink struct {
	index Index
}

func NewDirectSink(idx Index) *DirectSink {
	return &DirectSink{index: idx}
}

func (s *DirectSink) Submit(ctx context.Context, doc Document) (string, error) {
	if err := s.index.IndexDocument(ctx, ToIndexDocument(doc, s.index.Schema())); err != nil {
		return "", err
	}
	return StatusIndexed, nil
}

func (s *DirectSink) Remove(ctx context.Context, id string) error {
	return s.index.DeleteDocument(ctx, id)
}

// ToIndexDocument converts doc for the engine, keeping only fields in sch.
func ToIndexDocument(doc Document, sch schema.Schema) indexer.Document {
	fields := make(map[string]string, sch.Len())
	for name, text := range doc.Fields {
		if sch.Has(name) {
			fields[name] = text
		}
	}
	return indexer.Document{
		ID:       doc.ID,
		Filename: doc.Filename,
		Fields:   fields,
	}
}
