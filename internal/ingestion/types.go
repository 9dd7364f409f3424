// Package ingestion turns uploaded files into indexable documents: it stores
// the upload, extracts its fields and hands the result to a Sink, which
// either indexes it in-process or publishes it for the indexer service.
package ingestion

import "time"

// Document status values recorded in the catalog.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
	StatusDeleted = "DELETED"
)

// Document is an extracted upload ready for indexing. ID is the stored path.
type Document struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	Fields      map[string]string `json:"fields"`
	ContentHash string            `json:"content_hash"`
	Size        int64             `json:"size"`
	UploadedAt  time.Time         `json:"uploaded_at"`
}

// Receipt is returned to the uploader.
type Receipt struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Size       int64  `json:"size"`
	Message    string `json:"message"`
	// Warning is set when extraction failed and the document was indexed
	// with empty content.
	Warning string `json:"warning,omitempty"`
}

// IngestEvent is the Kafka payload consumed by the indexer service.
type IngestEvent struct {
	EventID    string    `json:"event_id"`
	Document   Document  `json:"document"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DeleteEvent asks the indexer service to drop a document.
type DeleteEvent struct {
	EventID     string    `json:"event_id"`
	DocumentID  string    `json:"document_id"`
	RequestedAt time.Time `json:"requested_at"`
}
