// Package catalog records every upload and its indexing status in the
// PostgreSQL documents table. The ingestion service inserts rows as PENDING
// and the indexer moves them to INDEXED, FAILED or DELETED.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	content_size BIGINT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'PENDING',
	message      TEXT NOT NULL DEFAULT '',
	uploaded_at  TIMESTAMPTZ NOT NULL,
	indexed_at   TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status);
CREATE TABLE IF NOT EXISTS document_status_history (
	id          BIGSERIAL PRIMARY KEY,
	document_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	changed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS document_status_history_doc_idx ON document_status_history (document_id, id);`

// Record is one row of the documents table.
type Record struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	ContentHash string     `json:"content_hash"`
	Size        int64      `json:"size"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
}

// Transition is one entry of a document's status history.
type Transition struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type Catalog struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		retry:  resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the documents table if it does not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.DB.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Upsert records doc with the given status, replacing an earlier upload
// stored under the same id. The status change is appended to the history in
// the same transaction.
func (c *Catalog) Upsert(ctx context.Context, doc ingestion.Document, status string) error {
	err := resilience.Retry(ctx, "catalog-upsert", c.retry, func() error {
		return c.db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO documents (id, filename, content_hash, content_size, status, uploaded_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET
					filename = EXCLUDED.filename,
					content_hash = EXCLUDED.content_hash,
					content_size = EXCLUDED.content_size,
					status = EXCLUDED.status,
					message = '',
					uploaded_at = EXCLUDED.uploaded_at,
					indexed_at = NULL,
					updated_at = NOW()`,
				doc.ID, doc.Filename, doc.ContentHash, doc.Size, status, doc.UploadedAt)
			if err != nil {
				return err
			}
			return appendHistory(ctx, tx, doc.ID, status, "")
		})
	})
	if err != nil {
		return fmt.Errorf("recording document %s: %w", doc.ID, err)
	}
	return nil
}

// SetStatus moves id to status and appends the change to its history.
// Moving to INDEXED stamps indexed_at. It returns ErrDocumentNotFound if no
// row exists.
func (c *Catalog) SetStatus(ctx context.Context, id, status, message string) error {
	err := resilience.Retry(ctx, "catalog-set-status", c.retry, func() error {
		return c.db.InTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx,
				`UPDATE documents SET
					status = $2,
					message = $3,
					indexed_at = CASE WHEN $2 = 'INDEXED' THEN NOW() ELSE indexed_at END,
					updated_at = NOW()
				WHERE id = $1`,
				id, status, message)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return resilience.Permanent(fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id))
			}
			return appendHistory(ctx, tx, id, status, message)
		})
	})
	if err != nil {
		c.logger.Error("failed to update document status", "doc_id", id, "status", status, "error", err)
		return err
	}
	return nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, id, status, message string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO document_status_history (document_id, status, message) VALUES ($1, $2, $3)`,
		id, status, message)
	return err
}

// History returns the status transitions of id, oldest first.
func (c *Catalog) History(ctx context.Context, id string) ([]Transition, error) {
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT status, message, changed_at FROM document_status_history
		WHERE document_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", id, err)
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.Status, &tr.Message, &tr.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Get returns the catalog row for id.
func (c *Catalog) Get(ctx context.Context, id string) (*Record, error) {
	var (
		r         Record
		indexedAt sql.NullTime
	)
	err := c.db.DB.QueryRowContext(ctx,
		`SELECT id, filename, content_hash, content_size, status, message, uploaded_at, indexed_at
		FROM documents WHERE id = $1`, id).
		Scan(&r.ID, &r.Filename, &r.ContentHash, &r.Size, &r.Status, &r.Message, &r.UploadedAt, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	if indexedAt.Valid {
		r.IndexedAt = &indexedAt.Time
	}
	return &r, nil
}

// CountByStatus returns the number of rows per status.
func (c *Catalog) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
