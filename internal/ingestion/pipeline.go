package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/extract"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Sink receives extracted documents. Submit returns the status the document
// reached: StatusIndexed when indexed in-process, StatusPending when queued.
type Sink interface {
	Submit(ctx context.Context, doc Document) (string, error)
	Remove(ctx context.Context, id string) error
}

type Pipeline struct {
	dir       string
	validator *validator.Validator
	sink      Sink
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

func NewPipeline(cfg config.UploadConfig, sink Sink, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		dir:       cfg.Dir,
		validator: validator.New(cfg),
		sink:      sink,
		metrics:   m,
		now:       time.Now,
		logger:    slog.Default().With("component", "ingestion"),
	}
}

// Ingest stores raw under a sanitized form of name, extracts its fields and
// submits the document. The document id is the stored path relative to the
// parent of the upload directory ("uploads/a.txt"), so uploading the same
// name again replaces the earlier document. Extraction failures do not
// abort ingestion: the document is submitted with empty content and the
// receipt carries a warning.
func (p *Pipeline) Ingest(ctx context.Context, name string, raw []byte) (*Receipt, error) {
	log := logger.FromContext(ctx)
	filename := validator.SecureFilename(name)
	if err := p.validator.Validate(validator.Upload{Filename: filename, Size: int64(len(raw))}); err != nil {
		p.metrics.ObserveUpload("rejected")
		return nil, err
	}

	if err := p.store(filename, raw); err != nil {
		p.metrics.ObserveUpload("failed")
		return nil, err
	}
	id := p.documentID(filename)

	receipt := &Receipt{Filename: filename, Size: int64(len(raw)), DocumentID: id}
	fields, err := extract.Fields(raw, filename)
	if err != nil {
		p.metrics.ExtractionFailed(strings.ToLower(filepath.Ext(filename)))
		log.Warn("extraction failed, indexing with empty content", "doc_id", id, "error", err)
		receipt.Warning = err.Error()
	}

	sum := sha256.Sum256(raw)
	doc := Document{
		ID:          id,
		Filename:    filename,
		Fields:      fields,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        int64(len(raw)),
		UploadedAt:  p.now().UTC(),
	}
	status, err := p.sink.Submit(ctx, doc)
	if err != nil {
		p.metrics.ObserveUpload("failed")
		log.Error("submitting document failed", "doc_id", id, "error", err)
		return nil, err
	}
	p.metrics.ObserveUpload(strings.ToLower(status))
	receipt.Status = status
	switch status {
	case StatusIndexed:
		receipt.Message = fmt.Sprintf("File %s uploaded and indexed successfully", filename)
	default:
		receipt.Message = fmt.Sprintf("File %s uploaded and queued for indexing", filename)
	}
	log.Info("document ingested", "doc_id", id, "status", status, "size", len(raw))
	return receipt, nil
}

// Delete removes id from the index and, when it is a stored upload, from
// the upload directory.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.sink.Remove(ctx, id); err != nil {
		return err
	}
	if file, ok := p.storedFile(id); ok {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("removing stored upload failed", "doc_id", id, "error", err)
		}
	}
	logger.FromContext(ctx).Info("document deleted", "doc_id", id)
	return nil
}

func (p *Pipeline) documentID(filename string) string {
	return path.Join(filepath.Base(p.dir), filename)
}

// storedFile maps a document id back to its file in the upload directory.
func (p *Pipeline) storedFile(id string) (string, bool) {
	dir, name := path.Split(id)
	if path.Clean(dir) != filepath.Base(p.dir) || name == "" {
		return "", false
	}
	return filepath.Join(p.dir, name), true
}

// store writes raw to the upload directory through a temporary file.
func (p *Pipeline) store(filename string, raw []byte) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}
	tmp, err := os.CreateTemp(p.dir, filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("storing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	dst := filepath.Join(p.dir, filename)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	return nil
}
