// Package indexer owns the write path: it turns documents into postings and
// stored records, applies them in atomic commits and publishes immutable
// snapshots that readers load without locking.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Document is the record handed to the engine by an extraction collaborator.
// Fields maps schema field names to raw text; a missing schema field is
// indexed as empty. When the schema has a filename field and Fields does not
// set it, Filename is indexed there.
type Document struct {
	ID        string
	Filename  string
	Fields    map[string]string
	IndexedAt time.Time
}

// Snapshot is one committed generation of the index and document store.
// It never changes after publication.
type Snapshot struct {
	generation  uint64
	committedAt time.Time
	index       *index.Snapshot
	docs        *docstore.Snapshot
}

func (s *Snapshot) Generation() uint64 { return s.generation }

func (s *Snapshot) CommittedAt() time.Time { return s.committedAt }

// Index returns the inverted index of this generation.
func (s *Snapshot) Index() *index.Snapshot { return s.index }

// Docs returns the document store of this generation.
func (s *Snapshot) Docs() *docstore.Snapshot { return s.docs }

// Stats describes the current generation.
type Stats struct {
	Generation  uint64           `json:"generation"`
	Documents   int              `json:"documents"`
	Terms       int              `json:"terms"`
	FieldTokens map[string]int64 `json:"field_tokens"`
	Analyzer    string           `json:"analyzer"`
	Fields      []string         `json:"fields"`
	Persistent  bool             `json:"persistent"`
	ReadOnly    bool             `json:"read_only"`
	CommittedAt time.Time        `json:"committed_at"`
}

// Option customises an Engine.
type Option func(*Engine)

// WithMetrics records commit outcomes and index size in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used for commit and document stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// segmentWriter is the part of *segment.Writer a commit needs.
type segmentWriter interface {
	WriteIndex(gen uint64, snap *index.Snapshot) (string, error)
	WriteDocs(gen uint64, docs []docstore.Document) (string, error)
	WriteCommit(cp segment.CommitPoint) error
}

// Engine is the single writer of an index. Readers call Snapshot and never
// block; Commit serialises writers.
type Engine struct {
	cfg      config.IndexConfig
	schema   schema.Schema
	analyzer *tokenizer.Analyzer
	writer   segmentWriter
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	closed  atomic.Bool
}

// Open opens the index in cfg.DataDir, creating it if needed. An empty
// DataDir gives a purely in-memory engine.
func Open(cfg config.IndexConfig, opts ...Option) (*Engine, error) {
	analyzer, err := tokenizer.New(cfg.Analyzer)
	if err != nil {
		return nil, fmt.Errorf("configuring analyzer: %w", err)
	}
	sch := schema.Default()
	if len(cfg.Fields) > 0 {
		if sch, err = schema.New(cfg.Fields...); err != nil {
			return nil, fmt.Errorf("configuring schema: %w", err)
		}
	}
	e := &Engine{
		cfg:      cfg,
		schema:   sch,
		analyzer: analyzer,
		now:      time.Now,
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(&Snapshot{index: index.Empty(), docs: docstore.Empty()})

	if cfg.DataDir == "" {
		e.logger.Info("index opened in memory",
			"analyzer", analyzer.Name(),
			"fields", sch.String(),
		)
		return e, nil
	}
	if !cfg.ReadOnly {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index data directory: %w", err)
		}
		e.writer = segment.NewWriter(cfg.DataDir)
	}
	if _, err := e.load(); err != nil {
		return nil, fmt.Errorf("loading index from %s: %w", cfg.DataDir, err)
	}
	if e.writer != nil {
		e.cleanup()
	}
	snap := e.Snapshot()
	e.metrics.SetIndexSize(snap.generation, snap.index.TotalDocs(), snap.index.TermCount())
	e.logger.Info("index opened",
		"data_dir", cfg.DataDir,
		"generation", snap.generation,
		"docs", snap.index.TotalDocs(),
		"terms", snap.index.TermCount(),
		"read_only", cfg.ReadOnly,
	)
	return e, nil
}

// load reads the commit point and, if it names a newer generation than the
// current one, publishes it. It reports whether a new generation was loaded.
func (e *Engine) load() (bool, error) {
	cp, ok, err := segment.ReadCommit(e.cfg.DataDir)
	if err != nil {
		return false, err
	}
	if !ok || cp.Generation <= e.Snapshot().generation {
		return false, nil
	}
	if cp.Analyzer != e.analyzer.Name() || !e.schema.Equal(cp.Fields) {
		return false, fmt.Errorf("%w: index built with analyzer %q fields %v, configured %q fields %v",
			apperrors.ErrAnalyzerMismatch, cp.Analyzer, cp.Fields, e.analyzer.Name(), e.schema.Fields())
	}

	var (
		idx  *index.Snapshot
		docs []docstore.Document
		g    errgroup.Group
	)
	g.Go(func() error {
		var err error
		idx, _, err = segment.ReadIndex(filepath.Join(e.cfg.DataDir, cp.IndexFile))
		return err
	})
	g.Go(func() error {
		var err error
		docs, _, err = segment.ReadDocs(filepath.Join(e.cfg.DataDir, cp.DocsFile))
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	e.current.Store(&Snapshot{
		generation:  cp.Generation,
		committedAt: cp.CommittedAt,
		index:       idx,
		docs:        docstore.Load(docs),
	})
	return true, nil
}

// Refresh reloads the commit point written by another process. Read-only
// searchers call it to pick up new generations. It reports whether the
// visible generation changed.
func (e *Engine) Refresh() (bool, error) {
	if e.cfg.DataDir == "" {
		return false, nil
	}
	if e.closed.Load() {
		return false, apperrors.ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	changed, err := e.load()
	if err != nil {
		return false, fmt.Errorf("refreshing index: %w", err)
	}
	if changed {
		snap := e.Snapshot()
		e.metrics.SetIndexSize(snap.generation, snap.index.TotalDocs(), snap.index.TermCount())
		e.logger.Info("index refreshed", "generation", snap.generation, "docs", snap.index.TotalDocs())
	}
	return changed, nil
}

// StartRefreshLoop calls Refresh every interval until ctx is cancelled.
func (e *Engine) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || e.cfg.DataDir == "" {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("refresh loop stopping")
				return
			case <-ticker.C:
				if _, err := e.Refresh(); err != nil && !errors.Is(err, apperrors.ErrClosed) {
					e.logger.Error("periodic refresh failed", "error", err)
				}
			}
		}
	}()
}

// Snapshot returns the current committed generation.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

func (e *Engine) Schema() schema.Schema {
	return e.schema
}

func (e *Engine) Analyzer() *tokenizer.Analyzer {
	return e.analyzer
}

// IndexDocument adds doc or replaces the document with the same id, and
// commits. On failure the previous generation stays current.
func (e *Engine) IndexDocument(ctx context.Context, doc Document) error {
	var b Batch
	b.Index(doc)
	_, err := e.Commit(ctx, &b)
	return err
}

// DeleteDocument removes id and commits. It returns ErrDocumentNotFound if
// the document is not indexed.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	b := Batch{ops: []op{{kind: opDelete, id: id, strict: true}}}
	_, err := e.Commit(ctx, &b)
	return err
}

// GetDocument returns the stored record of id.
func (e *Engine) GetDocument(id string) (docstore.Document, error) {
	return e.Snapshot().docs.Get(id)
}

// ListDocuments returns every stored document in insertion order.
func (e *Engine) ListDocuments() []docstore.Summary {
	return e.Snapshot().docs.List()
}

func (e *Engine) Stats() Stats {
	snap := e.Snapshot()
	st := snap.index.Stats()
	return Stats{
		Generation:  snap.generation,
		Documents:   st.TotalDocs,
		Terms:       st.TotalTerms,
		FieldTokens: st.FieldTokens,
		Analyzer:    e.analyzer.Name(),
		Fields:      e.schema.Fields(),
		Persistent:  e.cfg.DataDir != "",
		ReadOnly:    e.cfg.ReadOnly,
		CommittedAt: snap.committedAt,
	}
}

// Commit applies every operation of b as one atomic generation and returns
// its number. An empty batch commits nothing and returns the current
// generation.
func (e *Engine) Commit(ctx context.Context, b *Batch) (uint64, error) {
	if e.closed.Load() {
		return 0, apperrors.ErrClosed
	}
	if e.cfg.ReadOnly {
		return 0, apperrors.ErrReadOnly
	}
	if b == nil || len(b.ops) == 0 {
		return e.Snapshot().generation, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	base := e.Snapshot()
	ib := index.NewBuilder(base.index)
	db := docstore.NewBuilder(base.docs)
	now := e.now().UTC()

	indexed, deleted := 0, 0
	for _, o := range b.ops {
		switch o.kind {
		case opIndex:
			fields, err := e.prepare(o.doc)
			if err != nil {
				e.metrics.ObserveCommit("failed", time.Since(start), 0, 0)
				return 0, apperrors.IndexingFailed(o.doc.ID, err)
			}
			// Old postings go first so terms that disappeared from the new
			// version stop matching.
			ib.Remove(o.doc.ID)
			for _, field := range e.schema.Fields() {
				ib.Upsert(o.doc.ID, field, e.analyzer.Tokenize(fields[field]))
			}
			ts := o.doc.IndexedAt
			if ts.IsZero() {
				ts = now
			}
			db.Put(o.doc.ID, displayName(o.doc, fields), fields, ts)
			indexed++
		case opDelete:
			if !db.Has(o.id) {
				if o.strict {
					e.metrics.ObserveCommit("failed", time.Since(start), 0, 0)
					return 0, fmt.Errorf("deleting %q: %w", o.id, apperrors.ErrDocumentNotFound)
				}
				continue
			}
			ib.Remove(o.id)
			db.Delete(o.id)
			deleted++
		}
	}

	next := &Snapshot{
		generation:  base.generation + 1,
		committedAt: now,
		index:       ib.Build(),
		docs:        db.Build(),
	}
	if err := ctx.Err(); err != nil {
		e.metrics.ObserveCommit("cancelled", time.Since(start), 0, 0)
		return 0, err
	}
	if err := e.persist(next); err != nil {
		e.metrics.ObserveCommit("failed", time.Since(start), 0, 0)
		e.logger.Error("commit failed",
			"generation", next.generation,
			"error", err,
		)
		return 0, apperrors.IndexingFailed(b.label(), err)
	}
	e.current.Store(next)
	if e.writer != nil {
		e.cleanup()
	}

	elapsed := time.Since(start)
	e.metrics.ObserveCommit("ok", elapsed, indexed, deleted)
	e.metrics.SetIndexSize(next.generation, next.index.TotalDocs(), next.index.TermCount())
	e.logger.Info("commit complete",
		"generation", next.generation,
		"indexed", indexed,
		"deleted", deleted,
		"docs", next.index.TotalDocs(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return next.generation, nil
}

// prepare validates doc against the schema and returns the text of every
// schema field.
func (e *Engine) prepare(doc Document) (map[string]string, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document id is empty", apperrors.ErrInvalidInput)
	}
	fields := make(map[string]string, e.schema.Len())
	for name, text := range doc.Fields {
		if !e.schema.Has(name) {
			return nil, &apperrors.UnknownFieldError{Field: name}
		}
		fields[name] = text
	}
	for _, name := range e.schema.Fields() {
		if _, ok := fields[name]; ok {
			continue
		}
		if name == schema.FieldFilename {
			fields[name] = displayName(doc, nil)
		} else {
			fields[name] = ""
		}
	}
	return fields, nil
}

func displayName(doc Document, fields map[string]string) string {
	if doc.Filename != "" {
		return doc.Filename
	}
	if name := fields[schema.FieldFilename]; name != "" {
		return name
	}
	return path.Base(filepath.ToSlash(doc.ID))
}

// persist writes next as a new generation and then swaps CURRENT. Files of a
// generation that never became current are removed on failure.
func (e *Engine) persist(next *Snapshot) error {
	if e.writer == nil {
		return nil
	}
	indexFile, err := e.writer.WriteIndex(next.generation, next.index)
	if err != nil {
		return fmt.Errorf("writing index segment: %w", err)
	}
	docsFile, err := e.writer.WriteDocs(next.generation, next.docs.Documents())
	if err != nil {
		e.discard(indexFile)
		return fmt.Errorf("writing document segment: %w", err)
	}
	cp := segment.CommitPoint{
		Generation:  next.generation,
		IndexFile:   indexFile,
		DocsFile:    docsFile,
		Analyzer:    e.analyzer.Name(),
		Fields:      e.schema.Fields(),
		Documents:   next.index.TotalDocs(),
		CommittedAt: next.committedAt,
	}
	if err := e.writer.WriteCommit(cp); err != nil {
		if e.committed(next.generation) {
			// CURRENT was renamed into place; only the directory sync failed.
			// Its files must stay.
			e.logger.Warn("commit point written but not synced",
				"generation", next.generation,
				"error", err,
			)
			return nil
		}
		e.discard(indexFile, docsFile)
		return fmt.Errorf("writing commit point: %w", err)
	}
	return nil
}

// committed reports whether CURRENT on disk names generation.
func (e *Engine) committed(generation uint64) bool {
	cp, ok, err := segment.ReadCommit(e.cfg.DataDir)
	return err == nil && ok && cp.Generation == generation
}

func (e *Engine) discard(names ...string) {
	for _, name := range names {
		if err := os.Remove(filepath.Join(e.cfg.DataDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("removing uncommitted segment", "file", name, "error", err)
		}
	}
}

func (e *Engine) cleanup() {
	cp, ok, err := segment.ReadCommit(e.cfg.DataDir)
	if err != nil {
		e.logger.Warn("reading commit point for cleanup", "error", err)
		return
	}
	if !ok {
		cp = segment.CommitPoint{}
	}
	removed, err := segment.Cleanup(e.cfg.DataDir, cp)
	if err != nil {
		e.logger.Warn("removing stale segments", "error", err)
	}
	if len(removed) > 0 {
		e.logger.Debug("stale segments removed", "files", removed)
	}
}

// Close stops the engine from accepting further commits. Committed data is
// already durable, so there is nothing to flush.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Info("index closed", "generation", e.Snapshot().generation)
	return nil
}
