// Package searcher answers keyword queries against the current committed
// generation of an index: it parses, executes, ranks, highlights and
// optionally caches the response.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Source supplies committed snapshots; *indexer.Engine implements it.
type Source interface {
	Snapshot() *indexer.Snapshot
	Schema() schema.Schema
	Analyzer() *tokenizer.Analyzer
}

type Hit struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Score     float64   `json:"score"`
	Snippets  []string  `json:"snippets"`
	Highlight string    `json:"highlight"`
	IndexedAt time.Time `json:"indexed_at"`
}

type Response struct {
	Query      string `json:"query"`
	Total      int    `json:"total"`
	Hits       []Hit  `json:"hits"`
	Generation uint64 `json:"generation"`
	Cached     bool   `json:"cached"`
}

type Option func(*Searcher)

// WithCache memoises responses in c.
func WithCache(c *cache.QueryCache[Response]) Option {
	return func(s *Searcher) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

type Searcher struct {
	source  Source
	exec    *executor.Executor
	cfg     config.SearchConfig
	cache   *cache.QueryCache[Response]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(src Source, cfg config.SearchConfig, opts ...Option) *Searcher {
	s := &Searcher{
		source: src,
		exec:   executor.New(ranker.Params{K1: cfg.K1, B: cfg.B}),
		cfg:    cfg,
		logger: slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs query against the current generation. A zero limit selects the
// configured default; limits above the configured maximum are clamped.
// Searches slower than the configured threshold log their phase timings.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (*Response, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	resp, err := s.search(ctx, query, limit)
	span.End()
	elapsed := time.Since(start)
	log := logger.FromContext(ctx)
	if s.cfg.SlowQuery > 0 && elapsed >= s.cfg.SlowQuery {
		span.SetAttr("query", query)
		span.Log(ctx, log, slog.LevelWarn)
	}

	switch {
	case err != nil && apperrors.HTTPStatusCode(err) == http.StatusBadRequest:
		s.metrics.ObserveSearch("invalid", "none", elapsed, 0)
	case err != nil:
		s.metrics.ObserveSearch("error", "none", elapsed, 0)
	case resp.Total == 0:
		s.metrics.ObserveSearch("zero_result", cacheStatus(resp.Cached), elapsed, 0)
	default:
		s.metrics.ObserveSearch("hit", cacheStatus(resp.Cached), elapsed, len(resp.Hits))
	}
	if err != nil {
		return nil, err
	}
	log.Info("search completed",
		"query", resp.Query,
		"total_hits", resp.Total,
		"returned", len(resp.Hits),
		"generation", resp.Generation,
		"cached", resp.Cached,
		"latency_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

func (s *Searcher) search(ctx context.Context, query string, limit int) (*Response, error) {
	switch {
	case limit == 0:
		limit = s.cfg.DefaultLimit
	case limit < 0:
		return nil, apperrors.ErrInvalidLimit
	case s.cfg.MaxResults > 0 && limit > s.cfg.MaxResults:
		limit = s.cfg.MaxResults
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	snap := s.source.Snapshot()
	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	node, err := parser.Parse(query, s.source.Schema(), s.source.Analyzer())
	parseSpan.End()
	if err != nil {
		return nil, err
	}

	compute := func() (Response, error) {
		ctx, span := tracing.StartChildSpan(ctx, "execute")
		defer span.End()
		return s.execute(ctx, snap, node, limit)
	}
	var resp Response
	if s.cache != nil {
		key := cache.Key{Generation: snap.Generation(), Query: node.String(), Limit: limit}
		var hit bool
		resp, hit, err = s.cache.GetOrCompute(ctx, key, compute)
		resp.Cached = hit
	} else {
		resp, err = compute()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
		}
		return nil, err
	}
	return &resp, nil
}

func (s *Searcher) execute(ctx context.Context, snap *indexer.Snapshot, node parser.Node, limit int) (Response, error) {
	res, err := s.exec.Execute(ctx, snap.Index(), node, limit)
	if err != nil {
		return Response{}, err
	}
	if span := tracing.FromContext(ctx); span != nil {
		span.SetAttr("total_hits", res.TotalHits)
	}
	_, hlSpan := tracing.StartChildSpan(ctx, "highlight")
	defer hlSpan.End()
	terms := parser.TermsIn(node, s.cfg.SnippetField)
	opts := highlight.Options{MaxFragments: s.cfg.MaxFragments, FragmentTokens: s.cfg.FragmentTokens}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc, err := snap.Docs().Get(h.DocID)
		if err != nil {
			// Index and store are committed together; a gap means a broken
			// generation.
			s.logger.Error("stored document missing", "doc_id", h.DocID, "generation", snap.Generation())
			return Response{}, fmt.Errorf("%w: %s indexed without stored fields", apperrors.ErrInternal, h.DocID)
		}
		frags := highlight.Highlight(doc.Fields[s.cfg.SnippetField], terms, s.source.Analyzer(), opts)
		snippets := make([]string, len(frags))
		for i, f := range frags {
			snippets[i] = f.MarkedHTML(s.cfg.PreTag, s.cfg.PostTag)
		}
		hits = append(hits, Hit{
			ID:        doc.ID,
			Filename:  doc.Filename,
			Score:     h.Score,
			Snippets:  snippets,
			Highlight: strings.Join(snippets, highlight.Separator),
			IndexedAt: doc.IndexedAt,
		})
	}
	return Response{
		Query:      node.String(),
		Total:      res.TotalHits,
		Hits:       hits,
		Generation: snap.Generation(),
	}, nil
}

// ListDocuments returns every stored document in insertion order.
func (s *Searcher) ListDocuments() []docstore.Summary {
	return s.source.Snapshot().Docs().List()
}

// Get returns the stored record of id.
func (s *Searcher) Get(id string) (docstore.Document, error) {
	return s.source.Snapshot().Docs().Get(id)
}

// InvalidateCache drops every cached response. It is a no-op without a cache.
func (s *Searcher) InvalidateCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.Invalidate(ctx)
}

// CacheStats reports cache counters; ok is false without a cache.
func (s *Searcher) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

func cacheStatus(cached bool) string {
	if cached {
		return "hit"
	}
	return "miss"
}
