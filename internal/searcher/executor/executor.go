// Package executor evaluates query trees against an index snapshot and ranks
// the matching documents.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Result is the ranked outcome of one query.
type Result struct {
	TotalHits int                `json:"total_hits"`
	Hits      []ranker.ScoredDoc `json:"hits"`
	TermStats map[string]int     `json:"term_stats,omitempty"`
}

type Executor struct {
	params ranker.Params
	logger *slog.Logger
}

func New(params ranker.Params) *Executor {
	return &Executor{
		params: params,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute returns the top limit documents of snap matching n. Documents are
// ordered by descending BM25 score, ties by ascending id. No match yields an
// empty result.
func (e *Executor) Execute(ctx context.Context, snap *index.Snapshot, n parser.Node, limit int) (*Result, error) {
	if limit <= 0 {
		return nil, apperrors.ErrInvalidLimit
	}
	ev := &evaluator{ctx: ctx, snap: snap, fields: snap.Fields()}
	matched, err := ev.eval(n, "")
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return &Result{Hits: []ranker.ScoredDoc{}}, nil
	}

	scores := make(map[string]float64, len(matched))
	for _, id := range matched {
		scores[id] = 0
	}
	// A bare term and field:term can name the same (field, term) pair; each
	// pair contributes once.
	var pairs [][2]string
	seen := make(map[[2]string]struct{})
	for _, ft := range parser.Terms(n) {
		fields := ev.fields
		if ft.Field != "" {
			fields = []string{ft.Field}
		}
		for _, field := range fields {
			pair := [2]string{field, ft.Term}
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			pairs = append(pairs, pair)
		}
	}

	termStats := make(map[string]int)
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		field, term := pair[0], pair[1]
		pl := snap.Postings(field, term)
		if len(pl) == 0 {
			continue
		}
		termStats[field+":"+term] = len(pl)
		idf := ranker.IDF(snap.TotalDocs(), len(pl))
		avg := snap.AvgFieldLength(field)
		for _, p := range pl {
			if _, ok := scores[p.DocID]; !ok {
				continue
			}
			scores[p.DocID] += idf * e.params.TFNorm(p.Frequency, snap.FieldLength(p.DocID, field), avg)
		}
	}

	hits := ranker.TopK(func(yield func(ranker.ScoredDoc) bool) {
		for _, id := range matched {
			if !yield(ranker.ScoredDoc{DocID: id, Score: scores[id]}) {
				return
			}
		}
	}, limit)

	e.logger.Debug("query executed",
		"query", n.String(),
		"candidates", len(matched),
		"results", len(hits),
	)
	return &Result{TotalHits: len(matched), Hits: hits, TermStats: termStats}, nil
}

type evaluator struct {
	ctx    context.Context
	snap   *index.Snapshot
	fields []string
}

// eval returns the sorted ids of documents matching n. field, when set,
// restricts terms to that field.
func (ev *evaluator) eval(n parser.Node, field string) ([]string, error) {
	switch v := n.(type) {
	case parser.Term:
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		if field != "" {
			return docIDs(ev.snap.Postings(field, v.Text)), nil
		}
		var out []string
		for _, f := range ev.fields {
			out = union(out, docIDs(ev.snap.Postings(f, v.Text)))
		}
		return out, nil
	case parser.Field:
		return ev.eval(v.Child, v.Name)
	case parser.Or:
		var out []string
		for _, c := range v.Children {
			ids, err := ev.eval(c, field)
			if err != nil {
				return nil, err
			}
			out = union(out, ids)
		}
		return out, nil
	case parser.And:
		var positive, negative []parser.Node
		for _, c := range v.Children {
			if not, ok := c.(parser.Not); ok {
				negative = append(negative, not.Child)
			} else {
				positive = append(positive, c)
			}
		}
		if len(positive) == 0 {
			return nil, fmt.Errorf("%w: conjunction without positive terms", apperrors.ErrParse)
		}
		out, err := ev.eval(positive[0], field)
		if err != nil {
			return nil, err
		}
		for _, c := range positive[1:] {
			if len(out) == 0 {
				return nil, nil
			}
			ids, err := ev.eval(c, field)
			if err != nil {
				return nil, err
			}
			out = intersect(out, ids)
		}
		for _, c := range negative {
			if len(out) == 0 {
				return nil, nil
			}
			ids, err := ev.eval(c, field)
			if err != nil {
				return nil, err
			}
			out = difference(out, ids)
		}
		return out, nil
	case parser.Not:
		return nil, fmt.Errorf("%w: exclusion outside a conjunction", apperrors.ErrParse)
	case nil:
		return nil, fmt.Errorf("%w: empty query tree", apperrors.ErrParse)
	default:
		return nil, fmt.Errorf("%w: unsupported node %T", apperrors.ErrParse, n)
	}
}

func docIDs(pl index.PostingList) []string {
	if len(pl) == 0 {
		return nil
	}
	out := make([]string, len(pl))
	for i, p := range pl {
		out[i] = p.DocID
	}
	return out
}

// intersect, union and difference merge two sorted id lists.
func intersect(a, b []string) []string {
	out := make([]string, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func union(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func difference(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a))
	j := 0
	for _, id := range a {
		for j < len(b) && b[j] < id {
			j++
		}
		if j < len(b) && b[j] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}
