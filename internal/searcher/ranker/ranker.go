// Package ranker implements BM25 scoring and top-K selection.
package ranker

import (
	"container/heap"
	"iter"
	"math"
)

// Params are the BM25 constants.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns k1=1.2, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// IDF is ln((N - df + 0.5)/(df + 0.5) + 1), which stays positive for every
// df <= N.
func IDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// TFNorm saturates a raw term frequency and normalizes it by field length.
func (p Params) TFNorm(termFreq, fieldLength int, avgFieldLength float64) float64 {
	if termFreq <= 0 {
		return 0
	}
	lengthRatio := 1.0
	if avgFieldLength > 0 {
		lengthRatio = float64(fieldLength) / avgFieldLength
	}
	tf := float64(termFreq)
	denominator := tf + p.K1*(1-p.B+p.B*lengthRatio)
	return (tf * (p.K1 + 1)) / denominator
}

// Score is the BM25 contribution of one (field, term) match.
func (p Params) Score(termFreq, fieldLength int, avgFieldLength float64, totalDocs, docFreq int) float64 {
	return IDF(totalDocs, docFreq) * p.TFNorm(termFreq, fieldLength, avgFieldLength)
}

// Better reports whether a ranks before b: higher score first, then lower
// document id.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// TopK returns the best limit documents of docs in rank order, using a
// bounded min-heap.
func TopK(docs iter.Seq[ScoredDoc], limit int) []ScoredDoc {
	if limit <= 0 {
		return []ScoredDoc{}
	}
	h := &scoredDocHeap{}
	for doc := range docs {
		if h.Len() < limit {
			heap.Push(h, doc)
			continue
		}
		if Better(doc, (*h)[0]) {
			(*h)[0] = doc
			heap.Fix(h, 0)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

// scoredDocHeap keeps the worst-ranked document at the root.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return Better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
