// Package highlight selects the passages of a field that best show why a
// document matched a query.
package highlight

import (
	"html"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

const (
	DefaultMaxFragments   = 3
	DefaultFragmentTokens = 20
	DefaultPreTag         = "<b>"
	DefaultPostTag        = "</b>"
	Separator             = "..."
)

type Options struct {
	MaxFragments   int
	FragmentTokens int
}

func DefaultOptions() Options {
	return Options{MaxFragments: DefaultMaxFragments, FragmentTokens: DefaultFragmentTokens}
}

// Span is a byte range relative to Fragment.Text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Fragment is a contiguous slice of the original text. Start and End are byte
// offsets into that text.
type Fragment struct {
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Matches []Span `json:"matches,omitempty"`
}

// Marked wraps every match in pre and post. The text is not escaped.
func (f Fragment) Marked(pre, post string) string {
	return f.render(pre, post, func(s string) string { return s })
}

// MarkedHTML is Marked with the fragment text HTML-escaped. The tags are
// written as given.
func (f Fragment) MarkedHTML(pre, post string) string {
	return f.render(pre, post, html.EscapeString)
}

func (f Fragment) render(pre, post string, escape func(string) string) string {
	var sb strings.Builder
	last := 0
	for _, m := range f.Matches {
		sb.WriteString(escape(f.Text[last:m.Start]))
		sb.WriteString(pre)
		sb.WriteString(escape(f.Text[m.Start:m.End]))
		sb.WriteString(post)
		last = m.End
	}
	sb.WriteString(escape(f.Text[last:]))
	return sb.String()
}

type window struct {
	start, end int // token indexes, end exclusive
	distinct   int
	matches    int
}

func (w window) overlaps(o window) bool {
	return w.start < o.end && o.start < w.end
}

// Highlight returns up to opts.MaxFragments non-overlapping fragments of text
// centred on tokens whose term is in terms, ordered by position. Windows
// covering more distinct terms win, then windows with more matches, then
// earlier ones. When nothing matches the leading window is returned. Text
// without tokens yields nil.
func Highlight(text string, terms []string, analyzer *tokenizer.Analyzer, opts Options) []Fragment {
	if opts.MaxFragments <= 0 {
		opts.MaxFragments = DefaultMaxFragments
	}
	if opts.FragmentTokens <= 0 {
		opts.FragmentTokens = DefaultFragmentTokens
	}

	tokens := analyzer.Collect(text)
	if len(tokens) == 0 {
		return nil
	}
	size := min(opts.FragmentTokens, len(tokens))

	wanted := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		wanted[t] = struct{}{}
	}
	matched := make([]bool, len(tokens))
	var hits []int
	for i, tok := range tokens {
		if _, ok := wanted[tok.Term]; ok {
			matched[i] = true
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return []Fragment{fragment(text, tokens, matched, 0, size)}
	}

	seen := make(map[int]struct{}, len(hits))
	candidates := make([]window, 0, len(hits))
	for _, h := range hits {
		start := min(max(h-size/2, 0), len(tokens)-size)
		if _, ok := seen[start]; ok {
			continue
		}
		seen[start] = struct{}{}
		w := window{start: start, end: start + size}
		distinct := make(map[string]struct{})
		for i := w.start; i < w.end; i++ {
			if matched[i] {
				w.matches++
				distinct[tokens[i].Term] = struct{}{}
			}
		}
		w.distinct = len(distinct)
		candidates = append(candidates, w)
	}
	slices.SortFunc(candidates, func(a, b window) int {
		if a.distinct != b.distinct {
			return b.distinct - a.distinct
		}
		if a.matches != b.matches {
			return b.matches - a.matches
		}
		return a.start - b.start
	})

	var chosen []window
	for _, c := range candidates {
		if len(chosen) == opts.MaxFragments {
			break
		}
		if slices.ContainsFunc(chosen, c.overlaps) {
			continue
		}
		chosen = append(chosen, c)
	}
	slices.SortFunc(chosen, func(a, b window) int { return a.start - b.start })

	out := make([]Fragment, len(chosen))
	for i, w := range chosen {
		out[i] = fragment(text, tokens, matched, w.start, w.end)
	}
	return out
}

func fragment(text string, tokens []tokenizer.Token, matched []bool, from, to int) Fragment {
	start, end := tokens[from].Start, tokens[to-1].End
	f := Fragment{Text: text[start:end], Start: start, End: end}
	for i := from; i < to; i++ {
		if matched[i] {
			f.Matches = append(f.Matches, Span{Start: tokens[i].Start - start, End: tokens[i].End - start})
		}
	}
	return f
}
