// Package tokenizer turns field text into normalised terms. Text is split on
// non-alphanumeric boundaries, case-folded and stripped of diacritics; the
// "english" analyzer additionally drops stop-words and applies a simple
// suffix stemmer. The same Analyzer must be used at index and query time.
package tokenizer

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	Standard = "standard"
	English  = "english"
)

// Token is a single normalised term. Position is the zero-based token index
// within the field; Start and End are byte offsets into the original text.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Analyzer produces tokens for a field. Implementations must be safe for
// concurrent use.
type Analyzer struct {
	name      string
	stopWords map[string]struct{}
	stem      bool
}

// New returns the analyzer registered under name.
func New(name string) (*Analyzer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Standard:
		return &Analyzer{name: Standard}, nil
	case English:
		return &Analyzer{name: English, stopWords: stopWords, stem: true}, nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
}

// Default returns the standard analyzer.
func Default() *Analyzer {
	return &Analyzer{name: Standard}
}

func (a *Analyzer) Name() string {
	return a.name
}

// Tokenize returns a lazy sequence over the tokens of text. Ranging over the
// sequence again restarts tokenisation from the beginning.
func (a *Analyzer) Tokenize(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		pos := 0
		for start, end := range words(text) {
			term := a.normalize(text[start:end])
			if term == "" {
				continue
			}
			if !yield(Token{Term: term, Position: pos, Start: start, End: end}) {
				return
			}
			pos++
		}
	}
}

// Collect materialises every token of text.
func (a *Analyzer) Collect(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	for tok := range a.Tokenize(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Terms returns only the normalised terms of text, in order.
func (a *Analyzer) Terms(text string) []string {
	terms := make([]string, 0, 4)
	for tok := range a.Tokenize(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

func (a *Analyzer) normalize(word string) string {
	term := Fold(word)
	if term == "" {
		return ""
	}
	if a.stopWords != nil {
		if _, isStop := a.stopWords[term]; isStop {
			return ""
		}
	}
	if a.stem {
		term = stem(term)
	}
	return term
}

// Fold lower-cases word and removes combining marks.
func Fold(word string) string {
	if isASCII(word) {
		return strings.ToLower(word)
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, word)
	if err != nil {
		folded = word
	}
	return strings.ToLower(folded)
}

// words yields the byte ranges of maximal runs of word runes in text.
func words(text string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		start := -1
		for i, r := range text {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(start, i) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(start, len(text))
		}
	}
}

func isWordRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
