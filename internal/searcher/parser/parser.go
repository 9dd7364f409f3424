// Package parser turns query strings into query trees.
//
// Grammar, lowest precedence first:
//
//	query := and ("OR" and)*
//	and   := unary (["AND"] unary)*
//	unary := ("NOT" word) | ("-" word) | word
//	word  := [field ":"] text
//
// Operators are matched case-insensitively. Each word is run through the
// index analyzer; a word that yields several terms matches all of them.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind    tokenKind
	field   string
	text    string
	negated bool
}

// Parser parses queries against a fixed schema and analyzer.
type Parser struct {
	schema   schema.Schema
	analyzer *tokenizer.Analyzer
}

func New(sch schema.Schema, analyzer *tokenizer.Analyzer) *Parser {
	return &Parser{schema: sch, analyzer: analyzer}
}

// Parse is shorthand for New(sch, analyzer).Parse(query).
func Parse(query string, sch schema.Schema, analyzer *tokenizer.Analyzer) (Node, error) {
	return New(sch, analyzer).Parse(query)
}

// Parse returns the query tree for query. It fails with ErrEmptyQuery for a
// blank query, *UnknownFieldError for a field outside the schema and
// *ParseError for anything else it cannot interpret.
func (p *Parser) Parse(query string) (Node, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.ErrEmptyQuery
	}
	toks, err := p.lex(query)
	if err != nil {
		return nil, err
	}
	st := &state{p: p, query: query, toks: toks}
	n, err := st.parseOr()
	if err != nil {
		return nil, err
	}
	if st.pos < len(st.toks) {
		return nil, st.fail("unexpected operator")
	}
	if n == nil {
		return nil, &apperrors.ParseError{Query: query, Reason: "no searchable terms"}
	}
	return n, nil
}

func (p *Parser) lex(query string) ([]token, error) {
	words := strings.Fields(query)
	toks := make([]token, 0, len(words))
	for _, w := range words {
		switch strings.ToUpper(w) {
		case "AND":
			toks = append(toks, token{kind: tokAnd})
			continue
		case "OR":
			toks = append(toks, token{kind: tokOr})
			continue
		case "NOT":
			toks = append(toks, token{kind: tokNot})
			continue
		}
		tok := token{kind: tokWord}
		if len(w) > 1 && w[0] == '-' {
			tok.negated = true
			w = w[1:]
		}
		if field, text, ok := strings.Cut(w, ":"); ok && field != "" {
			if !p.schema.Has(field) {
				return nil, &apperrors.UnknownFieldError{Field: field}
			}
			tok.field = field
			w = text
		}
		tok.text = w
		toks = append(toks, tok)
	}
	return toks, nil
}

type state struct {
	p     *Parser
	query string
	toks  []token
	pos   int
}

func (s *state) fail(reason string) error {
	return &apperrors.ParseError{Query: s.query, Reason: reason}
}

func (s *state) peek() (token, bool) {
	if s.pos >= len(s.toks) {
		return token{}, false
	}
	return s.toks[s.pos], true
}

func (s *state) parseOr() (Node, error) {
	if t, ok := s.peek(); ok && (t.kind == tokOr || t.kind == tokAnd) {
		return nil, s.fail("query starts with an operator")
	}
	var children []Node
	for {
		n, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		if n != nil {
			children = append(children, n)
		}
		t, ok := s.peek()
		if !ok || t.kind != tokOr {
			break
		}
		s.pos++
		next, ok := s.peek()
		if !ok {
			return nil, s.fail("OR at end of query")
		}
		if next.kind == tokOr || next.kind == tokAnd {
			return nil, s.fail("OR followed by an operator")
		}
	}
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	}
	return Or{Children: children}, nil
}

func (s *state) parseAnd() (Node, error) {
	var children []Node
	positives, operands := 0, 0
	for {
		t, ok := s.peek()
		if !ok || t.kind == tokOr {
			break
		}
		if t.kind == tokAnd {
			s.pos++
			next, ok := s.peek()
			if !ok {
				return nil, s.fail("AND at end of query")
			}
			if next.kind == tokAnd || next.kind == tokOr {
				return nil, s.fail("AND followed by an operator")
			}
			continue
		}
		n, negated, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		operands++
		if n == nil {
			continue
		}
		if negated {
			children = append(children, Not{Child: n})
			continue
		}
		positives++
		// Multi-term words flatten into the enclosing conjunction.
		if a, ok := n.(And); ok {
			children = append(children, a.Children...)
		} else {
			children = append(children, n)
		}
	}
	if operands == 0 {
		return nil, s.fail("missing operand")
	}
	if len(children) == 0 {
		return nil, nil
	}
	if positives == 0 {
		return nil, s.fail("query needs at least one term that is not excluded")
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return And{Children: children}, nil
}

func (s *state) parseUnary() (Node, bool, error) {
	t := s.toks[s.pos]
	s.pos++
	if t.kind == tokNot {
		next, ok := s.peek()
		if !ok {
			return nil, false, s.fail("NOT at end of query")
		}
		if next.kind != tokWord || next.negated {
			return nil, false, s.fail("NOT must be followed by a term")
		}
		s.pos++
		return s.p.word(next), true, nil
	}
	return s.p.word(t), t.negated, nil
}

// word analyzes one query word. It returns nil when the word has no
// indexable terms.
func (p *Parser) word(t token) Node {
	terms := p.analyzer.Terms(t.text)
	var n Node
	switch len(terms) {
	case 0:
		return nil
	case 1:
		n = Term{Text: terms[0]}
	default:
		children := make([]Node, len(terms))
		for i, term := range terms {
			children[i] = Term{Text: term}
		}
		n = And{Children: children}
	}
	if t.field != "" {
		return Field{Name: t.field, Child: n}
	}
	return n
}
