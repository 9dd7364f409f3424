package parser

import (
	"strings"
)

// Node is an element of a parsed query tree.
type Node interface {
	// String renders the node in a canonical form. Two queries with the same
	// String have the same meaning.
	String() string
	node()
}

// Term matches one normalized term. Unless it sits under a Field node it
// matches in any schema field.
type Term struct {
	Text string
}

// And matches documents satisfying every positive child and no Not child.
type And struct {
	Children []Node
}

// Or matches documents satisfying at least one child.
type Or struct {
	Children []Node
}

// Not excludes documents matching Child. It only appears inside an And.
type Not struct {
	Child Node
}

// Field restricts Child to one schema field.
type Field struct {
	Name  string
	Child Node
}

func (Term) node()  {}
func (And) node()   {}
func (Or) node()    {}
func (Not) node()   {}
func (Field) node() {}

func (t Term) String() string { return t.Text }

func (a And) String() string { return join(a.Children, " AND ") }

func (o Or) String() string { return join(o.Children, " OR ") }

func (n Not) String() string { return "-" + n.Child.String() }

func (f Field) String() string {
	if _, ok := f.Child.(Term); ok {
		return f.Name + ":" + f.Child.String()
	}
	return f.Name + ":(" + f.Child.String() + ")"
}

func join(children []Node, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// FieldTerm is a positive term together with the field it is restricted to.
// An empty Field means any field.
type FieldTerm struct {
	Field string
	Term  string
}

// Terms lists the distinct positive terms of n in query order. Terms under a
// Not are skipped.
func Terms(n Node) []FieldTerm {
	var out []FieldTerm
	seen := make(map[FieldTerm]struct{})
	var walk func(n Node, field string)
	walk = func(n Node, field string) {
		switch v := n.(type) {
		case Term:
			ft := FieldTerm{Field: field, Term: v.Text}
			if _, ok := seen[ft]; !ok {
				seen[ft] = struct{}{}
				out = append(out, ft)
			}
		case Field:
			walk(v.Child, v.Name)
		case And:
			for _, c := range v.Children {
				walk(c, field)
			}
		case Or:
			for _, c := range v.Children {
				walk(c, field)
			}
		}
	}
	if n != nil {
		walk(n, "")
	}
	return out
}

// TermsIn lists the distinct positive terms of n that can match in field:
// unrestricted terms and terms restricted to that field.
func TermsIn(n Node, field string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, ft := range Terms(n) {
		if ft.Field != "" && ft.Field != field {
			continue
		}
		if _, ok := seen[ft.Term]; ok {
			continue
		}
		seen[ft.Term] = struct{}{}
		out = append(out, ft.Term)
	}
	return out
}
