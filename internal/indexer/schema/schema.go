// Package schema describes the fixed set of fields an index is built with.
package schema

import (
	"fmt"
	"slices"
	"strings"
)

const (
	FieldFilename = "filename"
	FieldContent  = "content"
)

// Schema is an ordered, validated set of indexed field names.
type Schema struct {
	fields []string
}

// New validates names and returns a Schema that preserves their order.
func New(names ...string) (Schema, error) {
	if len(names) == 0 {
		return Schema{}, fmt.Errorf("schema needs at least one field")
	}
	seen := make(map[string]struct{}, len(names))
	fields := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return Schema{}, fmt.Errorf("empty field name")
		}
		if strings.ContainsAny(name, ": \t\n") {
			return Schema{}, fmt.Errorf("invalid field name %q", name)
		}
		if _, dup := seen[name]; dup {
			return Schema{}, fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	return Schema{fields: fields}, nil
}

// Default is the filename + content schema.
func Default() Schema {
	return Schema{fields: []string{FieldFilename, FieldContent}}
}

func (s Schema) Fields() []string {
	return slices.Clone(s.fields)
}

func (s Schema) Has(field string) bool {
	return slices.Contains(s.fields, field)
}

func (s Schema) Len() int {
	return len(s.fields)
}

func (s Schema) Equal(other []string) bool {
	return slices.Equal(s.fields, other)
}

func (s Schema) String() string {
	return strings.Join(s.fields, ",")
}
