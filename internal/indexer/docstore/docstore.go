// Package docstore keeps the stored field values of every indexed document,
// keyed by document id. Snippets are cut from these values. Like the
// inverted index it is split into an immutable Snapshot and a Builder.
package docstore

import (
	"maps"
	"slices"
	"sort"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Document is a stored record. Fields holds the raw text of every indexed
// field; Seq orders documents by their last put.
type Document struct {
	ID        string            `json:"id"`
	Filename  string            `json:"filename"`
	Fields    map[string]string `json:"fields"`
	IndexedAt time.Time         `json:"indexed_at"`
	Seq       uint64            `json:"seq"`
}

// Summary is the listing view of a document.
type Summary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Snapshot is an immutable view of the store.
type Snapshot struct {
	docs    map[string]*Document
	order   []string
	nextSeq uint64
}

// Empty returns a store with no documents.
func Empty() *Snapshot {
	return &Snapshot{docs: make(map[string]*Document), nextSeq: 1}
}

// Load rebuilds a snapshot from persisted documents.
func Load(docs []Document) *Snapshot {
	s := Empty()
	for i := range docs {
		d := docs[i]
		s.docs[d.ID] = &d
		if d.Seq >= s.nextSeq {
			s.nextSeq = d.Seq + 1
		}
	}
	s.order = orderBySeq(s.docs)
	return s
}

// Get returns the stored document or ErrDocumentNotFound. The returned value
// is a copy.
func (s *Snapshot) Get(id string) (Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return Document{}, apperrors.ErrDocumentNotFound
	}
	out := *d
	out.Fields = maps.Clone(d.Fields)
	return out, nil
}

// Field returns one stored field of id without copying the whole record.
func (s *Snapshot) Field(id, field string) (string, bool) {
	d, ok := s.docs[id]
	if !ok {
		return "", false
	}
	text, ok := d.Fields[field]
	return text, ok
}

// Filename returns the display name of id.
func (s *Snapshot) Filename(id string) string {
	if d, ok := s.docs[id]; ok {
		return d.Filename
	}
	return ""
}

func (s *Snapshot) Has(id string) bool {
	_, ok := s.docs[id]
	return ok
}

func (s *Snapshot) Len() int {
	return len(s.docs)
}

// List returns document summaries in insertion order.
func (s *Snapshot) List() []Summary {
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		d := s.docs[id]
		out = append(out, Summary{ID: d.ID, Filename: d.Filename, IndexedAt: d.IndexedAt})
	}
	return out
}

// Documents returns full copies of every document in insertion order.
func (s *Snapshot) Documents() []Document {
	out := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		d := *s.docs[id]
		d.Fields = maps.Clone(d.Fields)
		out = append(out, d)
	}
	return out
}

// Builder records puts and deletes against a base snapshot.
type Builder struct {
	base    *Snapshot
	docs    map[string]*Document
	nextSeq uint64
}

func NewBuilder(base *Snapshot) *Builder {
	if base == nil {
		base = Empty()
	}
	return &Builder{base: base, nextSeq: base.nextSeq}
}

func (b *Builder) ensure() {
	if b.docs == nil {
		b.docs = maps.Clone(b.base.docs)
		if b.docs == nil {
			b.docs = make(map[string]*Document)
		}
	}
}

// Put stores doc, replacing any record with the same id. A replaced document
// moves to the end of the listing order.
func (b *Builder) Put(id, filename string, fields map[string]string, indexedAt time.Time) {
	b.ensure()
	b.docs[id] = &Document{
		ID:        id,
		Filename:  filename,
		Fields:    maps.Clone(fields),
		IndexedAt: indexedAt,
		Seq:       b.nextSeq,
	}
	b.nextSeq++
}

// Delete removes id and reports whether it existed.
func (b *Builder) Delete(id string) bool {
	if !b.Has(id) {
		return false
	}
	b.ensure()
	delete(b.docs, id)
	return true
}

func (b *Builder) Has(id string) bool {
	if b.docs != nil {
		_, ok := b.docs[id]
		return ok
	}
	return b.base.Has(id)
}

func (b *Builder) Dirty() bool {
	return b.docs != nil
}

// Build returns the snapshot with pending changes applied.
func (b *Builder) Build() *Snapshot {
	if !b.Dirty() {
		return b.base
	}
	snap := &Snapshot{
		docs:    b.docs,
		order:   orderBySeq(b.docs),
		nextSeq: b.nextSeq,
	}
	b.base = snap
	b.docs = nil
	return snap
}

func orderBySeq(docs map[string]*Document) []string {
	ids := slices.Collect(maps.Keys(docs))
	sort.Slice(ids, func(i, j int) bool {
		return docs[ids[i]].Seq < docs[ids[j]].Seq
	})
	return ids
}
