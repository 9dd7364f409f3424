package index

import (
	"iter"
	"maps"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// Builder accumulates mutations against a base snapshot. The base is never
// modified; Build merges the changes into a new Snapshot. A Builder is not
// safe for concurrent use.
type Builder struct {
	base        *Snapshot
	overlay     map[string]map[string]PostingList
	docs        map[string]docEntry
	fieldTokens map[string]int64
}

// NewBuilder starts a mutation set on top of base.
func NewBuilder(base *Snapshot) *Builder {
	if base == nil {
		base = Empty()
	}
	return &Builder{
		base:    base,
		overlay: make(map[string]map[string]PostingList),
	}
}

func (b *Builder) postings(field, term string) PostingList {
	if terms, ok := b.overlay[field]; ok {
		if pl, ok := terms[term]; ok {
			return pl
		}
	}
	return b.base.Postings(field, term)
}

func (b *Builder) setPostings(field, term string, pl PostingList) {
	terms, ok := b.overlay[field]
	if !ok {
		terms = make(map[string]PostingList)
		b.overlay[field] = terms
	}
	terms[term] = pl
}

func (b *Builder) ensureDocs() {
	if b.docs != nil {
		return
	}
	b.docs = maps.Clone(b.base.docs)
	if b.docs == nil {
		b.docs = make(map[string]docEntry)
	}
	b.fieldTokens = maps.Clone(b.base.fieldTokens)
	if b.fieldTokens == nil {
		b.fieldTokens = make(map[string]int64)
	}
}

func (b *Builder) lookupDoc(docID string) (docEntry, bool) {
	if b.docs != nil {
		d, ok := b.docs[docID]
		return d, ok
	}
	d, ok := b.base.docs[docID]
	return d, ok
}

// Has reports whether docID is present with pending changes applied.
func (b *Builder) Has(docID string) bool {
	_, ok := b.lookupDoc(docID)
	return ok
}

// Upsert replaces every posting of (docID, field) with the given tokens. The
// document is registered even when tokens is empty.
func (b *Builder) Upsert(docID, field string, tokens iter.Seq[tokenizer.Token]) {
	b.ensureDocs()
	doc, exists := b.docs[docID]
	if exists {
		doc = doc.clone()
		b.purgeField(docID, field, doc)
	} else {
		doc = docEntry{lengths: make(map[string]int), terms: make(map[string][]string)}
	}

	grouped := make(map[string]*Posting)
	length := 0
	for tok := range tokens {
		p, ok := grouped[tok.Term]
		if !ok {
			p = &Posting{DocID: docID, Positions: make([]int, 0, 2)}
			grouped[tok.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, tok.Position)
		length++
	}

	terms := make([]string, 0, len(grouped))
	for term, p := range grouped {
		b.setPostings(field, term, b.postings(field, term).with(*p))
		terms = append(terms, term)
	}
	sort.Strings(terms)

	doc.lengths[field] = length
	if len(terms) > 0 {
		doc.terms[field] = terms
	} else {
		delete(doc.terms, field)
	}
	b.fieldTokens[field] += int64(length)
	b.docs[docID] = doc
}

// Remove purges docID from every field. It reports whether the document was
// present.
func (b *Builder) Remove(docID string) bool {
	if _, ok := b.lookupDoc(docID); !ok {
		return false
	}
	b.ensureDocs()
	doc := b.docs[docID].clone()
	for field := range doc.lengths {
		b.purgeField(docID, field, doc)
	}
	for field := range doc.terms {
		b.purgeField(docID, field, doc)
	}
	delete(b.docs, docID)
	return true
}

// purgeField drops docID's postings for field, once per distinct term, and
// takes its length out of the field statistics. doc must be a private copy.
func (b *Builder) purgeField(docID, field string, doc docEntry) {
	for _, term := range doc.terms[field] {
		b.setPostings(field, term, b.postings(field, term).without(docID))
	}
	b.fieldTokens[field] -= int64(doc.lengths[field])
	if b.fieldTokens[field] <= 0 {
		delete(b.fieldTokens, field)
	}
	delete(doc.terms, field)
	delete(doc.lengths, field)
}

// Dirty reports whether any mutation has been recorded.
func (b *Builder) Dirty() bool {
	return b.docs != nil
}

// Build returns the snapshot with all pending mutations applied.
func (b *Builder) Build() *Snapshot {
	if !b.Dirty() {
		return b.base
	}
	fields := make(map[string]*fieldIndex, len(b.base.fields)+len(b.overlay))
	for name, fi := range b.base.fields {
		fields[name] = fi
	}
	for name, changed := range b.overlay {
		merged := mergeField(b.base.fields[name], changed)
		if len(merged.terms) == 0 {
			delete(fields, name)
			continue
		}
		fields[name] = merged
	}
	snap := &Snapshot{
		fields:      fields,
		docs:        b.docs,
		fieldTokens: b.fieldTokens,
	}
	// Further mutations start from the built snapshot so it stays immutable.
	b.base = snap
	b.overlay = make(map[string]map[string]PostingList)
	b.docs = nil
	b.fieldTokens = nil
	return snap
}

// mergeField overlays changed terms on base, dropping terms whose postings
// became empty. Both inputs stay untouched.
func mergeField(base *fieldIndex, changed map[string]PostingList) *fieldIndex {
	if base == nil {
		base = &fieldIndex{}
	}
	changedTerms := slices.Sorted(maps.Keys(changed))
	out := &fieldIndex{
		terms:    make([]string, 0, len(base.terms)+len(changedTerms)),
		postings: make([]PostingList, 0, len(base.terms)+len(changedTerms)),
	}
	appendTerm := func(term string, pl PostingList) {
		if len(pl) == 0 {
			return
		}
		out.terms = append(out.terms, term)
		out.postings = append(out.postings, pl)
	}
	i, j := 0, 0
	for i < len(base.terms) || j < len(changedTerms) {
		switch {
		case j >= len(changedTerms) || (i < len(base.terms) && base.terms[i] < changedTerms[j]):
			appendTerm(base.terms[i], base.postings[i])
			i++
		case i >= len(base.terms) || changedTerms[j] < base.terms[i]:
			appendTerm(changedTerms[j], changed[changedTerms[j]])
			j++
		default:
			appendTerm(changedTerms[j], changed[changedTerms[j]])
			i++
			j++
		}
	}
	return out
}
