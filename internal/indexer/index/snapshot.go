// Package index implements the inverted index: per-field sorted term
// dictionaries mapping to doc-ordered posting lists, with the statistics the
// ranker needs. A Snapshot is immutable; mutations go through a Builder that
// produces the next Snapshot.
package index

import (
	"iter"
	"maps"
	"slices"
	"sort"
)

type fieldIndex struct {
	terms    []string
	postings []PostingList
}

func (f *fieldIndex) lookup(term string) (int, bool) {
	i := sort.SearchStrings(f.terms, term)
	return i, i < len(f.terms) && f.terms[i] == term
}

type docEntry struct {
	lengths map[string]int
	terms   map[string][]string
}

func (d docEntry) clone() docEntry {
	out := docEntry{
		lengths: maps.Clone(d.lengths),
		terms:   maps.Clone(d.terms),
	}
	if out.lengths == nil {
		out.lengths = make(map[string]int)
	}
	if out.terms == nil {
		out.terms = make(map[string][]string)
	}
	return out
}

// Snapshot is a read-only view of the index. It is safe for concurrent use.
type Snapshot struct {
	fields      map[string]*fieldIndex
	docs        map[string]docEntry
	fieldTokens map[string]int64
}

// Empty returns a snapshot with no documents.
func Empty() *Snapshot {
	return &Snapshot{
		fields:      make(map[string]*fieldIndex),
		docs:        make(map[string]docEntry),
		fieldTokens: make(map[string]int64),
	}
}

// Postings returns the postings for (field, term), or nil if unseen.
func (s *Snapshot) Postings(field, term string) PostingList {
	fi, ok := s.fields[field]
	if !ok {
		return nil
	}
	i, ok := fi.lookup(term)
	if !ok {
		return nil
	}
	return fi.postings[i]
}

// DocFreq is the number of documents whose field contains term.
func (s *Snapshot) DocFreq(field, term string) int {
	return len(s.Postings(field, term))
}

func (s *Snapshot) TotalDocs() int {
	return len(s.docs)
}

func (s *Snapshot) Has(docID string) bool {
	_, ok := s.docs[docID]
	return ok
}

// FieldLength is the token count of docID's field.
func (s *Snapshot) FieldLength(docID, field string) int {
	return s.docs[docID].lengths[field]
}

// FieldTokens is the total token count of field across all documents.
func (s *Snapshot) FieldTokens(field string) int64 {
	return s.fieldTokens[field]
}

// AvgFieldLength is the mean token count of field over all documents.
func (s *Snapshot) AvgFieldLength(field string) float64 {
	if len(s.docs) == 0 {
		return 0
	}
	return float64(s.fieldTokens[field]) / float64(len(s.docs))
}

// DocTerms returns the distinct terms docID contributed to field.
func (s *Snapshot) DocTerms(docID, field string) []string {
	return slices.Clone(s.docs[docID].terms[field])
}

// TermCount is the number of distinct (field, term) keys.
func (s *Snapshot) TermCount() int {
	n := 0
	for _, fi := range s.fields {
		n += len(fi.terms)
	}
	return n
}

func (s *Snapshot) Stats() Stats {
	return Stats{
		TotalDocs:   len(s.docs),
		TotalTerms:  s.TermCount(),
		FieldTokens: maps.Clone(s.fieldTokens),
	}
}

// Fields returns the names of fields holding at least one term, sorted.
func (s *Snapshot) Fields() []string {
	return slices.Sorted(maps.Keys(s.fields))
}

// Entries yields every (field, term) entry ordered by field then term.
func (s *Snapshot) Entries() iter.Seq[TermEntry] {
	return func(yield func(TermEntry) bool) {
		for _, field := range s.Fields() {
			fi := s.fields[field]
			for i, term := range fi.terms {
				if !yield(TermEntry{Field: field, Term: term, Postings: fi.postings[i]}) {
					return
				}
			}
		}
	}
}

// DocRecords returns per-document field lengths ordered by document id.
func (s *Snapshot) DocRecords() []DocRecord {
	ids := slices.Sorted(maps.Keys(s.docs))
	records := make([]DocRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, DocRecord{ID: id, Lengths: maps.Clone(s.docs[id].lengths)})
	}
	return records
}

// Load rebuilds a snapshot from persisted entries and document records.
// Entries may arrive in any order; postings must already be sorted.
func Load(entries []TermEntry, records []DocRecord) *Snapshot {
	s := Empty()
	for _, rec := range records {
		lengths := maps.Clone(rec.Lengths)
		if lengths == nil {
			lengths = make(map[string]int)
		}
		s.docs[rec.ID] = docEntry{lengths: lengths, terms: make(map[string][]string)}
		for field, n := range lengths {
			s.fieldTokens[field] += int64(n)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	for _, e := range entries {
		if len(e.Postings) == 0 {
			continue
		}
		fi, ok := s.fields[e.Field]
		if !ok {
			fi = &fieldIndex{}
			s.fields[e.Field] = fi
		}
		fi.terms = append(fi.terms, e.Term)
		fi.postings = append(fi.postings, e.Postings)
		for _, p := range e.Postings {
			doc, ok := s.docs[p.DocID]
			if !ok {
				doc = docEntry{lengths: make(map[string]int), terms: make(map[string][]string)}
				s.docs[p.DocID] = doc
			}
			doc.terms[e.Field] = append(doc.terms[e.Field], e.Term)
		}
	}
	return s
}
