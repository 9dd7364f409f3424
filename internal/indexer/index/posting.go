package index

import "sort"

// Posting records one document's occurrences of a term within a field.
type Posting struct {
	DocID     string `json:"d"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p,omitempty"`
}

// PostingList is sorted by DocID. Lists handed out by a Snapshot are shared
// and must not be modified.
type PostingList []Posting

// TermEntry is a (field, term) key with its postings.
type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// DocRecord carries the per-field token counts of one document.
type DocRecord struct {
	ID      string         `json:"id"`
	Lengths map[string]int `json:"lengths"`
}

// Stats summarises an index snapshot.
type Stats struct {
	TotalDocs   int              `json:"total_docs"`
	TotalTerms  int              `json:"total_terms"`
	FieldTokens map[string]int64 `json:"field_tokens"`
}

// Find returns the index of docID and whether it is present.
func (pl PostingList) Find(docID string) (int, bool) {
	i := sort.Search(len(pl), func(i int) bool {
		return pl[i].DocID >= docID
	})
	return i, i < len(pl) && pl[i].DocID == docID
}

// Get returns the posting for docID.
func (pl PostingList) Get(docID string) (Posting, bool) {
	i, ok := pl.Find(docID)
	if !ok {
		return Posting{}, false
	}
	return pl[i], true
}

// with returns a copy of pl with p inserted or replacing the existing posting
// for p.DocID.
func (pl PostingList) with(p Posting) PostingList {
	i, ok := pl.Find(p.DocID)
	if ok {
		out := make(PostingList, len(pl))
		copy(out, pl)
		out[i] = p
		return out
	}
	out := make(PostingList, 0, len(pl)+1)
	out = append(out, pl[:i]...)
	out = append(out, p)
	out = append(out, pl[i:]...)
	return out
}

// without returns a copy of pl lacking docID, or pl itself if docID is absent.
func (pl PostingList) without(docID string) PostingList {
	i, ok := pl.Find(docID)
	if !ok {
		return pl
	}
	out := make(PostingList, 0, len(pl)-1)
	out = append(out, pl[:i]...)
	out = append(out, pl[i+1:]...)
	return out
}
