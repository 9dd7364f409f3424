package indexer

import "fmt"

type opKind int

const (
	opIndex opKind = iota
	opDelete
)

type op struct {
	kind   opKind
	doc    Document
	id     string
	strict bool
}

// Batch collects index and delete operations that Commit applies
// atomically, in order. The zero value is ready to use.
type Batch struct {
	ops []op
}

// Index queues doc for addition or replacement.
func (b *Batch) Index(doc Document) {
	b.ops = append(b.ops, op{kind: opIndex, doc: doc, id: doc.ID})
}

// Delete queues removal of id. Deleting an absent id is a no-op.
func (b *Batch) Delete(id string) {
	b.ops = append(b.ops, op{kind: opDelete, id: id})
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Reset empties the batch for reuse.
func (b *Batch) Reset() {
	b.ops = b.ops[:0]
}

func (b *Batch) label() string {
	if len(b.ops) == 1 {
		return b.ops[0].id
	}
	return fmt.Sprintf("batch of %d", len(b.ops))
}
