// Bucket array and row chains, stored as an arena of rows addressed by index.

package fdb

import (
	"iter"
)

// rowRef is the index of a row in the arena. noRow ends a chain or marks an
// empty slot.
type rowRef int32

const noRow rowRef = -1

// Field is one typed value of a row.
type Field struct {
	Type  DataType
	Value any
}

// rowNode is a row and its link to the next row of the same slot.
type rowNode struct {
	fields []Field
	next   rowRef
}

// buckets holds the bucket array and every row ever created in the table.
//
// Rows are never freed: an unlinked row keeps its arena index so a Column
// referring to it stays usable and can be linked again.
type buckets struct {
	slots []rowRef
	rows  []rowNode
}

// alloc adds a detached row to the arena.
func (b *buckets) alloc(fields []Field) rowRef {
	b.rows = append(b.rows, rowNode{fields: fields, next: noRow})
	return rowRef(len(b.rows) - 1) //nolint:gosec // G115: arena is bounded by the file's 32-bit indexes.
}

func (b *buckets) node(r rowRef) *rowNode {
	return &b.rows[r]
}

// valid reports whether r is an index into the arena.
func (b *buckets) valid(r rowRef) bool {
	return r >= 0 && int(r) < len(b.rows)
}

// insertAt appends r to the tail of slot's chain, or makes it the head when
// the slot is empty.
func (b *buckets) insertAt(slot int, r rowRef) {
	head := b.slots[slot]
	if head == noRow {
		b.slots[slot] = r
		return
	}
	for b.rows[head].next != noRow {
		head = b.rows[head].next
	}
	b.rows[head].next = r
}

// insertSlot inserts a new slot at index holding the chain starting at r.
func (b *buckets) insertSlot(index int, r rowRef) {
	b.slots = append(b.slots, noRow)
	copy(b.slots[index+1:], b.slots[index:])
	b.slots[index] = r
}

// unlink removes the first occurrence of target from any chain.
//
// The slot head is replaced by its successor when target is a head; otherwise
// the predecessor skips over target. Returns false when target is in no
// chain.
func (b *buckets) unlink(target rowRef) bool {
	for i, head := range b.slots {
		if head == noRow {
			continue
		}
		if head == target {
			b.slots[i] = b.rows[target].next
			b.rows[target].next = noRow
			return true
		}
		for cur := head; cur != noRow; cur = b.rows[cur].next {
			if b.rows[cur].next == target {
				b.rows[cur].next = b.rows[target].next
				b.rows[target].next = noRow
				return true
			}
		}
	}
	return false
}

// chain yields the rows of one slot in chain order.
func (b *buckets) chain(slot int) iter.Seq[rowRef] {
	return func(yield func(rowRef) bool) {
		for cur := b.slots[slot]; cur != noRow; cur = b.rows[cur].next {
			if !yield(cur) {
				return
			}
		}
	}
}

// all yields every linked row, slot-major then chain order. This is the
// table's full enumeration order.
func (b *buckets) all() iter.Seq[rowRef] {
	return func(yield func(rowRef) bool) {
		for slot := range b.slots {
			for r := range b.chain(slot) {
				if !yield(r) {
					return
				}
			}
		}
	}
}

// count returns the number of linked rows.
func (b *buckets) count() int {
	n := 0
	for range b.all() {
		n++
	}
	return n
}

// rehash redistributes every linked row into a new bucket array of
// NextPowerOfTwo(hint) slots, or of the distinct key count when hint is -1.
//
// Rows are detached first so no stale chain survives, then tail-appended in
// full enumeration order. keyOf derives a row's placement key. Tail-append
// makes this quadratic on a fully colliding table; expected tables are small.
func (b *buckets) rehash(hint int, keyOf func(rowRef) (int32, error)) error {
	refs := make([]rowRef, 0, len(b.rows))
	keys := make([]int32, 0, len(b.rows))
	distinct := make(map[int32]struct{})
	for r := range b.all() {
		k, err := keyOf(r)
		if err != nil {
			return err
		}
		refs = append(refs, r)
		keys = append(keys, k)
		distinct[k] = struct{}{}
	}
	if hint == -1 {
		hint = len(distinct)
	}
	n := NextPowerOfTwo(hint)

	slots := make([]rowRef, n)
	for i := range slots {
		slots[i] = noRow
	}
	for _, r := range refs {
		b.rows[r].next = noRow
	}
	b.slots = slots
	for i, r := range refs {
		slot, err := SlotIndex(keys[i], n)
		if err != nil {
			return err
		}
		b.insertAt(slot, r)
	}
	return nil
}
