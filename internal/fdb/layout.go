// Imports and exports the raw bucket array for storage providers.

package fdb

import (
	"fmt"

	"github.com/maruel/fdb/internal/errors"
)

// Layout is a table's bucket array: for each slot, the fields of every row of
// its chain, in chain order. An empty slot is a nil chain.
type Layout [][][]Field

// Layout returns a deep copy of the bucket array.
func (t *Table) Layout() Layout {
	out := make(Layout, len(t.store.slots))
	for slot := range t.store.slots {
		for r := range t.store.chain(slot) {
			fields := make([]Field, len(t.store.rows[r].fields))
			copy(fields, t.store.rows[r].fields)
			out[slot] = append(out[slot], fields)
		}
	}
	return out
}

// NewTableFromLayout returns a table holding exactly the given bucket array.
//
// Rows are placed as given, without rehashing, so a table read from a file
// keeps the placement the file had. The sink is not notified.
func NewTableFromLayout(name string, schema Schema, layout Layout, sink SQLSink) (*Table, error) {
	t, err := NewTable(name, schema, sink)
	if err != nil {
		return nil, err
	}
	t.store.slots = make([]rowRef, len(layout))
	for slot, chain := range layout {
		t.store.slots[slot] = noRow
		for i, fields := range chain {
			if len(fields) != len(schema) {
				return nil, errors.InvalidFormat(fmt.Sprintf("slot %d row %d: got %d fields, want %d", slot, i, len(fields), len(schema))).
					WithDetail("table", name)
			}
			for j, f := range fields {
				if !f.Type.Valid() {
					return nil, errors.UnrecognizedDataType(uint32(f.Type)).
						WithDetail("table", name).
						WithDetail("field", schema[j].Name)
				}
			}
			row := make([]Field, len(fields))
			copy(row, fields)
			t.store.insertAt(slot, t.store.alloc(row))
		}
	}
	return t, nil
}
