package fdb

import (
	stderrors "errors"
	"iter"

	"github.com/maruel/fdb/internal/errors"
)

// SizeToKeys is the Resize hint sizing the bucket array to the number of
// distinct keys.
const SizeToKeys = -1

// Table is the row container of one table: a bucket array of row chains.
//
// Not safe for concurrent use; callers serialize access per table.
type Table struct {
	name   string
	schema Schema
	store  buckets
	sink   SQLSink
}

// NewTable returns an empty table with an empty bucket array.
//
// sink receives an INSERT statement for every created row; nil discards them.
func NewTable(name string, schema Schema, sink SQLSink) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = DiscardSQL
	}
	s := make(Schema, len(schema))
	copy(s, schema)
	return &Table{name: name, schema: s, sink: sink}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// SetName renames the table.
func (t *Table) SetName(name string) {
	t.name = name
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.name
}

// Schema returns a copy of the field list.
func (t *Table) Schema() Schema {
	s := make(Schema, len(t.schema))
	copy(s, t.schema)
	return s
}

// KeyType returns the data type of the primary key field.
func (t *Table) KeyType() DataType {
	return t.schema[0].Type
}

// BucketCount returns the length of the bucket array.
func (t *Table) BucketCount() int {
	return len(t.store.slots)
}

// Len returns the number of rows linked into the bucket array.
func (t *Table) Len() int {
	return t.store.count()
}

// All yields every row, slot by slot, each slot's chain in order.
func (t *Table) All() iter.Seq[*Column] {
	return func(yield func(*Column) bool) {
		for r := range t.store.all() {
			if !yield(&Column{table: t, ref: r}) {
				return
			}
		}
	}
}

// Chain yields the rows of one bucket slot in chain order.
func (t *Table) Chain(slot int) iter.Seq[*Column] {
	return func(yield func(*Column) bool) {
		if slot < 0 || slot >= len(t.store.slots) {
			return
		}
		for r := range t.store.chain(slot) {
			if !yield(&Column{table: t, ref: r}) {
				return
			}
		}
	}
}

// At returns the row at position i of the full enumeration order.
func (t *Table) At(i int) (*Column, error) {
	if i >= 0 {
		n := 0
		for c := range t.All() {
			if n == i {
				return c, nil
			}
			n++
		}
	}
	return nil, errors.IndexOutOfRange("row", i)
}

// SetAt always fails: enumerated positions are read-only.
func (t *Table) SetAt(i int, _ *Column) error {
	return errors.Unsupported("rows cannot be assigned by position").WithDetail("index", i)
}

// IndexOf returns the position of c in the full enumeration order, or -1.
func (t *Table) IndexOf(c *Column) int {
	if !t.owns(c) {
		return -1
	}
	i := 0
	for r := range t.store.all() {
		if r == c.ref {
			return i
		}
		i++
	}
	return -1
}

// Contains reports whether c is linked into the table.
func (t *Table) Contains(c *Column) bool {
	return t.IndexOf(c) >= 0
}

// Add appends a new bucket slot holding c's row.
//
// The row must belong to this table and not be linked already.
func (t *Table) Add(c *Column) error {
	return t.Insert(len(t.store.slots), c)
}

// Insert inserts a new bucket slot at index holding c's row.
func (t *Table) Insert(index int, c *Column) error {
	if !t.owns(c) {
		return errors.StaleRow(t.name)
	}
	if t.Contains(c) {
		return errors.Unsupported("row is already linked").WithDetail("key", c.Key())
	}
	if index < 0 || index > len(t.store.slots) {
		return errors.IndexOutOfRange("slot", index).WithDetail("bucket_count", len(t.store.slots))
	}
	t.store.insertSlot(index, c.ref)
	return nil
}

// Clear empties the bucket array.
func (t *Table) Clear() {
	t.store.slots = nil
}

// Remove unlinks c's row. It returns false when the row is not linked into
// the table, leaving the table unchanged.
func (t *Table) Remove(c *Column) bool {
	if !t.owns(c) {
		return false
	}
	return t.store.unlink(c.ref)
}

// RemoveAt unlinks the row at position i of the full enumeration order.
func (t *Table) RemoveAt(i int) error {
	c, err := t.At(i)
	if err != nil {
		return err
	}
	t.Remove(c)
	return nil
}

// Seek returns the row whose key equals key, or nil.
//
// Only the slot the key hashes to under the current bucket count is scanned,
// the way the game server looks rows up.
func (t *Table) Seek(key any) (*Column, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if len(t.store.slots) == 0 {
		return nil, nil
	}
	k, _ := DeriveKey(key)
	slot, err := SlotIndex(k, len(t.store.slots))
	if err != nil {
		return nil, err
	}
	for r := range t.store.chain(slot) {
		if keyEqual(t.store.rows[r].fields[0].Value, key) {
			return &Column{table: t, ref: r}, nil
		}
	}
	return nil, nil
}

// Create adds a row with a generated integer key: the lowest positive key
// not in use below the greatest key, else the greatest key plus one.
func (t *Table) Create() (*Column, error) {
	if t.KeyType() != Integer {
		return nil, errors.Unsupported("keys can only be generated for integer-keyed tables").
			WithDetail("key_type", t.KeyType().String())
	}
	used := make(map[int32]struct{})
	maxKey := int32(0)
	first := true
	for r := range t.store.all() {
		k, err := DeriveKey(t.store.rows[r].fields[0].Value)
		if err != nil {
			return nil, err
		}
		used[k] = struct{}{}
		if first || k > maxKey {
			maxKey = k
			first = false
		}
	}
	for i := int32(1); i < maxKey; i++ {
		if _, ok := used[i]; !ok {
			return t.CreateWithValues(i, nil)
		}
	}
	return t.CreateWithValues(maxKey+1, nil)
}

// CreateWithKey adds a row with the given key and every other field set to
// its type's default.
func (t *Table) CreateWithKey(key any) (*Column, error) {
	return t.CreateWithValues(key, nil)
}

// CreateWithValues adds a row with the given key, then assigns values by
// field name. A nil value turns its field into Nothing.
//
// The slot is computed from the current bucket count; the table is not
// resized. The row goes to the tail of its slot's chain, or into a new slot
// when the bucket array is empty. The SQL sink sees the row before values
// are assigned. On error the table is unchanged.
func (t *Table) CreateWithValues(key any, values map[string]any) (*Column, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	for name := range values {
		if t.schema.Index(name) < 0 {
			return nil, errors.FieldNotFound(name)
		}
	}
	fields, err := t.schema.defaults()
	if err != nil {
		return nil, err
	}
	fields[0].Value = key

	if err := t.sink.RegisterSQL(sqlInsert(t.name, t.schema, fields)); err != nil {
		return nil, errors.New(errors.ErrSQLSinkFailed, "failed to register row").
			WithDetail("table", t.name).
			WithDetail("key", key).
			Wrap(err)
	}

	r := t.store.alloc(fields)
	if n := len(t.store.slots); n > 0 {
		k, _ := DeriveKey(key)
		slot, err := SlotIndex(k, n)
		if err != nil {
			return nil, err
		}
		t.store.insertAt(slot, r)
	} else {
		t.store.insertSlot(0, r)
	}

	c := &Column{table: t, ref: r}
	for name, v := range values {
		if err := c.SetByName(name, v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Recalculate rebuilds the bucket array with a hint of 1, which puts every
// row in a single bucket. Use Resize(SizeToKeys) to size the array to the
// table's content.
func (t *Table) Recalculate() error {
	return t.Resize(1)
}

// Resize rebuilds the bucket array with NextPowerOfTwo(hint) slots, or sized
// to the number of distinct keys when hint is SizeToKeys, and redistributes
// every row. Rows are relinked, not copied; Column views stay valid.
func (t *Table) Resize(hint int) error {
	return t.store.rehash(hint, func(r rowRef) (int32, error) {
		key := t.store.rows[r].fields[0].Value
		k, err := DeriveKey(key)
		if err != nil {
			var e *errors.Error
			if stderrors.As(err, &e) {
				e.WithDetail("table", t.name)
			}
			return 0, err
		}
		return k, nil
	})
}

func (t *Table) owns(c *Column) bool {
	return c != nil && c.table == t && t.store.valid(c.ref)
}

// keyEqual compares raw key values. Only supported key types compare equal.
func keyEqual(a, b any) bool {
	switch a.(type) {
	case int32, int64, string, StringValue, BigintValue:
		return a == b
	default:
		return false
	}
}
