package fdb

import (
	"github.com/maruel/fdb/internal/errors"
)

// Column is a view of one row of a table.
//
// It does not own the row. It stays meaningful while the row is linked into
// one of the table's chains; a removed row can still be read and re-added.
type Column struct {
	table *Table
	ref   rowRef
}

// Table returns the table the row belongs to.
func (c *Column) Table() *Table {
	return c.table
}

// Key returns the raw value of field 0, as passed to Create.
func (c *Column) Key() any {
	return c.node().fields[0].Value
}

// Len returns the number of fields.
func (c *Column) Len() int {
	return len(c.node().fields)
}

// Field returns a copy of the field at index i.
func (c *Column) Field(i int) (Field, error) {
	fields := c.node().fields
	if i < 0 || i >= len(fields) {
		return Field{}, errors.FieldIndexOutOfRange(i, len(fields))
	}
	return fields[i], nil
}

// Fields returns a copy of every field.
func (c *Column) Fields() []Field {
	fields := c.node().fields
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Get returns the value of the field at index i.
func (c *Column) Get(i int) (any, error) {
	f, err := c.Field(i)
	if err != nil {
		return nil, err
	}
	return f.Value, nil
}

// GetByName returns the value of the named field.
func (c *Column) GetByName(name string) (any, error) {
	i := c.table.schema.Index(name)
	if i < 0 {
		return nil, errors.FieldNotFound(name)
	}
	return c.Get(i)
}

// Set assigns the value of the field at index i.
//
// A nil value turns the field into Nothing holding 0, as the file has no null.
// Setting field 0 changes the key without moving the row; call
// Table.Resize afterwards to restore placement.
func (c *Column) Set(i int, value any) error {
	fields := c.node().fields
	if i < 0 || i >= len(fields) {
		return errors.FieldIndexOutOfRange(i, len(fields))
	}
	if value == nil {
		fields[i] = Field{Type: Nothing, Value: int32(0)}
		return nil
	}
	fields[i].Value = value
	return nil
}

// SetByName assigns the value of the named field.
func (c *Column) SetByName(name string, value any) error {
	i := c.table.schema.Index(name)
	if i < 0 {
		return errors.FieldNotFound(name)
	}
	return c.Set(i, value)
}

// SetType changes the data type tag of the field at index i.
func (c *Column) SetType(i int, t DataType) error {
	if !t.Valid() {
		return errors.UnrecognizedDataType(uint32(t))
	}
	fields := c.node().fields
	if i < 0 || i >= len(fields) {
		return errors.FieldIndexOutOfRange(i, len(fields))
	}
	fields[i].Type = t
	return nil
}

// SQLInsert renders the row as an INSERT statement.
func (c *Column) SQLInsert() string {
	return sqlInsert(c.table.name, c.table.schema, c.node().fields)
}

// Equal reports whether both views refer to the same row.
func (c *Column) Equal(o *Column) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.table == o.table && c.ref == o.ref
}

func (c *Column) node() *rowNode {
	return c.table.store.node(c.ref)
}
