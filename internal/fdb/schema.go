package fdb

import (
	"fmt"

	"github.com/maruel/fdb/internal/errors"
)

// FieldInfo describes one field of a table.
type FieldInfo struct {
	Name string   `json:"name" yaml:"name" jsonschema:"description=Field name"`
	Type DataType `json:"type" yaml:"type" jsonschema:"type=string,enum=nothing,enum=integer,enum=unknown1,enum=float,enum=text,enum=boolean,enum=bigint,enum=unknown2,enum=varchar,description=Field data type"`
}

// Schema is the ordered field list of a table. Field 0 is the primary key.
type Schema []FieldInfo

// Validate checks that the schema has a key field, named fields and known
// types. Duplicate names are rejected since fields are addressed by name.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.Validation("schema must have at least one field")
	}
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Name == "" {
			return errors.Validation(fmt.Sprintf("field %d: name is required", i))
		}
		if seen[f.Name] {
			return errors.Validation(fmt.Sprintf("field %d: duplicate name %q", i, f.Name))
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return errors.UnrecognizedDataType(uint32(f.Type)).WithDetail("field", f.Name)
		}
	}
	return nil
}

// Index returns the index of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// defaults returns a new row's fields, each holding its type's default value.
func (s Schema) defaults() ([]Field, error) {
	fields := make([]Field, len(s))
	for i, f := range s {
		v, err := DefaultValue(f.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = Field{Type: f.Type, Value: v}
	}
	return fields, nil
}
