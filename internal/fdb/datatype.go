// Defines the value kinds of a table field and their default values.

package fdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maruel/fdb/internal/errors"
)

// DataType is the tag of a field's value kind, as stored in the column header.
type DataType uint32

const (
	// Nothing marks an empty value.
	Nothing DataType = 0
	// Integer is a signed 32-bit integer.
	Integer DataType = 1
	// Unknown1 is a 32-bit value of unknown meaning.
	Unknown1 DataType = 2
	// Float is a 32-bit float.
	Float DataType = 3
	// Text is a string stored out of line.
	Text DataType = 4
	// Boolean is a 32-bit boolean.
	Boolean DataType = 5
	// Bigint is a signed 64-bit integer stored out of line.
	Bigint DataType = 6
	// Unknown2 is a 32-bit value of unknown meaning.
	Unknown2 DataType = 7
	// Varchar is a string stored out of line.
	Varchar DataType = 8
)

var dataTypeNames = [...]string{
	Nothing:  "nothing",
	Integer:  "integer",
	Unknown1: "unknown1",
	Float:    "float",
	Text:     "text",
	Boolean:  "boolean",
	Bigint:   "bigint",
	Unknown2: "unknown2",
	Varchar:  "varchar",
}

// String implements fmt.Stringer.
func (d DataType) String() string {
	if int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return fmt.Sprintf("DataType(%d)", uint32(d))
}

// Valid reports whether d is a known tag.
func (d DataType) Valid() bool {
	return int(d) < len(dataTypeNames)
}

// ParseDataType parses a data type name as returned by DataType.String.
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range dataTypeNames {
		if name == s {
			return DataType(i), nil
		}
	}
	return 0, errors.New(errors.ErrUnrecognizedDataType, fmt.Sprintf("unrecognized data type %q", s)).
		WithDetail("data_type", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DataType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, errors.UnrecognizedDataType(uint32(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DataType) UnmarshalText(b []byte) error {
	v, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// StringValue is a string as stored out of line in the file.
//
// It is also accepted as a key, hashed the same way as a plain Go string.
type StringValue struct {
	Value string
}

// String implements fmt.Stringer.
func (s StringValue) String() string {
	return s.Value
}

// BigintValue is a 64-bit integer as stored out of line in the file.
//
// It is also accepted as a key, truncated to 32 bits.
type BigintValue struct {
	Value int64
}

// String implements fmt.Stringer.
func (b BigintValue) String() string {
	return strconv.FormatInt(b.Value, 10)
}

// DefaultValue returns the value a new row's field of type d holds.
func DefaultValue(d DataType) (any, error) {
	switch d {
	case Nothing, Integer, Unknown1, Unknown2:
		return int32(0), nil
	case Float:
		return float32(0), nil
	case Boolean:
		return false, nil
	case Varchar, Text:
		return StringValue{}, nil
	case Bigint:
		return BigintValue{}, nil
	default:
		return nil, errors.UnrecognizedDataType(uint32(d))
	}
}
