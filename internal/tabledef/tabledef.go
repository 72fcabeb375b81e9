// Package tabledef builds fdb tables from YAML definitions.
package tabledef

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"reflect"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/maruel/fdb/internal/errors"
	"github.com/maruel/fdb/internal/fdb"
)

// Definition describes a table and its seed rows.
type Definition struct {
	Version int        `yaml:"version" json:"version" jsonschema:"enum=1,description=Definition format version"`
	Name    string     `yaml:"name" json:"name" jsonschema:"description=Table name"`
	Fields  fdb.Schema `yaml:"fields" json:"fields" jsonschema:"minItems=1,description=Ordered fields; the first one is the primary key"`
	// Buckets is the Resize hint applied after the rows are created. Zero or
	// -1 sizes the bucket array to the number of distinct keys.
	Buckets int   `yaml:"buckets,omitempty" json:"buckets,omitempty" jsonschema:"description=Bucket count hint; 0 sizes to the number of keys"`
	Rows    []Row `yaml:"rows,omitempty" json:"rows,omitempty" jsonschema:"description=Seed rows"`
}

// Row is one seed row. Values are converted to the field's data type.
type Row struct {
	Key    any            `yaml:"key" json:"key" jsonschema:"description=Primary key value"`
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty" jsonschema:"description=Field values by name"`
}

// Parse reads and parses a definition from a file.
// The path is provided by the CLI user, so file inclusion is expected.
func Parse(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-specified definition path
	if err != nil {
		return nil, errors.Storage("failed to read definition", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a definition from bytes.
func ParseBytes(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.InvalidFormat("failed to parse definition").Wrap(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition without building it.
func (d *Definition) Validate() error {
	if d.Version != 1 {
		return errors.Validation(fmt.Sprintf("unsupported definition version: %d", d.Version))
	}
	if d.Name == "" {
		return errors.Validation("name is required")
	}
	if err := d.Fields.Validate(); err != nil {
		return errors.Validation(fmt.Sprintf("table %s", d.Name)).Wrap(err)
	}
	if d.Buckets < fdb.SizeToKeys {
		return errors.Validation(fmt.Sprintf("table %s: invalid buckets %d", d.Name, d.Buckets))
	}
	for i, r := range d.Rows {
		if r.Key == nil {
			return errors.Validation(fmt.Sprintf("table %s, row %d: key is required", d.Name, i))
		}
		for name := range r.Values {
			if d.Fields.Index(name) < 0 {
				return errors.Validation(fmt.Sprintf("table %s, row %d: unknown field %q", d.Name, i, name))
			}
		}
	}
	return nil
}

// Build creates the table, adds every seed row in order and resizes the
// bucket array.
func (d *Definition) Build(sink fdb.SQLSink) (*fdb.Table, error) {
	t, err := fdb.NewTable(d.Name, d.Fields, sink)
	if err != nil {
		return nil, err
	}
	for i, r := range d.Rows {
		key, err := ConvertKey(d.Fields[0].Type, r.Key)
		if err != nil {
			return nil, err
		}
		values := make(map[string]any, len(r.Values))
		for name, v := range r.Values {
			f := d.Fields[d.Fields.Index(name)]
			if values[name], err = Convert(f.Type, v); err != nil {
				return nil, errors.Validation(fmt.Sprintf("table %s, row %d, field %s", d.Name, i, name)).Wrap(err)
			}
		}
		if _, err := t.CreateWithValues(key, values); err != nil {
			return nil, err
		}
	}
	hint := d.Buckets
	if hint == 0 {
		hint = fdb.SizeToKeys
	}
	if err := t.Resize(hint); err != nil {
		return nil, err
	}
	slog.Debug("built table", "table", t.Name(), "rows", t.Len(), "buckets", t.BucketCount())
	return t, nil
}

// ConvertKey turns a decoded scalar into a key for a table whose key field
// has data type t.
func ConvertKey(t fdb.DataType, v any) (any, error) {
	switch t {
	case fdb.Text, fdb.Varchar:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case fdb.Bigint:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return fdb.BigintValue{Value: n}, nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.InvalidKey(v)
		}
		return int32(n), nil
	}
}

// Convert turns a decoded YAML or JSON scalar into the Go value stored for
// data type t. A nil v is returned as is.
func Convert(t fdb.DataType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case fdb.Nothing:
		return nil, nil
	case fdb.Integer, fdb.Unknown1, fdb.Unknown2:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.Validation(fmt.Sprintf("%d overflows %s", n, t))
		}
		return int32(n), nil
	case fdb.Bigint:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return fdb.BigintValue{Value: n}, nil
	case fdb.Float:
		switch x := v.(type) {
		case float64:
			return float32(x), nil
		case float32:
			return x, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return float32(n), nil
	case fdb.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case fdb.Text, fdb.Varchar:
		if s, ok := v.(string); ok {
			return fdb.StringValue{Value: s}, nil
		}
		return fdb.StringValue{Value: fmt.Sprint(v)}, nil
	default:
		return nil, errors.UnrecognizedDataType(uint32(t))
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			break
		}
		return int64(x), nil
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
	case json.Number:
		return x.Int64()
	}
	return 0, errors.Validation(fmt.Sprintf("expected an integer, got [%T] %v", v, v))
}

// JSONSchema returns the JSON Schema of the definition format.
func JSONSchema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.ReflectFromType(reflect.TypeFor[Definition]())
	s.Title = "fdb table definition"
	return json.MarshalIndent(s, "", "  ")
}
