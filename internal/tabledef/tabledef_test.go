package tabledef

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	fdberrors "github.com/maruel/fdb/internal/errors"
	"github.com/maruel/fdb/internal/fdb"
)

const objectsYAML = `
version: 1
name: Objects
fields:
  - name: id
    type: integer
  - name: name
    type: text
  - name: scale
    type: float
  - name: enabled
    type: boolean
  - name: flags
    type: bigint
rows:
  - key: 4
    values:
      name: brick
      scale: 1.5
  - key: 1
    values:
      enabled: true
      flags: 8589934592
  - key: 8
  - key: 3
    values:
      name: 42
      enabled: 0
`

func TestParseBuild(t *testing.T) {
	def, err := ParseBytes([]byte(objectsYAML))
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "Objects" || len(def.Fields) != 5 || def.Fields[2].Type != fdb.Float {
		t.Fatalf("def = %+v", def)
	}
	var statements []string
	table, err := def.Build(fdb.SQLSinkFunc(func(s string) error {
		statements = append(statements, s)
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(statements) != 4 {
		t.Errorf("%d statements", len(statements))
	}
	if table.BucketCount() != 4 || table.Len() != 4 {
		t.Errorf("BucketCount() = %d, Len() = %d", table.BucketCount(), table.Len())
	}

	tests := []struct {
		key   int
		field string
		want  any
	}{
		{4, "name", fdb.StringValue{Value: "brick"}},
		{4, "scale", float32(1.5)},
		{1, "enabled", true},
		{1, "flags", fdb.BigintValue{Value: 8589934592}},
		{8, "name", fdb.StringValue{}},
		{3, "name", fdb.StringValue{Value: "42"}},
		{3, "enabled", false},
	}
	for _, tt := range tests {
		c, err := table.Seek(tt.key)
		if err != nil || c == nil {
			t.Fatalf("Seek(%d) = %v, %v", tt.key, c, err)
		}
		got, err := c.GetByName(tt.field)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("row %d %s = %#v, want %#v", tt.key, tt.field, got, tt.want)
		}
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.yaml")
	if err := os.WriteFile(path, []byte(objectsYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, fdberrors.ErrStorageError) {
		t.Errorf("Parse(missing) error = %v", err)
	}
}

func TestBuckets(t *testing.T) {
	def, err := ParseBytes([]byte("version: 1\nname: T\nbuckets: 1\nfields: [{name: id, type: integer}]\nrows: [{key: 1}, {key: 2}, {key: 3}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	table, err := def.Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.BucketCount() != 1 {
		t.Errorf("BucketCount() = %d, want 1", table.BucketCount())
	}
}

func TestStringKey(t *testing.T) {
	def, err := ParseBytes([]byte("version: 1\nname: Locale\nfields: [{name: code, type: text}]\nrows: [{key: en_US}, {key: 12}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	table, err := def.Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"en_US", "12"} {
		if c, _ := table.Seek(k); c == nil {
			t.Errorf("Seek(%q) not found", k)
		}
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code fdberrors.ErrorCode
	}{
		{"syntax", "version: [", fdberrors.ErrInvalidFormat},
		{"version", "version: 2\nname: T\nfields: [{name: id, type: integer}]\n", fdberrors.ErrValidationFailed},
		{"no name", "version: 1\nfields: [{name: id, type: integer}]\n", fdberrors.ErrValidationFailed},
		{"no fields", "version: 1\nname: T\n", fdberrors.ErrValidationFailed},
		{"bad type", "version: 1\nname: T\nfields: [{name: id, type: blob}]\n", fdberrors.ErrInvalidFormat},
		{"bad buckets", "version: 1\nname: T\nbuckets: -2\nfields: [{name: id, type: integer}]\n", fdberrors.ErrValidationFailed},
		{"missing key", "version: 1\nname: T\nfields: [{name: id, type: integer}]\nrows: [{values: {}}]\n", fdberrors.ErrValidationFailed},
		{"unknown field", "version: 1\nname: T\nfields: [{name: id, type: integer}]\nrows: [{key: 1, values: {x: 1}}]\n", fdberrors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.yaml))
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}

	t.Run("build", func(t *testing.T) {
		tests := []struct {
			name string
			yaml string
			code fdberrors.ErrorCode
		}{
			{"value type", "version: 1\nname: T\nfields: [{name: id, type: integer}, {name: n, type: integer}]\nrows: [{key: 1, values: {n: abc}}]\n", fdberrors.ErrValidationFailed},
			{"overflow", "version: 1\nname: T\nfields: [{name: id, type: integer}]\nrows: [{key: 4294967296}]\n", fdberrors.ErrInvalidKey},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				def, err := ParseBytes([]byte(tt.yaml))
				if err != nil {
					t.Fatal(err)
				}
				if _, err := def.Build(nil); !errors.Is(err, tt.code) {
					t.Errorf("Build error = %v, want %s", err, tt.code)
				}
			})
		}
	})
}

func TestConvert(t *testing.T) {
	tests := []struct {
		t    fdb.DataType
		in   any
		want any
	}{
		{fdb.Integer, 7, int32(7)},
		{fdb.Integer, float64(7), int32(7)},
		{fdb.Float, 2, float32(2)},
		{fdb.Boolean, 1, true},
		{fdb.Bigint, json.Number("-12"), fdb.BigintValue{Value: -12}},
		{fdb.Varchar, true, fdb.StringValue{Value: "true"}},
		{fdb.Nothing, 5, nil},
		{fdb.Text, nil, nil},
	}
	for _, tt := range tests {
		got, err := Convert(tt.t, tt.in)
		if err != nil || got != tt.want {
			t.Errorf("Convert(%s, %#v) = %#v, %v; want %#v", tt.t, tt.in, got, err, tt.want)
		}
	}
	if _, err := Convert(fdb.Integer, 1.5); !errors.Is(err, fdberrors.ErrValidationFailed) {
		t.Errorf("Convert(1.5) error = %v", err)
	}
	if _, err := Convert(fdb.DataType(40), 1); !errors.Is(err, fdberrors.ErrUnrecognizedDataType) {
		t.Errorf("Convert(bad type) error = %v", err)
	}
}

func TestJSONSchema(t *testing.T) {
	b, err := JSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"fields"`, `"buckets"`, `"varchar"`, `"fdb table definition"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("schema lacks %s:\n%s", want, b)
		}
	}
}
