// Package snapshot saves and restores fdb tables as JSONL files.
//
// The first line holds the table name, schema, bucket count and a BLAKE2b
// digest of the rows. Each following line is one row with its slot, in
// enumeration order, so a restored table has the exact same layout.
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/maruel/fdb/internal/errors"
	"github.com/maruel/fdb/internal/fdb"
	"github.com/maruel/fdb/internal/jsonldb"
)

// FormatVersion is the snapshot file format version.
const FormatVersion = 1

// Header is the first line of a snapshot file.
type Header struct {
	Version int        `json:"version"`
	Table   string     `json:"table"`
	Schema  fdb.Schema `json:"schema"`
	Buckets int        `json:"buckets"`
	Rows    int        `json:"rows"`
	Digest  string     `json:"digest"`
}

// Validate implements jsonldb.Validator.
func (h *Header) Validate() error {
	if h.Version != FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	if h.Buckets < 0 || h.Rows < 0 {
		return fmt.Errorf("negative count")
	}
	return h.Schema.Validate()
}

// Row is one row line.
type Row struct {
	Slot   int     `json:"slot"`
	Fields []Value `json:"fields"`
}

// Validate implements jsonldb.Validator.
func (r *Row) Validate() error {
	if r.Slot < 0 {
		return fmt.Errorf("negative slot %d", r.Slot)
	}
	return nil
}

// Value is a typed field. Kind records the Go type of the value so it
// round-trips exactly.
type Value struct {
	Type fdb.DataType    `json:"type"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Value kinds.
const (
	kindNull    = "null"
	kindInt32   = "int32"
	kindInt64   = "int64"
	kindFloat32 = "float32"
	kindFloat64 = "float64"
	kindBool    = "bool"
	kindString  = "string"
	kindText    = "text"
	kindBigint  = "bigint"
)

func encodeValue(f fdb.Field) (Value, error) {
	var kind string
	var v any
	switch x := f.Value.(type) {
	case nil:
		return Value{Type: f.Type, Kind: kindNull}, nil
	case int32:
		kind, v = kindInt32, x
	case int:
		kind, v = kindInt64, int64(x)
	case int64:
		kind, v = kindInt64, x
	case float32:
		kind, v = kindFloat32, x
	case float64:
		kind, v = kindFloat64, x
	case bool:
		kind, v = kindBool, x
	case string:
		kind, v = kindString, x
	case fdb.StringValue:
		kind, v = kindText, x.Value
	case fdb.BigintValue:
		// Decimal text keeps full 64-bit precision in JSON readers.
		kind, v = kindBigint, strconv.FormatInt(x.Value, 10)
	default:
		return Value{}, errors.Unsupported(fmt.Sprintf("cannot snapshot value of type %T", f.Value))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: f.Type, Kind: kind, Data: data}, nil
}

func decodeValue(v Value) (fdb.Field, error) {
	f := fdb.Field{Type: v.Type}
	var err error
	switch v.Kind {
	case kindNull:
	case kindInt32:
		var x int32
		err = json.Unmarshal(v.Data, &x)
		f.Value = x
	case kindInt64:
		var x int64
		err = json.Unmarshal(v.Data, &x)
		f.Value = x
	case kindFloat32:
		var x float32
		err = json.Unmarshal(v.Data, &x)
		f.Value = x
	case kindFloat64:
		var x float64
		err = json.Unmarshal(v.Data, &x)
		f.Value = x
	case kindBool:
		var x bool
		err = json.Unmarshal(v.Data, &x)
		f.Value = x
	case kindString:
		var x string
		err = json.Unmarshal(v.Data, &x)
		f.Value = x
	case kindText:
		var x string
		err = json.Unmarshal(v.Data, &x)
		f.Value = fdb.StringValue{Value: x}
	case kindBigint:
		var s string
		if err = json.Unmarshal(v.Data, &s); err == nil {
			var n int64
			n, err = strconv.ParseInt(s, 10, 64)
			f.Value = fdb.BigintValue{Value: n}
		}
	default:
		return f, errors.InvalidFormat(fmt.Sprintf("unknown value kind %q", v.Kind))
	}
	if err != nil {
		return f, errors.InvalidFormat(fmt.Sprintf("bad %s value %s", v.Kind, v.Data)).Wrap(err)
	}
	return f, nil
}

// Encode converts a table into a header and its row lines.
func Encode(t *fdb.Table) (Header, []Row, error) {
	layout := t.Layout()
	var rows []Row
	for slot, chain := range layout {
		for _, fields := range chain {
			r := Row{Slot: slot, Fields: make([]Value, len(fields))}
			for i, f := range fields {
				v, err := encodeValue(f)
				if err != nil {
					return Header{}, nil, err
				}
				r.Fields[i] = v
			}
			rows = append(rows, r)
		}
	}
	digest, err := digestRows(rows)
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{
		Version: FormatVersion,
		Table:   t.Name(),
		Schema:  t.Schema(),
		Buckets: len(layout),
		Rows:    len(rows),
		Digest:  digest,
	}
	return h, rows, nil
}

// Decode rebuilds a table from a header and its rows.
//
// sink is attached to the restored table; rows placed by Decode are not
// reported to it.
func Decode(h Header, rows []Row, sink fdb.SQLSink) (*fdb.Table, error) {
	if len(rows) != h.Rows {
		return nil, errors.InvalidFormat(fmt.Sprintf("expected %d rows, found %d", h.Rows, len(rows)))
	}
	digest, err := digestRows(rows)
	if err != nil {
		return nil, err
	}
	if digest != h.Digest {
		return nil, errors.InvalidFormat("digest mismatch").
			WithDetail("table", h.Table).
			WithDetail("want", h.Digest).
			WithDetail("got", digest)
	}
	layout := make(fdb.Layout, h.Buckets)
	for i, r := range rows {
		if r.Slot >= h.Buckets {
			return nil, errors.InvalidFormat(fmt.Sprintf("row %d: slot %d out of %d buckets", i, r.Slot, h.Buckets))
		}
		fields := make([]fdb.Field, len(r.Fields))
		for j, v := range r.Fields {
			if fields[j], err = decodeValue(v); err != nil {
				return nil, err
			}
		}
		layout[r.Slot] = append(layout[r.Slot], fields)
	}
	return fdb.NewTableFromLayout(h.Table, h.Schema, layout, sink)
}

// Digest returns the hex BLAKE2b-256 digest of the table's rows in
// enumeration order.
func Digest(t *fdb.Table) (string, error) {
	h, _, err := Encode(t)
	return h.Digest, err
}

func digestRows(rows []Row) (string, error) {
	d, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		_, _ = d.Write(append(b, '\n'))
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// Save writes t to path, replacing any previous content atomically.
func Save(path string, t *fdb.Table) error {
	h, rows, err := Encode(t)
	if err != nil {
		return err
	}
	f, err := jsonldb.Open[Header, Row](path, h)
	if err != nil {
		// An unreadable previous snapshot is overwritten.
		if errors.CodeOf(err) != errors.ErrInvalidFormat {
			return err
		}
		if err := os.Remove(path); err != nil {
			return errors.Storage("failed to remove corrupt snapshot", err)
		}
		if f, err = jsonldb.Open[Header, Row](path, h); err != nil {
			return err
		}
	}
	if err := f.Replace(h, rows); err != nil {
		return err
	}
	slog.Debug("saved snapshot", "path", path, "rows", h.Rows, "digest", h.Digest)
	return nil
}

// Load reads the snapshot at path and rebuilds its table.
func Load(path string, sink fdb.SQLSink) (*fdb.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Storage(fmt.Sprintf("failed to open snapshot %s", path), err)
	}
	f, err := jsonldb.Open[Header, Row](path, Header{})
	if err != nil {
		return nil, err
	}
	var rows []Row
	for r := range f.All() {
		rows = append(rows, r)
	}
	return Decode(f.Header(), rows, sink)
}
