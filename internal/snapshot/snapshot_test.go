package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	fdberrors "github.com/maruel/fdb/internal/errors"
	"github.com/maruel/fdb/internal/fdb"
)

var schema = fdb.Schema{
	{Name: "id", Type: fdb.Integer},
	{Name: "name", Type: fdb.Text},
	{Name: "scale", Type: fdb.Float},
	{Name: "enabled", Type: fdb.Boolean},
	{Name: "flags", Type: fdb.Bigint},
	{Name: "note", Type: fdb.Varchar},
}

func setupTable(t *testing.T) *fdb.Table {
	t.Helper()
	table, err := fdb.NewTable("Objects", schema, nil)
	if err != nil {
		t.Fatal(err)
	}
	rows := []struct {
		key    int
		values map[string]any
	}{
		{1, map[string]any{"name": fdb.StringValue{Value: "<brick> & 'mortar'"}, "scale": float32(0.1)}},
		{2, map[string]any{"enabled": true, "flags": fdb.BigintValue{Value: -1 << 62}}},
		{6, map[string]any{"note": nil}},
		{9, map[string]any{"name": "plain go string", "scale": float32(3)}},
	}
	for _, r := range rows {
		if _, err := table.CreateWithValues(r.key, r.values); err != nil {
			t.Fatal(err)
		}
	}
	if err := table.Resize(4); err != nil {
		t.Fatal(err)
	}
	return table
}

func TestSaveLoad(t *testing.T) {
	table := setupTable(t)
	path := filepath.Join(t.TempDir(), "Objects.jsonl")
	if err := Save(path, table); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != table.Name() || !reflect.DeepEqual(got.Schema(), table.Schema()) {
		t.Errorf("restored %q %v", got.Name(), got.Schema())
	}
	if !reflect.DeepEqual(got.Layout(), table.Layout()) {
		t.Errorf("Layout() =\n%v\nwant\n%v", got.Layout(), table.Layout())
	}
	d1, err := Digest(table)
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := Digest(got)
	if d1 != d2 || len(d1) != 64 {
		t.Errorf("digests %q %q", d1, d2)
	}

	t.Run("overwrite", func(t *testing.T) {
		if _, err := table.CreateWithKey(10); err != nil {
			t.Fatal(err)
		}
		if err := Save(path, table); err != nil {
			t.Fatal(err)
		}
		got, err := Load(path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got.Len() != 5 {
			t.Errorf("Len() = %d, want 5", got.Len())
		}
	})
}

func TestLoadErrors(t *testing.T) {
	table := setupTable(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "Objects.jsonl")
	if err := Save(path, table); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.jsonl"), nil)
		if !errors.Is(err, fdberrors.ErrStorageError) {
			t.Errorf("error = %v, want STORAGE_ERROR", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(string) string
	}{
		{"tampered row", func(s string) string { return strings.Replace(s, `"data":9`, `"data":8`, 1) }},
		{"dropped row", func(s string) string {
			lines := strings.SplitAfter(s, "\n")
			return strings.Join(lines[:len(lines)-2], "")
		}},
		{"unknown kind", func(s string) string { return strings.Replace(s, `"kind":"bool"`, `"kind":"blob"`, 1) }},
		{"bad version", func(s string) string { return strings.Replace(s, `"version":1`, `"version":7`, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name+".jsonl")
			mutated := tt.mutate(string(data))
			if mutated == string(data) {
				t.Fatal("mutation did not apply")
			}
			if err := os.WriteFile(p, []byte(mutated), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(p, nil); !errors.Is(err, fdberrors.ErrInvalidFormat) {
				t.Errorf("error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestValueRoundTrip(t *testing.T) {
	fields := []fdb.Field{
		{Type: fdb.Nothing, Value: nil},
		{Type: fdb.Integer, Value: int32(-5)},
		{Type: fdb.Integer, Value: int64(1 << 40)},
		{Type: fdb.Float, Value: float32(1.5)},
		{Type: fdb.Boolean, Value: false},
		{Type: fdb.Text, Value: "go"},
		{Type: fdb.Varchar, Value: fdb.StringValue{Value: "é"}},
		{Type: fdb.Bigint, Value: fdb.BigintValue{Value: 9007199254740993}},
	}
	for _, f := range fields {
		v, err := encodeValue(f)
		if err != nil {
			t.Fatalf("encodeValue(%#v): %v", f, err)
		}
		got, err := decodeValue(v)
		if err != nil {
			t.Fatalf("decodeValue(%#v): %v", v, err)
		}
		if got != f {
			t.Errorf("round trip %#v = %#v", f, got)
		}
	}
	if _, err := encodeValue(fdb.Field{Type: fdb.Text, Value: []byte("x")}); !errors.Is(err, fdberrors.ErrUnsupportedOperation) {
		t.Errorf("encodeValue([]byte) error = %v", err)
	}
}

func TestRepo(t *testing.T) {
	ctx := t.Context()
	repo, err := OpenRepo(filepath.Join(t.TempDir(), "repo"), Author{Name: "Builder", Email: "builder@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	table := setupTable(t)

	h1, err := repo.Commit(ctx, table, "")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == "" {
		t.Fatal("first commit produced no hash")
	}
	h2, err := repo.Commit(ctx, table, "")
	if err != nil {
		t.Fatal(err)
	}
	if h2 != "" {
		t.Errorf("unchanged snapshot committed %s", h2)
	}
	if _, err := table.CreateWithKey(3); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Commit(ctx, table, "add 3"); err != nil {
		t.Fatal(err)
	}

	history, err := repo.History("Objects", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Message != "add 3" || history[1].Hash != h1 {
		t.Errorf("History() = %+v", history)
	}
	if history[1].Message != "Objects: 4 rows in 4 buckets" || history[0].Author != "Builder" {
		t.Errorf("History() = %+v", history)
	}

	restored, err := repo.Load("Objects", nil)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 5 {
		t.Errorf("Len() = %d", restored.Len())
	}

	reopened, err := OpenRepo(repo.Dir(), Author{})
	if err != nil {
		t.Fatal(err)
	}
	if h, _ := reopened.History("Objects", 1); len(h) != 1 {
		t.Errorf("reopened History() = %+v", h)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := repo.Commit(cctx, table, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Commit on canceled context = %v", err)
	}
}
