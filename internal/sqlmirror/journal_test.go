package sqlmirror

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	fdberrors "github.com/maruel/fdb/internal/errors"
	"github.com/maruel/fdb/internal/fdb"
)

var schema = fdb.Schema{
	{Name: "id", Type: fdb.Integer},
	{Name: "name", Type: fdb.Text},
}

func TestJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.jsonl")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	objects, err := fdb.NewTable("Objects", schema, j.Sink("Objects"))
	if err != nil {
		t.Fatal(err)
	}
	missions, err := fdb.NewTable("Missions", schema, j.Sink("Missions"))
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []int{1, 2} {
		if _, err := objects.CreateWithKey(k); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := missions.CreateWithKey(7); err != nil {
		t.Fatal(err)
	}

	t.Run("entries", func(t *testing.T) {
		if j.Len() != 3 {
			t.Fatalf("Len() = %d, want 3", j.Len())
		}
		var tables []string
		var last Entry
		for e := range j.Entries() {
			tables = append(tables, e.Table)
			if e.ID <= last.ID {
				t.Errorf("ID %v not after %v", e.ID, last.ID)
			}
			last = e
		}
		if want := []string{"Objects", "Objects", "Missions"}; !slices.Equal(tables, want) {
			t.Errorf("tables = %v, want %v", tables, want)
		}
	})

	t.Run("reload", func(t *testing.T) {
		j2, err := Open(path)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := slices.Collect(j2.Entries()), slices.Collect(j.Entries()); !slices.Equal(got, want) {
			t.Errorf("reloaded entries = %+v, want %+v", got, want)
		}
	})

	t.Run("script", func(t *testing.T) {
		var b strings.Builder
		n, err := j.WriteScript(&b, "Missions")
		if err != nil {
			t.Fatal(err)
		}
		want := `INSERT INTO "Missions" ("id", "name") VALUES (7, '');` + "\n"
		if n != 1 || b.String() != want {
			t.Errorf("WriteScript() = %d, %q", n, b.String())
		}
		b.Reset()
		if n, _ := j.WriteScript(&b, ""); n != 3 {
			t.Errorf("WriteScript(all) = %d", n)
		}
	})
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	table, err := fdb.NewTable("T", schema, m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := table.CreateWithKey(3); err != nil {
		t.Fatal(err)
	}
	if got := m.Statements(); len(got) != 1 || !strings.HasPrefix(got[0], `INSERT INTO "T"`) {
		t.Errorf("Statements() = %v", got)
	}

	m.Err = errors.New("offline")
	if _, err := table.CreateWithKey(4); !errors.Is(err, fdberrors.ErrSQLSinkFailed) {
		t.Errorf("CreateWithKey error = %v, want SQL_SINK_FAILED", err)
	}
	if table.Len() != 1 || len(m.Statements()) != 1 {
		t.Errorf("failed sink changed state: Len()=%d statements=%d", table.Len(), len(m.Statements()))
	}
}
