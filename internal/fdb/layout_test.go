package fdb

import (
	"errors"
	"slices"
	"testing"

	fdberrors "github.com/maruel/fdb/internal/errors"
)

func TestLayout(t *testing.T) {
	t.Run("round trip keeps placement", func(t *testing.T) {
		table, _ := setupTable(t, objectsSchema)
		for _, k := range []int{4, 1, 8, 3} {
			mustCreate(t, table, k)
		}
		if err := table.Resize(4); err != nil {
			t.Fatal(err)
		}
		layout := table.Layout()
		if len(layout) != 4 {
			t.Fatalf("len(layout) = %d", len(layout))
		}
		restored, err := NewTableFromLayout(table.Name(), table.Schema(), layout, nil)
		if err != nil {
			t.Fatal(err)
		}
		if restored.BucketCount() != table.BucketCount() {
			t.Errorf("BucketCount() = %d, want %d", restored.BucketCount(), table.BucketCount())
		}
		for slot := range layout {
			if got, want := chainOf(restored, slot), chainOf(table, slot); !slices.Equal(got, want) {
				t.Errorf("slot %d = %v, want %v", slot, got, want)
			}
		}
		if c, _ := restored.Seek(8); c == nil {
			t.Error("Seek(8) on restored table failed")
		}
	})

	t.Run("layout is a copy", func(t *testing.T) {
		table, _ := setupTable(t, objectsSchema)
		mustCreate(t, table, 1)
		layout := table.Layout()
		layout[0][0][0].Value = int32(50)
		c, _ := table.At(0)
		if c.Key() != int32(1) {
			t.Errorf("Key() = %v after mutating layout", c.Key())
		}
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := NewTableFromLayout("t", Schema{{Name: "id", Type: Integer}}, Layout{{{{Integer, int32(1)}, {Integer, int32(2)}}}}, nil)
		if !errors.Is(err, fdberrors.ErrInvalidFormat) {
			t.Errorf("error = %v, want INVALID_FORMAT", err)
		}
	})

	t.Run("bad type", func(t *testing.T) {
		_, err := NewTableFromLayout("t", Schema{{Name: "id", Type: Integer}}, Layout{{{{DataType(30), int32(1)}}}}, nil)
		if !errors.Is(err, fdberrors.ErrUnrecognizedDataType) {
			t.Errorf("error = %v, want UNRECOGNIZED_DATA_TYPE", err)
		}
	})
}
