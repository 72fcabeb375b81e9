// Package jsonldb stores a header and a list of rows in a JSONL file.
//
// Line 1 of the file is the header, every following non-empty line is one
// JSON row. Tables keep every row in memory.
package jsonldb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/fdb/internal/errors"
)

// Validator is implemented by headers and rows that can check themselves.
type Validator interface {
	Validate() error
}

// Table handles storage and in-memory caching for a single JSONL file.
type Table[H, T any] struct {
	path string
	mu   sync.RWMutex

	header H
	exists bool
	rows   []T
}

// Open opens the table at path and loads all data from the file.
//
// header is used when the file does not exist yet; it is written with the
// first Append or Replace.
func Open[H, T any](path string, header H) (*Table[H, T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, errors.Storage(fmt.Sprintf("failed to create directory for %s", path), err)
	}

	table := &Table[H, T]{
		path:   path,
		header: header,
	}

	if err := table.load(); err != nil {
		return nil, err
	}

	return table, nil
}

func (t *Table[H, T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return nil
		}
		return errors.Storage(fmt.Sprintf("failed to open table file %s", t.path), err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		if first {
			first = false
			var h H
			if err := json.Unmarshal(data, &h); err != nil {
				return errors.InvalidFormat(fmt.Sprintf("failed to parse header of %s", t.path)).Wrap(err)
			}
			if v, ok := any(&h).(Validator); ok {
				if err := v.Validate(); err != nil {
					return errors.InvalidFormat(fmt.Sprintf("invalid header in %s", t.path)).Wrap(err)
				}
			}
			t.header = h
			continue
		}
		var row T
		if err := json.Unmarshal(data, &row); err != nil {
			return errors.InvalidFormat(fmt.Sprintf("failed to unmarshal row at %s:%d", t.path, line)).Wrap(err)
		}
		if v, ok := any(&row).(Validator); ok {
			if err := v.Validate(); err != nil {
				return errors.InvalidFormat(fmt.Sprintf("invalid row at %s:%d", t.path, line)).Wrap(err)
			}
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return errors.Storage(fmt.Sprintf("failed to read table file %s", t.path), err)
	}
	if first {
		return errors.InvalidFormat(fmt.Sprintf("%s has no header", t.path))
	}

	t.exists = true
	t.rows = rows
	return nil
}

// Path returns the file path.
func (t *Table[H, T]) Path() string {
	return t.path
}

// Header returns the header.
func (t *Table[H, T]) Header() H {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header
}

// Len returns the number of rows.
func (t *Table[H, T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// All returns an iterator over all rows.
func (t *Table[H, T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row) {
				return
			}
		}
	}
}

// Append adds a new row to the table and persists it.
func (t *Table[H, T]) Append(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: table files are not secret
	if err != nil {
		return errors.Storage("failed to open table file for append", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if !t.exists {
		h, err := json.Marshal(t.header)
		if err != nil {
			return fmt.Errorf("failed to marshal header: %w", err)
		}
		if _, err := f.Write(append(h, '\n')); err != nil {
			return errors.Storage("failed to write header", err)
		}
		t.exists = true
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Storage("failed to write row", err)
	}

	t.rows = append(t.rows, row)
	return nil
}

// Replace replaces the header and all rows and persists them.
//
// The file is written next to the destination and renamed over it, so a
// failed write leaves the previous content intact.
func (t *Table[H, T]) Replace(header H, rows []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*")
	if err != nil {
		return errors.Storage("failed to create table file", err)
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	writer := bufio.NewWriter(f)
	enc := json.NewEncoder(writer)
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return errors.Storage("failed to flush writer", err)
	}
	if err := f.Close(); err != nil {
		return errors.Storage("failed to close table file", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return errors.Storage("failed to replace table file", err)
	}

	t.header = header
	t.rows = rows
	t.exists = true
	return nil
}
