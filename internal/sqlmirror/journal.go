// Package sqlmirror persists the SQL statements emitted by fdb tables.
//
// A Journal is an append-only JSONL file; each entry carries a sortable ID,
// the table name and the statement text.
package sqlmirror

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/maruel/ksid"

	"github.com/maruel/fdb/internal/fdb"
	"github.com/maruel/fdb/internal/jsonldb"
)

// FormatVersion is the journal file format version.
const FormatVersion = 1

// Header is the first line of a journal file.
type Header struct {
	Version int    `json:"version"`
	Dialect string `json:"dialect"`
}

// Validate implements jsonldb.Validator.
func (h *Header) Validate() error {
	if h.Version != FormatVersion {
		return fmt.Errorf("unsupported journal version %d", h.Version)
	}
	return nil
}

// Entry is one journaled statement.
type Entry struct {
	ID        ksid.ID `json:"id"`
	Table     string  `json:"table"`
	Statement string  `json:"statement"`
}

// Validate implements jsonldb.Validator.
func (e *Entry) Validate() error {
	if e.ID.IsZero() {
		return fmt.Errorf("id is required")
	}
	if e.Statement == "" {
		return fmt.Errorf("statement is required")
	}
	return nil
}

// Journal appends statements to a JSONL file.
type Journal struct {
	table *jsonldb.Table[Header, Entry]
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	t, err := jsonldb.Open[Header, Entry](path, Header{Version: FormatVersion, Dialect: "sqlite"})
	if err != nil {
		return nil, err
	}
	return &Journal{table: t}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.table.Path()
}

// Len returns the number of journaled statements.
func (j *Journal) Len() int {
	return j.table.Len()
}

// Entries yields every entry in append order.
func (j *Journal) Entries() iter.Seq[Entry] {
	return j.table.All()
}

// Sink returns a fdb.SQLSink recording statements for the named table.
func (j *Journal) Sink(table string) fdb.SQLSink {
	return fdb.SQLSinkFunc(func(statement string) error {
		return j.Record(table, statement)
	})
}

// Record appends a statement.
func (j *Journal) Record(table, statement string) error {
	e := Entry{ID: ksid.NewID(), Table: table, Statement: statement}
	if err := j.table.Append(e); err != nil {
		return err
	}
	slog.Debug("journaled statement", "id", e.ID, "table", table)
	return nil
}

// WriteScript writes every journaled statement of table to w, one per line.
// An empty table selects all entries.
func (j *Journal) WriteScript(w io.Writer, table string) (int, error) {
	n := 0
	for e := range j.Entries() {
		if table != "" && e.Table != table {
			continue
		}
		if _, err := io.WriteString(w, e.Statement+"\n"); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Memory is an in-memory fdb.SQLSink.
type Memory struct {
	mu         sync.Mutex
	statements []string
	// Err, when set, is returned by RegisterSQL and nothing is recorded.
	Err error
}

// RegisterSQL implements fdb.SQLSink.
func (m *Memory) RegisterSQL(statement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.statements = append(m.statements, statement)
	return nil
}

// Statements returns a copy of the recorded statements.
func (m *Memory) Statements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statements...)
}

// String joins the recorded statements with newlines.
func (m *Memory) String() string {
	return strings.Join(m.Statements(), "\n")
}
