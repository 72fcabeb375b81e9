// Renders rows as SQL statements for the mirroring sink.

package fdb

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLSink receives a textual statement for every row the table creates.
//
// The statement format is SQLite-flavoured; transport and storage are the
// sink's concern.
type SQLSink interface {
	RegisterSQL(statement string) error
}

// SQLSinkFunc adapts a function to SQLSink.
type SQLSinkFunc func(statement string) error

// RegisterSQL implements SQLSink.
func (f SQLSinkFunc) RegisterSQL(statement string) error {
	return f(statement)
}

// DiscardSQL is a sink that drops every statement.
var DiscardSQL SQLSink = SQLSinkFunc(func(string) error { return nil })

func sqlInsert(table string, schema Schema, fields []Field) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	for i, f := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(f.Name))
	}
	b.WriteString(") VALUES (")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlLiteral(f))
	}
	b.WriteString(");")
	return b.String()
}

func sqlLiteral(f Field) string {
	if f.Type == Nothing || f.Value == nil {
		return "NULL"
	}
	switch v := f.Value.(type) {
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case BigintValue:
		return strconv.FormatInt(v.Value, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return quoteString(v)
	case StringValue:
		return quoteString(v.Value)
	default:
		return quoteString(fmt.Sprint(v))
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
