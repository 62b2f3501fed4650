package selection

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dumpkit/internal/core"
)

// chunkSize is the maximum number of value tuples per synthesised
// INSERT statement (spec §4.9).
const chunkSize = 1000

func writePrelude(w io.Writer, d core.Dialect) error {
	_, err := io.WriteString(w, preludeText(d))
	return err
}

func writePostlude(w io.Writer, d core.Dialect) error {
	_, err := io.WriteString(w, postludeText(d))
	return err
}

func preludeText(d core.Dialect) string {
	switch d {
	case core.MySQL:
		return "SET FOREIGN_KEY_CHECKS=0;\n"
	case core.Postgres:
		return "SET session_replication_role=replica;\n"
	case core.SQLite:
		return "PRAGMA foreign_keys=OFF;\n"
	case core.MSSQL:
		return "EXEC sp_MSforeachtable \"ALTER TABLE ? NOCHECK CONSTRAINT ALL\";\n"
	default:
		return ""
	}
}

func postludeText(d core.Dialect) string {
	switch d {
	case core.MySQL:
		return "SET FOREIGN_KEY_CHECKS=1;\n"
	case core.Postgres:
		return "SET session_replication_role=DEFAULT;\n"
	case core.SQLite:
		return "PRAGMA foreign_keys=ON;\n"
	case core.MSSQL:
		return "EXEC sp_MSforeachtable \"ALTER TABLE ? WITH CHECK CHECK CONSTRAINT ALL\";\n"
	default:
		return ""
	}
}

// writeInserts emits rows as chunked "INSERT INTO <table> VALUES
// (...), (...);" statements, at most chunkSize tuples per statement
// (spec §4.9).
func writeInserts(w io.Writer, d core.Dialect, t *core.Table, rows []core.RowExtractionResult) error {
	if len(rows) == 0 {
		return nil
	}
	quotedTable := quoteIdentifier(t.Name, d)
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "INSERT INTO %s VALUES ", quotedTable)
		for i, row := range rows[start:end] {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeTuple(&buf, row.Values, d)
		}
		buf.WriteString(";\n")
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("writing INSERT for %s: %w", t.Name, err)
		}
	}
	return nil
}

func writeTuple(buf *bytes.Buffer, values []core.PKValue, d core.Dialect) {
	buf.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(formatLiteral(v, d))
	}
	buf.WriteByte(')')
}

func formatLiteral(v core.PKValue, d core.Dialect) string {
	switch v.Kind {
	case core.PKInt:
		return strconv.FormatInt(v.Int, 10)
	case core.PKBigInt:
		return strconv.FormatInt(v.Big, 10)
	case core.PKText:
		return quoteStringLiteral(v.Text, d)
	default: // PKNull
		return "NULL"
	}
}

// quoteStringLiteral re-escapes a decoded text value for the output
// dialect (spec §6): MySQL backslash-escapes \\, \', \n, \r, \t, \0;
// every other dialect doubles a quote and leaves a backslash as a
// literal byte.
func quoteStringLiteral(s string, d core.Dialect) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	if d == core.MySQL {
		for i := 0; i < len(s); i++ {
			switch c := s[i]; c {
			case '\\':
				sb.WriteString(`\\`)
			case '\'':
				sb.WriteString(`\'`)
			case '\n':
				sb.WriteString(`\n`)
			case '\r':
				sb.WriteString(`\r`)
			case '\t':
				sb.WriteString(`\t`)
			case 0:
				sb.WriteString(`\0`)
			default:
				sb.WriteByte(c)
			}
		}
	} else {
		for i := 0; i < len(s); i++ {
			if s[i] == '\'' {
				sb.WriteString("''")
			} else {
				sb.WriteByte(s[i])
			}
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

func quoteIdentifier(name string, d core.Dialect) string {
	open, closeCh := d.IdentifierQuotes()
	return string(open) + name + string(closeCh)
}
