// Package rowparser implements the row parser (C7): it extracts
// individual value tuples from INSERT ... VALUES statements and
// PostgreSQL COPY data blocks, resolving PK/FK values against a
// table's schema along the way (spec §4.7).
package rowparser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"dumpkit/internal/core"
)

type parsedKind int

const (
	pvNull parsedKind = iota
	pvInt
	pvText
)

// parsedValue is the scanner's intermediate representation of one
// value, before it is reinterpreted against a column's declared type.
type parsedValue struct {
	kind parsedKind
	i    int64
	text string
}

// ParseInsert extracts every row from an INSERT ... VALUES statement.
// table may be nil, in which case rows are still split out but carry no
// PK/FK/Values information.
func ParseInsert(raw []byte, table *core.Table, dialect core.Dialect) ([]core.RowExtractionResult, error) {
	valuesPos := findValuesKeyword(raw)
	if valuesPos < 0 {
		return nil, fmt.Errorf("INSERT statement missing VALUES keyword")
	}
	columnOrder := parseInsertColumnList(raw[:valuesPos], table, dialect)

	p := &insertScanner{buf: raw, pos: valuesPos, dialect: dialect}
	var results []core.RowExtractionResult
	for p.pos < len(p.buf) {
		p.skipSpace()
		if p.pos >= len(p.buf) {
			break
		}
		switch p.buf[p.pos] {
		case '(':
			row := p.parseRow()
			results = append(results, buildResult(row, table, columnOrder))
		case ',':
			p.pos++
		case ';':
			p.pos = len(p.buf)
		default:
			p.pos++
		}
	}
	return results, nil
}

func findValuesKeyword(raw []byte) int {
	upper := strings.ToUpper(string(raw))
	idx := strings.Index(upper, "VALUES")
	if idx < 0 {
		return -1
	}
	return idx + len("VALUES")
}

// parseInsertColumnList looks for an explicit "(col1, col2, ...)" list
// between the table name and VALUES. If none is found (or it looks like
// a subquery), the table's natural column order is used instead.
func parseInsertColumnList(before []byte, table *core.Table, dialect core.Dialect) []*core.Column {
	s := string(before)
	if closeIdx := strings.LastIndexByte(s, ')'); closeIdx >= 0 {
		if openIdx := strings.LastIndexByte(s[:closeIdx], '('); openIdx >= 0 {
			colList := s[openIdx+1 : closeIdx]
			if !strings.Contains(strings.ToUpper(colList), "SELECT") {
				var order []*core.Column
				for _, raw := range strings.Split(colList, ",") {
					name := unquoteColumnName(strings.TrimSpace(raw), dialect)
					var col *core.Column
					if table != nil {
						col, _ = table.FindColumn(name)
					}
					order = append(order, col)
				}
				return order
			}
		}
	}
	if table == nil {
		return nil
	}
	order := make([]*core.Column, len(table.Columns))
	copy(order, table.Columns)
	return order
}

func unquoteColumnName(s string, dialect core.Dialect) string {
	s = strings.Trim(s, "`\"")
	open, closeCh := dialect.IdentifierQuotes()
	if len(s) >= 2 && s[0] == open && s[len(s)-1] == closeCh {
		s = s[1 : len(s)-1]
	}
	return s
}

type rowData struct {
	raw    []byte
	values []parsedValue
}

type insertScanner struct {
	buf     []byte
	pos     int
	dialect core.Dialect
}

func (p *insertScanner) skipSpace() {
	for p.pos < len(p.buf) && isSQLSpace(p.buf[p.pos]) {
		p.pos++
	}
}

func isSQLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// parseRow parses a single "(val1, val2, ...)" tuple starting at the
// current position, which must be '('.
func (p *insertScanner) parseRow() rowData {
	start := p.pos
	p.pos++ // skip '('
	var values []parsedValue
	depth := 1
	for p.pos < len(p.buf) && depth > 0 {
		p.skipSpace()
		if p.pos >= len(p.buf) {
			break
		}
		c := p.buf[p.pos]
		switch {
		case c == '(':
			depth++
			p.pos++
		case c == ')':
			depth--
			p.pos++
		case c == ',' && depth == 1:
			p.pos++
		case depth == 1:
			values = append(values, p.parseValue())
		default:
			p.pos++
		}
	}
	raw := append([]byte(nil), p.buf[start:p.pos]...)
	return rowData{raw: raw, values: values}
}

func (p *insertScanner) parseValue() parsedValue {
	p.skipSpace()
	if p.pos >= len(p.buf) {
		return parsedValue{kind: pvNull}
	}
	b := p.buf[p.pos]

	if p.pos+4 <= len(p.buf) && bytes.EqualFold(p.buf[p.pos:p.pos+4], []byte("NULL")) {
		p.pos += 4
		return parsedValue{kind: pvNull}
	}
	if b == '\'' {
		return p.parseStringValue()
	}
	if b == '0' && p.pos+1 < len(p.buf) {
		next := p.buf[p.pos+1]
		if next == 'x' || next == 'X' {
			return p.parseHexValue()
		}
	}
	return p.parseNumberValue()
}

// parseStringValue consumes a 'quoted' literal. Backslash escapes are
// only honoured for dialects where the lexer treats backslash as an
// escape character (spec §4.1); every dialect treats a doubled quote as
// an escaped quote.
func (p *insertScanner) parseStringValue() parsedValue {
	p.pos++ // skip opening quote
	backslash := p.dialect.BackslashEscapesInStrings()
	var sb strings.Builder
	for p.pos < len(p.buf) {
		b := p.buf[p.pos]
		if backslash && b == '\\' && p.pos+1 < len(p.buf) {
			next := p.buf[p.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(next)
			}
			p.pos += 2
			continue
		}
		if b == '\'' {
			if p.pos+1 < len(p.buf) && p.buf[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			break
		}
		sb.WriteByte(b)
		p.pos++
	}
	return parsedValue{kind: pvText, text: sb.String()}
}

func (p *insertScanner) parseHexValue() parsedValue {
	start := p.pos
	p.pos += 2
	for p.pos < len(p.buf) && isHexDigit(p.buf[p.pos]) {
		p.pos++
	}
	return parsedValue{kind: pvText, text: string(p.buf[start:p.pos])}
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func (p *insertScanner) parseNumberValue() parsedValue {
	start := p.pos
	hasDot := false
	if p.pos < len(p.buf) && p.buf[p.pos] == '-' {
		p.pos++
	}
loop:
	for p.pos < len(p.buf) {
		b := p.buf[p.pos]
		switch {
		case b >= '0' && b <= '9':
			p.pos++
		case b == '.' && !hasDot:
			hasDot = true
			p.pos++
		case b == 'e' || b == 'E':
			p.pos++
			if p.pos < len(p.buf) && (p.buf[p.pos] == '+' || p.buf[p.pos] == '-') {
				p.pos++
			}
		case b == ',' || b == ')' || isSQLSpace(b):
			break loop
		default:
			for p.pos < len(p.buf) {
				c := p.buf[p.pos]
				if c == ',' || c == ')' {
					break
				}
				p.pos++
			}
			break loop
		}
	}
	s := string(p.buf[start:p.pos])
	if !hasDot {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return parsedValue{kind: pvInt, i: n}
		}
	}
	return parsedValue{kind: pvText, text: s}
}

// valueToPK reinterprets a scanned value against col's declared type:
// a text value in an Int/BigInt column that parses as an integer is
// reinterpreted as one (spec §4.7's PK re-interpretation rule).
func valueToPK(pv parsedValue, col *core.Column) core.PKValue {
	switch pv.kind {
	case pvNull:
		return core.NullValue()
	case pvInt:
		if col != nil && col.Type == core.TypeBigInt {
			return core.BigIntValue(pv.i)
		}
		return core.IntValue(pv.i)
	default:
		if col != nil {
			switch col.Type {
			case core.TypeInt:
				if n, err := strconv.ParseInt(pv.text, 10, 64); err == nil {
					return core.IntValue(n)
				}
			case core.TypeBigInt:
				if n, err := strconv.ParseInt(pv.text, 10, 64); err == nil {
					return core.BigIntValue(n)
				}
			}
		}
		return core.TextValue(pv.text)
	}
}

func buildResult(row rowData, table *core.Table, columnOrder []*core.Column) core.RowExtractionResult {
	result := core.RowExtractionResult{Raw: row.raw}
	if table == nil {
		return result
	}
	result.Values = newNullValues(len(table.Columns))
	for idx, col := range columnOrder {
		if col == nil || idx >= len(row.values) {
			continue
		}
		result.Values[col.Ordinal] = valueToPK(row.values[idx], col)
	}
	fillPKAndFKs(&result, table)
	return result
}

func newNullValues(n int) []core.PKValue {
	values := make([]core.PKValue, n)
	for i := range values {
		values[i] = core.NullValue()
	}
	return values
}

// fillPKAndFKs populates result.PK and result.FKs from result.Values,
// which must already be sized and filled per table.Columns. A PK or FK
// tuple with any Null component is omitted entirely (spec §3/§4.7).
func fillPKAndFKs(result *core.RowExtractionResult, table *core.Table) {
	if len(table.PrimaryKey) > 0 {
		pk := make(core.PKTuple, 0, len(table.PrimaryKey))
		for _, id := range table.PrimaryKey {
			pk = append(pk, result.Values[id])
		}
		if !pk.HasNull() {
			result.PK = pk
		}
	}

	for _, fk := range table.ForeignKeys {
		if !fk.ReferencedTableKnown || len(fk.OwningColumns) == 0 {
			continue
		}
		tuple := make(core.PKTuple, 0, len(fk.OwningColumns))
		for _, id := range fk.OwningColumns {
			tuple = append(tuple, result.Values[id])
		}
		if !tuple.HasNull() {
			result.FKs = append(result.FKs, core.FKTupleRef{
				Ref:   core.FKReference{OwningTable: table.Name, FK: fk},
				Tuple: tuple,
			})
		}
	}
}
