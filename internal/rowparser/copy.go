package rowparser

import (
	"strconv"
	"strings"

	"dumpkit/internal/core"
)

// ParseCopyHeaderColumns extracts the column list from a COPY header,
// e.g. "COPY public.users (id, name, email) FROM stdin;" -> [id name
// email]. Returns nil if the header has no explicit column list.
func ParseCopyHeaderColumns(header string) []string {
	start := strings.IndexByte(header, '(')
	if start < 0 {
		return nil
	}
	end := strings.IndexByte(header[start:], ')')
	if end < 0 {
		return nil
	}
	body := header[start+1 : start+end]
	var cols []string
	for _, c := range strings.Split(body, ",") {
		cols = append(cols, strings.Trim(strings.TrimSpace(c), `"`))
	}
	return cols
}

// ParseCopyData extracts every row from a COPY ... FROM stdin data
// block (spec §4.2/§4.7). columnOrder is the column list parsed from
// the COPY header; when empty, the table's natural column order is
// used. The terminating "\." line is recognised and excluded.
func ParseCopyData(data []byte, table *core.Table, columnOrder []string) []core.RowExtractionResult {
	cols := resolveCopyColumnOrder(columnOrder, table)

	var results []core.RowExtractionResult
	pos := 0
	for pos < len(data) {
		lineEnd := indexByteFrom(data, pos, '\n')
		if lineEnd < 0 {
			lineEnd = len(data)
		}
		line := data[pos:lineEnd]
		next := lineEnd + 1

		if len(line) == 0 || string(line) == `\.` {
			pos = next
			continue
		}

		values := splitCopyLine(line)
		results = append(results, buildCopyResult(line, values, table, cols))
		pos = next
	}
	return results
}

func indexByteFrom(data []byte, from int, b byte) int {
	for i := from; i < len(data); i++ {
		if data[i] == b {
			return i
		}
	}
	return -1
}

func resolveCopyColumnOrder(columnOrder []string, table *core.Table) []*core.Column {
	if table == nil {
		return nil
	}
	if len(columnOrder) == 0 {
		cols := make([]*core.Column, len(table.Columns))
		copy(cols, table.Columns)
		return cols
	}
	cols := make([]*core.Column, len(columnOrder))
	for i, name := range columnOrder {
		col, _ := table.FindColumn(strings.Trim(name, `"`))
		cols[i] = col
	}
	return cols
}

func splitCopyLine(line []byte) []parsedValue {
	var values []parsedValue
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == '\t' {
			values = append(values, parseCopyValue(line[start:i]))
			start = i + 1
		}
	}
	values = append(values, parseCopyValue(line[start:]))
	return values
}

func parseCopyValue(raw []byte) parsedValue {
	if string(raw) == `\N` {
		return parsedValue{kind: pvNull}
	}
	decoded := decodeCopyEscapes(raw)
	if n, err := strconv.ParseInt(string(decoded), 10, 64); err == nil {
		return parsedValue{kind: pvInt, i: n}
	}
	return parsedValue{kind: pvText, text: string(decoded)}
}

// decodeCopyEscapes decodes the COPY text-format escapes (spec §4.2):
// \n \r \t \\ are recognised; anything else following a backslash
// (other than the already-handled \N null marker) is passed through
// verbatim, backslash included.
func decodeCopyEscapes(value []byte) []byte {
	result := make([]byte, 0, len(value))
	i := 0
	for i < len(value) {
		if value[i] == '\\' && i+1 < len(value) {
			next := value[i+1]
			switch next {
			case 'n':
				result = append(result, '\n')
				i += 2
				continue
			case 'r':
				result = append(result, '\r')
				i += 2
				continue
			case 't':
				result = append(result, '\t')
				i += 2
				continue
			case '\\':
				result = append(result, '\\')
				i += 2
				continue
			default:
				result = append(result, '\\', next)
				i += 2
				continue
			}
		}
		result = append(result, value[i])
		i++
	}
	return result
}

func buildCopyResult(line []byte, values []parsedValue, table *core.Table, cols []*core.Column) core.RowExtractionResult {
	result := core.RowExtractionResult{Raw: append([]byte(nil), line...)}
	if table == nil {
		return result
	}
	result.Values = newNullValues(len(table.Columns))
	for idx, col := range cols {
		if col == nil || idx >= len(values) {
			continue
		}
		result.Values[col.Ordinal] = valueToPK(values[idx], col)
	}
	fillPKAndFKs(&result, table)
	return result
}
