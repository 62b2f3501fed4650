package ddl

import (
	"strings"

	"dumpkit/internal/core"
)

// partKind classifies one comma-separated fragment of a CREATE TABLE
// body (spec §4.5).
type partKind int

const (
	partColumn partKind = iota
	partPrimaryKey
	partForeignKey
	partIndex
	partCheck
)

// classifyBodyPart looks at one CREATE TABLE body fragment (or the
// clause following ADD in an ALTER TABLE) and decides what it is. An
// optional leading "CONSTRAINT <name>" is consumed and returned
// separately; everything else is returned unstripped so the kind-
// specific parser can locate its own parenthesised column lists.
func classifyBodyPart(part string, dialect core.Dialect) (kind partKind, rest string, constraintName string) {
	trimmed := strings.TrimSpace(part)
	rest = trimmed
	upper := strings.ToUpper(rest)

	if hasWordPrefix(upper, "CONSTRAINT") {
		_, n := consumeWord(upper)
		afterKeyword := strings.TrimLeft(rest[n:], " \t\r\n")
		name, raw := readIdentifier(afterKeyword, dialect)
		constraintName = name
		rest = strings.TrimLeft(afterKeyword[len(raw):], " \t\r\n")
		upper = strings.ToUpper(rest)
	}

	switch {
	case hasWordPrefix(upper, "PRIMARY KEY"):
		return partPrimaryKey, rest, constraintName
	case hasWordPrefix(upper, "FOREIGN KEY"):
		return partForeignKey, rest, constraintName
	case hasWordPrefix(upper, "UNIQUE KEY"), hasWordPrefix(upper, "UNIQUE INDEX"),
		hasWordPrefix(upper, "UNIQUE"), hasWordPrefix(upper, "KEY"), hasWordPrefix(upper, "INDEX"):
		return partIndex, rest, constraintName
	case hasWordPrefix(upper, "CHECK"):
		return partCheck, rest, constraintName
	default:
		return partColumn, trimmed, constraintName
	}
}

// parseColumnDef parses "name type[(size)] [modifiers...]". Returns nil
// if no identifier/type pair can be found.
func parseColumnDef(part string, dialect core.Dialect) *core.Column {
	trimmed := strings.TrimSpace(part)
	if trimmed == "" {
		return nil
	}
	name, raw := readIdentifier(trimmed, dialect)
	if name == "" {
		return nil
	}
	rest := strings.TrimLeft(trimmed[len(raw):], " \t\r\n")
	if rest == "" {
		return nil
	}

	typeEnd := 0
	for typeEnd < len(rest) && isIdentByte(rest[typeEnd]) {
		typeEnd++
	}
	if typeEnd == 0 {
		return nil
	}
	typeRaw := rest[:typeEnd]
	after := strings.TrimLeft(rest[typeEnd:], " \t\r\n")
	if strings.HasPrefix(after, "(") {
		if body, consumed, ok := parenSpanAt(after); ok {
			typeRaw += "(" + body + ")"
			after = after[consumed:]
		}
	}

	modifiers := strings.ToUpper(after)
	ctype, rawSpelling := core.ClassifyColumnType(typeRaw)
	return &core.Column{
		Name:         name,
		Type:         ctype,
		TypeRaw:      rawSpelling,
		IsNullable:   !strings.Contains(modifiers, "NOT NULL"),
		IsPrimaryKey: strings.Contains(modifiers, "PRIMARY KEY"),
	}
}

// parseColumnList extracts a parenthesised, comma-separated identifier
// list from anywhere in rest (used for table-level PRIMARY KEY (...)).
func parseColumnList(rest string, dialect core.Dialect) []string {
	body, ok := parenBody(rest)
	if !ok {
		return nil
	}
	return identifierListNames(body, dialect)
}

// parseForeignKey parses "FOREIGN KEY (cols) REFERENCES table (cols)
// [ON DELETE/UPDATE ...]". Returns nil if no REFERENCES clause or
// owning-column list can be found.
func parseForeignKey(raw string, constraintName string, table *core.Table, dialect core.Dialect) *core.ForeignKey {
	upper := strings.ToUpper(raw)
	refIdx := findWord(upper, "REFERENCES")
	if refIdx < 0 {
		return nil
	}
	owningPart := raw[:refIdx]
	refPart := raw[refIdx+len("REFERENCES"):]

	owningBody, ok := parenBody(owningPart)
	if !ok {
		return nil
	}
	owningNames := identifierListNames(owningBody, dialect)
	if len(owningNames) == 0 {
		return nil
	}

	refTrim := strings.TrimLeft(refPart, " \t\r\n")
	refTableName, rawTok := readIdentifier(refTrim, dialect)
	if refTableName == "" {
		return nil
	}
	afterTable := refTrim[len(rawTok):]
	if strings.HasPrefix(afterTable, ".") {
		second, raw2 := readIdentifier(afterTable[1:], dialect)
		if second != "" {
			refTableName = second
			afterTable = afterTable[1+len(raw2):]
		}
	}

	var refCols []string
	if body, ok := parenBody(afterTable); ok {
		refCols = identifierListNames(body, dialect)
	}

	var owningIDs []core.ColumnID
	for _, n := range owningNames {
		if id, ok := columnIDByName(table, n); ok {
			owningIDs = append(owningIDs, id)
		}
	}

	return &core.ForeignKey{
		Name:              constraintName,
		OwningColumns:     owningIDs,
		OwningColumnNames: owningNames,
		ReferencedTable:   refTableName,
		ReferencedColumns: refCols,
	}
}

// parseIndex parses a table-level inline index clause: an optional
// index name followed by a parenthesised column list.
func parseIndex(rest string, constraintName string, dialect core.Dialect) *core.Index {
	isUnique := hasWordPrefix(strings.ToUpper(rest), "UNIQUE")
	prefix := rest
	if idx := strings.IndexByte(rest, '('); idx >= 0 {
		prefix = rest[:idx]
	}
	name := constraintName
	if name == "" {
		name = stripIndexKeywords(prefix)
	}
	body, ok := parenBody(rest)
	if !ok {
		return nil
	}
	return &core.Index{
		Name:     strings.TrimSpace(name),
		Columns:  parseIndexColumnList(body, dialect),
		IsUnique: isUnique,
	}
}

func stripIndexKeywords(s string) string {
	upper := strings.ToUpper(s)
	for {
		word, n := consumeWord(upper)
		if word != "UNIQUE" && word != "KEY" && word != "INDEX" {
			break
		}
		s = s[n:]
		upper = upper[n:]
	}
	return strings.TrimSpace(s)
}

// parseIndexColumnList parses a comma-separated column list that may
// carry trailing ASC/DESC markers.
func parseIndexColumnList(body string, dialect core.Dialect) []core.IndexColumn {
	var cols []core.IndexColumn
	for _, raw := range commaSplitTopLevel(body) {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		order := core.SortAsc
		upper := strings.ToUpper(item)
		switch {
		case strings.HasSuffix(upper, " DESC"):
			item = strings.TrimSpace(item[:len(item)-len(" DESC")])
			order = core.SortDesc
		case strings.HasSuffix(upper, " ASC"):
			item = strings.TrimSpace(item[:len(item)-len(" ASC")])
		}
		name, _ := readIdentifier(item, dialect)
		if name == "" {
			name = item
		}
		cols = append(cols, core.IndexColumn{Name: name, Order: order})
	}
	return cols
}

func identifierListNames(body string, dialect core.Dialect) []string {
	var names []string
	for _, raw := range commaSplitTopLevel(body) {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		name, _ := readIdentifier(item, dialect)
		if name == "" {
			name = item
		}
		names = append(names, name)
	}
	return names
}

// indexNameFromCreateIndex extracts the index name out of a full CREATE
// [UNIQUE] [CLUSTERED|NONCLUSTERED] INDEX <name> ON ... statement.
func indexNameFromCreateIndex(raw string, dialect core.Dialect) string {
	upper := strings.ToUpper(raw)
	idx := findWord(upper, "INDEX")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(raw[idx+len("INDEX"):], " \t\r\n")
	name, _ := readIdentifier(rest, dialect)
	return name
}

// parenBody finds the first top-level '(' anywhere in s and returns the
// quote-aware span between it and its matching ')'.
func parenBody(s string) (string, bool) {
	start := strings.IndexByte(s, '(')
	if start < 0 {
		return "", false
	}
	body, _, matched := parenSpanAt(s[start:])
	return body, matched
}

// parenSpanAt scans s, which must start with '(', tracking nested
// parens and quoted strings, and returns the interior body plus the
// number of bytes consumed (including both parens).
func parenSpanAt(s string) (body string, consumed int, matched bool) {
	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inSingle {
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
			}
			continue
		}
		if inDouble {
			if c == '"' {
				if i+1 < len(s) && s[i+1] == '"' {
					i++
					continue
				}
				inDouble = false
			}
			continue
		}
		switch c {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], i + 1, true
			}
		}
	}
	return "", len(s), false
}

// commaSplitTopLevel splits body on commas at paren-depth zero,
// respecting single- and double-quoted string literals.
func commaSplitTopLevel(body string) []string {
	var parts []string
	depth := 0
	inSingle, inDouble := false, false
	last := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		if inSingle {
			if c == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
			}
			continue
		}
		if inDouble {
			if c == '"' {
				if i+1 < len(body) && body[i+1] == '"' {
					i++
					continue
				}
				inDouble = false
			}
			continue
		}
		switch c {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, body[last:])
	return parts
}

// readIdentifier reads one identifier token starting at s[0], returning
// its unquoted name and the raw span it consumed.
func readIdentifier(s string, dialect core.Dialect) (name string, raw string) {
	if s == "" {
		return "", ""
	}
	open, closeCh := dialect.IdentifierQuotes()
	if s[0] == open {
		end := 1
		var sb strings.Builder
		for end < len(s) {
			if s[end] == closeCh {
				if end+1 < len(s) && s[end+1] == closeCh {
					sb.WriteByte(closeCh)
					end += 2
					continue
				}
				end++
				break
			}
			sb.WriteByte(s[end])
			end++
		}
		return sb.String(), s[:end]
	}
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return s[:i], s[:i]
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// consumeWord skips leading whitespace in upper, then reads one
// whitespace/paren-delimited token, returning it and the number of
// bytes consumed from the start of upper (including the leading
// whitespace).
func consumeWord(upper string) (word string, consumed int) {
	i := 0
	for i < len(upper) && isSpace(upper[i]) {
		i++
	}
	start := i
	for i < len(upper) && !isSpace(upper[i]) && upper[i] != '(' {
		i++
	}
	return upper[start:i], i
}

// findWord returns the byte offset of word as a standalone token within
// upper, or -1. Parenthesised spans (e.g. a column list preceding
// REFERENCES) are skipped whole rather than tokenised, so a word cannot
// be found inside one.
func findWord(upper, word string) int {
	i := 0
	for i < len(upper) {
		if isSpace(upper[i]) {
			i++
			continue
		}
		if upper[i] == '(' {
			_, consumed, matched := parenSpanAt(upper[i:])
			if !matched {
				return -1
			}
			i += consumed
			continue
		}
		start := i
		for i < len(upper) && !isSpace(upper[i]) && upper[i] != '(' {
			i++
		}
		if upper[start:i] == word {
			return start
		}
	}
	return -1
}

func hasWordPrefix(upper, word string) bool {
	if !strings.HasPrefix(upper, word) {
		return false
	}
	if len(upper) == len(word) {
		return true
	}
	next := upper[len(word)]
	return isSpace(next) || next == '('
}
