// Package classifier implements the statement classifier (C3): given a
// statement's bytes and dialect, returns its kind and target table name.
package classifier

import (
	"strings"

	"dumpkit/internal/core"
)

// Classify trims leading whitespace and comments from raw, then matches
// the first keyword(s) case-insensitively to return a statement kind and
// (when applicable) the target table name (spec §4.3).
func Classify(raw []byte, dialect core.Dialect) (core.StatementKind, string) {
	s := trimLeadingNoise(string(raw))
	if s == "" {
		return core.Unknown, ""
	}
	upper := strings.ToUpper(s)

	switch {
	case hasWordPrefix(upper, "BULK INSERT"):
		return core.Insert, extractTableAfter(s, len("BULK INSERT"), dialect)

	case hasWordPrefix(upper, "INSERT"):
		rest := s[len("INSERT"):]
		restUpper := upper[len("INSERT"):]
		if idx := findWord(restUpper, "INTO"); idx >= 0 {
			return core.Insert, extractTableAfter(rest, idx+len("INTO"), dialect)
		}
		return core.Unknown, ""

	case dialect.SupportsCopy() && hasWordPrefix(upper, "COPY"):
		return core.Copy, extractTableAfter(s, len("COPY"), dialect)

	case hasWordPrefix(upper, "CREATE"):
		return classifyCreate(s, upper, dialect)

	case hasWordPrefix(upper, "ALTER TABLE"):
		rest := stripIfExists(s[len("ALTER TABLE"):])
		return core.AlterTable, extractTableName(rest, dialect)

	case hasWordPrefix(upper, "DROP TABLE"):
		rest := stripIfExists(s[len("DROP TABLE"):])
		return core.DropTable, extractTableName(rest, dialect)
	}

	return core.Unknown, ""
}

// classifyCreate handles CREATE TABLE, CREATE [UNIQUE] [CLUSTERED |
// NONCLUSTERED] INDEX ... ON <table>.
func classifyCreate(s, upper string, dialect core.Dialect) (core.StatementKind, string) {
	rest := s[len("CREATE"):]
	restUpper := upper[len("CREATE"):]

	for {
		word, n := consumeWord(restUpper)
		switch word {
		case "UNIQUE", "CLUSTERED", "NONCLUSTERED":
			rest, restUpper = rest[n:], restUpper[n:]
			continue
		}
		break
	}

	if word, n := consumeWord(restUpper); word == "TABLE" {
		rest = stripIfExists(rest[n:])
		return core.CreateTable, extractTableName(rest, dialect)
	} else if word == "INDEX" {
		rest, restUpper = rest[n:], restUpper[n:]
		// skip an optional index name before ON
		onPos := findWord(restUpper, "ON")
		if onPos < 0 {
			return core.CreateIndex, ""
		}
		_, onLen := consumeWord(restUpper[onPos:])
		return core.CreateIndex, extractTableName(rest[onPos+onLen:], dialect)
	}

	return core.Unknown, ""
}

// consumeWord skips leading whitespace in upper, then reads one
// whitespace/paren-delimited token, returning it and the number of bytes
// consumed from the start of upper (including the leading whitespace).
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

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// findWord returns the byte offset of word as a standalone token within
// upper, or -1. Used to locate ON/INTO past an optional clause.
func findWord(upper, word string) int {
	rest := upper
	pos := 0
	for {
		w, n := consumeWord(rest)
		if w == "" {
			return -1
		}
		wordStart := pos + (n - len(w))
		if w == word {
			return wordStart
		}
		rest = rest[n:]
		pos += n
	}
}

// stripIfExists removes a leading "IF NOT EXISTS" or "IF EXISTS" clause
// (spec §4.3's documented IF NOT EXISTS quirk: this implementation
// always commits to the full rule, never the minimalist one that would
// return "IF" as the table name).
func stripIfExists(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	upper := strings.ToUpper(trimmed)
	if hasWordPrefix(upper, "IF NOT EXISTS") {
		return trimmed[len("IF NOT EXISTS"):]
	}
	if hasWordPrefix(upper, "IF EXISTS") {
		return trimmed[len("IF EXISTS"):]
	}
	return s
}

// extractTableAfter extracts the table name starting after skip bytes of
// prefix, skipping an optional "OR REPLACE"/"INTO" in between for
// INSERT-like statements.
func extractTableAfter(s string, skip int, dialect core.Dialect) string {
	rest := s[skip:]
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	upper := strings.ToUpper(trimmed)
	if hasWordPrefix(upper, "OR REPLACE") {
		trimmed = trimmed[len("OR REPLACE"):]
	} else if hasWordPrefix(upper, "INTO") {
		trimmed = trimmed[len("INTO"):]
	}
	return extractTableName(trimmed, dialect)
}

// extractTableName takes the text immediately following a DDL/DML
// keyword and returns the first identifier, with the schema prefix
// stripped (spec §4.3: "a leading identifier . identifier becomes just
// the second identifier") and the dialect's identifier quoting removed.
func extractTableName(s string, dialect core.Dialect) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" {
		return ""
	}
	name, raw := readIdentifier(s, dialect)
	after := s[len(raw):]
	if strings.HasPrefix(after, ".") {
		second, _ := readIdentifier(after[1:], dialect)
		return second
	}
	return name
}

// readIdentifier reads one identifier token starting at s[0], returning
// its unquoted name and the raw span it consumed from s.
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

// trimLeadingNoise strips leading whitespace, line comments, and block
// comments (including MySQL conditional comments) before classification.
func trimLeadingNoise(s string) string {
	for {
		trimmed := strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(trimmed, "--"):
			if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
				s = trimmed[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(trimmed, "/*"):
			if i := strings.Index(trimmed, "*/"); i >= 0 {
				s = trimmed[i+2:]
				continue
			}
			return ""
		default:
			return trimmed
		}
	}
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
