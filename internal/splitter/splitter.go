// Package splitter implements the dialect-aware statement splitter (C2):
// a byte-level state machine that segments a dump into individual
// statements across MySQL, PostgreSQL, SQLite, and MSSQL.
package splitter

import (
	"bytes"
	"io"

	"dumpkit/internal/core"
)

// Source is the pull-style byte source the splitter scans. *reader.Reader
// satisfies it; tests may use a simple in-memory implementation.
type Source interface {
	ReadByte() (byte, error)
	Peek(n int) ([]byte, error)
}

type scanState int

const (
	stateDefault scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateBracket
	stateDollarQuote
	stateLineComment
	stateBlockComment
)

// Splitter emits one statement at a time from src, scanned under dialect's
// lexical rules.
type Splitter struct {
	src     Source
	dialect core.Dialect
	idx     int
	eof     bool
}

// New returns a splitter over src for the given dialect.
func New(src Source, dialect core.Dialect) *Splitter {
	return &Splitter{src: src, dialect: dialect}
}

// Next returns the next statement, or io.EOF once the source is
// exhausted. An unterminated string or quote at EOF is not an error: the
// accumulated bytes are emitted as a final trailing statement (spec
// §4.2, §7).
func (s *Splitter) Next() (core.Statement, error) {
	if s.eof {
		return core.Statement{}, io.EOF
	}

	var buf []byte
	state := stateDefault
	lineStart := 0
	var dollarDelim []byte

	for {
		b, err := s.src.ReadByte()
		if err != nil {
			s.eof = true
			if len(buf) == 0 {
				return core.Statement{}, io.EOF
			}
			return s.emit(buf), nil
		}
		buf = append(buf, b)

		switch state {
		case stateDefault:
			switch b {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '`':
				if s.dialect == core.MySQL {
					state = stateBacktick
				}
			case '[':
				if s.dialect == core.MSSQL {
					state = stateBracket
				}
			case '-':
				if s.peekIs('-') {
					c, _ := s.src.ReadByte()
					buf = append(buf, c)
					state = stateLineComment
				}
			case '/':
				if s.peekIs('*') {
					c, _ := s.src.ReadByte()
					buf = append(buf, c)
					state = stateBlockComment
				}
			case '$':
				if s.dialect.SupportsDollarQuoting() {
					if tail, ok := s.tryDollarTag(); ok {
						buf = append(buf, tail...)
						dollarDelim = append([]byte{'$'}, tail...)
						state = stateDollarQuote
					}
				}
			case ';':
				if !s.dialect.UsesGoBatchSeparator() {
					return s.emit(buf), nil
				}
			case '\n':
				if s.dialect.UsesGoBatchSeparator() {
					line := buf[lineStart : len(buf)-1] // exclude the newline itself
					if matchGoLine(line) {
						return s.emit(buf), nil
					}
				}
				lineStart = len(buf)
			}

		case stateSingleQuote:
			if s.dialect.BackslashEscapesInStrings() && b == '\\' {
				if c, err := s.src.ReadByte(); err == nil {
					buf = append(buf, c)
				}
				continue
			}
			if b == '\'' {
				if s.peekIs('\'') {
					c, _ := s.src.ReadByte()
					buf = append(buf, c)
					continue
				}
				state = stateDefault
			}

		case stateDoubleQuote:
			if b == '"' {
				if s.peekIs('"') {
					c, _ := s.src.ReadByte()
					buf = append(buf, c)
					continue
				}
				state = stateDefault
			}

		case stateBacktick:
			if b == '`' {
				if s.peekIs('`') {
					c, _ := s.src.ReadByte()
					buf = append(buf, c)
					continue
				}
				state = stateDefault
			}

		case stateBracket:
			if b == ']' {
				if s.peekIs(']') {
					c, _ := s.src.ReadByte()
					buf = append(buf, c)
					continue
				}
				state = stateDefault
			}

		case stateDollarQuote:
			if bytes.HasSuffix(buf, dollarDelim) {
				state = stateDefault
			}

		case stateLineComment:
			if b == '\n' {
				state = stateDefault
				lineStart = len(buf)
			}

		case stateBlockComment:
			if bytes.HasSuffix(buf, []byte("*/")) {
				state = stateDefault
			}
		}
	}
}

// NextCopyData reads the PostgreSQL COPY ... FROM stdin data block as a
// single pseudo-statement, ending at a line containing exactly "\." (spec
// §4.2). Call this only immediately after Next() returned a statement
// the classifier tagged core.Copy.
func (s *Splitter) NextCopyData() (core.Statement, error) {
	if s.eof {
		return core.Statement{}, io.EOF
	}
	// The line break that ends the header line belongs to neither the
	// header statement nor the data block.
	if s.peekIs('\r') {
		_, _ = s.src.ReadByte()
	}
	if s.peekIs('\n') {
		_, _ = s.src.ReadByte()
	}
	var buf []byte
	lineStart := 0
	for {
		b, err := s.src.ReadByte()
		if err != nil {
			s.eof = true
			if len(buf) == 0 {
				return core.Statement{}, io.EOF
			}
			return s.emit(buf), nil
		}
		buf = append(buf, b)
		if b == '\n' {
			line := buf[lineStart : len(buf)-1]
			line = bytes.TrimSuffix(line, []byte("\r"))
			if string(line) == `\.` {
				return s.emit(buf), nil
			}
			lineStart = len(buf)
		}
	}
}

func (s *Splitter) emit(buf []byte) core.Statement {
	stmt := core.Statement{Raw: buf, Index: s.idx}
	s.idx++
	return stmt
}

func (s *Splitter) peekIs(want byte) bool {
	p, err := s.src.Peek(1)
	return err == nil && len(p) == 1 && p[0] == want
}

// tryDollarTag looks ahead (without consuming, until a match is
// confirmed) for a valid PostgreSQL dollar-quote tag following a '$'
// already consumed from the stream. tag is letters/digits/underscore,
// may be empty, first byte (if any) not a digit. Returns the matched
// bytes (tag plus trailing '$') to append and consume, or ok=false if
// '$' was not followed by a valid tag (in which case it is literal and
// nothing further is consumed).
func (s *Splitter) tryDollarTag() (tail []byte, ok bool) {
	const maxTagLookahead = 64
	peeked, _ := s.src.Peek(maxTagLookahead)
	if len(peeked) == 0 {
		return nil, false
	}
	i := 0
	for i < len(peeked) && isTagChar(peeked[i], i == 0) {
		i++
	}
	if i >= len(peeked) || peeked[i] != '$' {
		return nil, false
	}
	matched := peeked[:i+1]
	consumed := make([]byte, 0, len(matched))
	for range matched {
		c, err := s.src.ReadByte()
		if err != nil {
			break
		}
		consumed = append(consumed, c)
	}
	return consumed, true
}

func isTagChar(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}

// matchGoLine reports whether line (a complete line, without its
// trailing newline) is an MSSQL GO batch separator: GO, case
// insensitive, optionally followed by whitespace and a positive integer
// repetition count, both before any trailing comment (spec §4.2).
func matchGoLine(line []byte) bool {
	line = bytes.TrimRight(line, "\r")
	i := skipSpace(line, 0)
	if i+2 > len(line) || !equalFoldByte(line[i], 'g') || !equalFoldByte(line[i+1], 'o') {
		return false
	}
	i += 2
	i = skipSpace(line, i)
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	i = skipSpace(line, i)
	if i >= len(line) {
		return true
	}
	return bytes.HasPrefix(line[i:], []byte("--"))
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i
}

func equalFoldByte(b, want byte) bool {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	return b == want
}
