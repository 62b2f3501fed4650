// Package detector implements the dialect detector (C4): scores a
// dialect from a header sample and returns a confidence level.
package detector

import (
	"bytes"
	"io"
	"regexp"

	"dumpkit/internal/core"
)

// Confidence describes how clear the winning dialect's margin was.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "High"
	case Medium:
		return "Medium"
	default:
		return "Low"
	}
}

const sampleSize = 8 * 1024

// highMarginThreshold and highScoreThreshold implement Open Question (b)
// from spec §9: the reference implementation leaves the threshold
// empirical. This module fixes it as: High requires both the winner's
// score to be at least highScoreThreshold and its margin over the
// runner-up to be at least highMarginThreshold; any positive margin is
// Medium; a total tie falls back to MySQL at Low confidence.
const (
	highScoreThreshold  = 3
	highMarginThreshold = 3
)

var (
	mysqlBacktick  = regexp.MustCompile("`[a-zA-Z_][a-zA-Z0-9_]*`")
	mysqlEngine    = regexp.MustCompile(`(?i)ENGINE\s*=`)
	pgCast         = regexp.MustCompile(`::[a-zA-Z]`)
	pgCopyStdin    = regexp.MustCompile(`(?i)COPY\s+\S+.*FROM\s+stdin`)
	pgBeginEnd     = regexp.MustCompile(`(?i)\bBEGIN\b[\s\S]*?\bEND\s*;`)
	pgSchemaPrefix = regexp.MustCompile(`(?i)\bpublic\.`)
	sqlitePragma   = regexp.MustCompile(`(?i)PRAGMA\s`)
	sqliteAutoinc  = regexp.MustCompile(`(?i)AUTOINCREMENT`)
	mssqlGoLine    = regexp.MustCompile(`(?im)^\s*GO\s*\d*\s*$`)
	mssqlBracket   = regexp.MustCompile(`\[[a-zA-Z_][a-zA-Z0-9_]*\]`)
	mssqlIdentity  = regexp.MustCompile(`(?i)IDENTITY\s*\(`)
	mssqlNString   = regexp.MustCompile(`N'`)
)

// Result is the outcome of dialect detection.
type Result struct {
	Dialect    core.Dialect
	Confidence Confidence
	Scores     map[core.Dialect]int
}

// Detect reads up to 8 KiB from r and scores each dialect by counting
// discriminating tokens (spec §4.4).
func Detect(r io.Reader) (Result, error) {
	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Result{}, err
	}
	sample := trimBOM(buf[:n])

	scores := map[core.Dialect]int{
		core.MySQL:    len(mysqlBacktick.FindAll(sample, -1)) + len(mysqlEngine.FindAll(sample, -1)),
		core.Postgres: len(pgCast.FindAll(sample, -1)) + len(pgCopyStdin.FindAll(sample, -1)) + len(pgBeginEnd.FindAll(sample, -1)) + len(pgSchemaPrefix.FindAll(sample, -1)),
		core.SQLite:   len(sqlitePragma.FindAll(sample, -1)) + len(sqliteAutoinc.FindAll(sample, -1)),
		core.MSSQL:    len(mssqlGoLine.FindAll(sample, -1)) + len(mssqlBracket.FindAll(sample, -1)) + len(mssqlIdentity.FindAll(sample, -1)) + len(mssqlNString.FindAll(sample, -1)),
	}

	return Result{Dialect: winner(scores), Confidence: confidenceOf(scores), Scores: scores}, nil
}

func winner(scores map[core.Dialect]int) core.Dialect {
	best := core.MySQL
	bestScore := -1
	for _, d := range []core.Dialect{core.MySQL, core.Postgres, core.SQLite, core.MSSQL} {
		if scores[d] > bestScore {
			bestScore = scores[d]
			best = d
		}
	}
	return best
}

func confidenceOf(scores map[core.Dialect]int) Confidence {
	ordered := []int{scores[core.MySQL], scores[core.Postgres], scores[core.SQLite], scores[core.MSSQL]}
	best, second := -1, -1
	for _, s := range ordered {
		if s > best {
			second = best
			best = s
		} else if s > second {
			second = s
		}
	}
	if best == 0 {
		return Low
	}
	margin := best - second
	if best >= highScoreThreshold && margin >= highMarginThreshold {
		return High
	}
	if margin > 0 {
		return Medium
	}
	return Low
}

// trimBOM removes a UTF-8 byte-order mark some dump tools prepend.
func trimBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}
