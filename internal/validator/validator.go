// Package validator implements the dump integrity checker (C12): a
// two-pass scan over one SQL dump that reports syntax/encoding
// problems, INSERT/COPY statements referencing a table with no CREATE
// TABLE, duplicate primary keys, and FK references with no matching
// parent row (spec §4.12), reusing the same splitter/classifier/DDL
// builder/row parser C2/C3/C5/C7 already provide.
package validator

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"dumpkit/internal/classifier"
	"dumpkit/internal/core"
	"dumpkit/internal/ddl"
	"dumpkit/internal/membership"
	"dumpkit/internal/rowparser"
	"dumpkit/internal/splitter"
)

// maxIssues caps the number of issues collected before validation stops
// recording new ones (spec §4.12), avoiding unbounded memory on a
// badly malformed dump.
const maxIssues = 1000

// maxFKIssuesPerTable caps how many FK-missing-parent issues are
// reported per child table; the count still accumulates past this.
const maxFKIssuesPerTable = 5

// Severity is an issue's level.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	default:
		return "INFO"
	}
}

// Location pinpoints where an issue was found.
type Location struct {
	Table          string
	StatementIndex uint64
	HasStatement   bool
}

// Issue is one validation finding.
type Issue struct {
	Code     string
	Severity Severity
	Message  string
	Location Location
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s [%s]", i.Severity, i.Code)
	if i.Location.Table != "" {
		s += fmt.Sprintf(" table=%s", i.Location.Table)
	}
	if i.Location.HasStatement {
		s += fmt.Sprintf(" stmt=%d", i.Location.StatementIndex)
	}
	return s + ": " + i.Message
}

// Options configures one Run.
type Options struct {
	Path    string
	Dialect core.Dialect

	FKChecksEnabled bool // PK-duplicate and FK-orphan checks (pass 2)
	MaxRowsPerTable uint64 // 0 uses membership.DefaultPerTableCap
}

// CheckState is the outcome of one named check.
type CheckState int

const (
	CheckOK CheckState = iota
	CheckFailed
	CheckSkipped
)

// CheckStatus reports one check's result for the summary table.
type CheckStatus struct {
	State  CheckState
	Count  int
	Reason string
}

func (s CheckStatus) String() string {
	switch s.State {
	case CheckOK:
		return "OK"
	case CheckSkipped:
		return fmt.Sprintf("Skipped (%s)", s.Reason)
	default:
		return fmt.Sprintf("%d issues", s.Count)
	}
}

// SummaryStats rolls up issue counts and pass coverage.
type SummaryStats struct {
	Errors            int
	Warnings          int
	Info              int
	TablesScanned     int
	StatementsScanned uint64
}

// CheckResults is the per-check pass/fail/skip breakdown.
type CheckResults struct {
	Syntax            CheckStatus
	Encoding          CheckStatus
	DDLDMLConsistency CheckStatus
	PKDuplicates      CheckStatus
	FKIntegrity       CheckStatus
}

// Summary is the complete outcome of a Run.
type Summary struct {
	Dialect string
	Issues  []Issue
	Stats   SummaryStats
	Checks  CheckResults
}

// HasErrors reports whether any issue is Error severity.
func (s *Summary) HasErrors() bool { return s.Stats.Errors > 0 }

type dmlRef struct {
	table    string
	stmtIdx  uint64
}

type tableState struct {
	rowCount         uint64
	pkValues         map[string]struct{} // nil once checks are disabled for this table
	pkDuplicates     uint64
	fkMissingParents uint64
}

type pendingFKCheck struct {
	childTable, parentTable   string
	childTableID, parentTableID core.TableID
	fkKey, fkDisplay          string
	stmtIdx                   uint64
}

// validator is the Run-scoped working state; Run constructs and drives
// one to completion.
type validator struct {
	opts    Options
	dialect core.Dialect

	issues []Issue

	tablesFromDDL map[string]bool
	tablesFromDML []dmlRef

	builder *ddl.Builder
	schema  *core.Schema

	tableStates map[core.TableID]*tableState
	pendingFK   []pendingFKCheck

	statementCount uint64
	syntaxErrors   int
	encodingWarns  int
	ddlDmlErrors   int
	pkErrors       int
	fkErrors       int
}

// Run validates the dump at opts.Path.
func Run(opts Options) (*Summary, error) {
	maxRows := opts.MaxRowsPerTable
	if maxRows == 0 {
		maxRows = membership.DefaultPerTableCap
	}
	opts.MaxRowsPerTable = maxRows

	v := &validator{
		opts:          opts,
		dialect:       opts.Dialect,
		tablesFromDDL: make(map[string]bool),
		builder:       ddl.NewBuilder(opts.Dialect),
		tableStates:   make(map[core.TableID]*tableState),
	}

	if err := v.runSyntaxPass(); err != nil {
		return nil, err
	}
	v.checkDMLTablesExist()

	if opts.FKChecksEnabled {
		v.schema = v.builder.Finalize()
		v.initializeTableStates()
		if len(v.schema.Tables) > 0 {
			if err := v.runDataPass(); err != nil {
				return nil, err
			}
			v.validatePendingFKChecks()
		}
	}

	return v.buildSummary(), nil
}

func (v *validator) addIssue(issue Issue) {
	if len(v.issues) >= maxIssues {
		return
	}
	switch issue.Severity {
	case Error:
		switch issue.Code {
		case "SYNTAX":
			v.syntaxErrors++
		case "DDL_MISSING_TABLE":
			v.ddlDmlErrors++
		case "DUPLICATE_PK":
			v.pkErrors++
		case "FK_MISSING_PARENT":
			v.fkErrors++
		}
	case Warning:
		if issue.Code == "ENCODING" {
			v.encodingWarns++
		}
	}
	v.issues = append(v.issues, issue)
}

// runSyntaxPass reads every statement once, feeding CREATE/ALTER/CREATE
// INDEX to the schema builder, recording DDL and DML table names, and
// flagging invalid UTF-8 (spec §4.12).
func (v *validator) runSyntaxPass() error {
	f, err := os.Open(v.opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	sp := splitter.New(bufio.NewReaderSize(f, 64*1024), v.dialect)

	for {
		stmt, err := sp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			v.addIssue(Issue{
				Code: "SYNTAX", Severity: Error,
				Message:  fmt.Sprintf("parser error: %v", err),
				Location: Location{StatementIndex: v.statementCount + 1, HasStatement: true},
			})
			break
		}
		// Whitespace after the final terminator is not a statement.
		if len(bytes.TrimSpace(stmt.Raw)) == 0 {
			continue
		}
		v.statementCount++

		if !utf8.Valid(stmt.Raw) {
			v.addIssue(Issue{
				Code: "ENCODING", Severity: Warning,
				Message:  "statement contains invalid UTF-8 bytes",
				Location: Location{StatementIndex: v.statementCount, HasStatement: true},
			})
		}

		kind, table := classifier.Classify(stmt.Raw, v.dialect)
		stmt.Kind, stmt.Table = kind, table

		switch kind {
		case core.CreateTable:
			if table != "" {
				v.tablesFromDDL[lower(table)] = true
			}
			v.builder.Feed(stmt)
		case core.AlterTable, core.CreateIndex:
			v.builder.Feed(stmt)
		case core.Insert, core.Copy:
			if table != "" {
				v.tablesFromDML = append(v.tablesFromDML, dmlRef{table: table, stmtIdx: v.statementCount})
			}
			if kind == core.Copy && v.dialect.SupportsCopy() {
				if _, err := sp.NextCopyData(); err != nil && err != io.EOF {
					return fmt.Errorf("skipping COPY data: %w", err)
				}
			}
		}
	}
	return nil
}

func (v *validator) checkDMLTablesExist() {
	for _, ref := range v.tablesFromDML {
		if v.tablesFromDDL[lower(ref.table)] {
			continue
		}
		v.addIssue(Issue{
			Code: "DDL_MISSING_TABLE", Severity: Error,
			Message:  fmt.Sprintf("INSERT/COPY references table %q with no CREATE TABLE", ref.table),
			Location: Location{Table: ref.table, StatementIndex: ref.stmtIdx, HasStatement: true},
		})
	}
}

func (v *validator) initializeTableStates() {
	for _, t := range v.schema.Tables {
		v.tableStates[t.ID] = &tableState{pkValues: make(map[string]struct{})}
	}
}

// runDataPass re-reads the dump once, parsing INSERT/COPY rows against
// the finalized schema to check for duplicate PKs and to collect FK
// references for deferred validation (spec §4.12: a child row may
// precede its parent row in the dump, so FK checks cannot run until
// every table's PK set is fully populated).
func (v *validator) runDataPass() error {
	f, err := os.Open(v.opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	sp := splitter.New(bufio.NewReaderSize(f, 64*1024), v.dialect)

	for {
		stmt, err := sp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("re-reading %s: %w", v.opts.Path, err)
		}

		kind, tableName := classifier.Classify(stmt.Raw, v.dialect)
		if tableName == "" {
			continue
		}

		switch kind {
		case core.Insert:
			table := v.schema.TableByName(tableName)
			if table == nil {
				continue
			}
			rows, err := rowparser.ParseInsert(stmt.Raw, table, v.dialect)
			if err != nil {
				continue
			}
			for _, row := range rows {
				v.checkRow(table, row)
			}

		case core.Copy:
			if !v.dialect.SupportsCopy() {
				continue
			}
			data, derr := sp.NextCopyData()
			if derr != nil && derr != io.EOF {
				return fmt.Errorf("reading COPY data: %w", derr)
			}
			table := v.schema.TableByName(tableName)
			if table == nil {
				continue
			}
			cols := rowparser.ParseCopyHeaderColumns(string(stmt.Raw))
			rows := rowparser.ParseCopyData(data.Raw, table, cols)
			for _, row := range rows {
				v.checkRow(table, row)
			}
		}
	}
	return nil
}

func (v *validator) checkRow(table *core.Table, row core.RowExtractionResult) {
	state := v.tableStates[table.ID]
	if state == nil {
		return
	}
	state.rowCount++

	if state.rowCount > v.opts.MaxRowsPerTable {
		if state.pkValues != nil {
			state.pkValues = nil
			v.addIssue(Issue{
				Code: "PK_CHECK_SKIPPED", Severity: Warning,
				Message: fmt.Sprintf("skipping PK/FK checks for table %q after %d rows", table.Name, v.opts.MaxRowsPerTable),
				Location: Location{Table: table.Name},
			})
		}
		return
	}

	if len(row.PK) > 0 && state.pkValues != nil {
		key := pkKey(row.PK)
		if _, dup := state.pkValues[key]; dup {
			state.pkDuplicates++
			v.addIssue(Issue{
				Code: "DUPLICATE_PK", Severity: Error,
				Message:  fmt.Sprintf("duplicate primary key in table %q: (%s)", table.Name, displayTuple(row.PK)),
				Location: Location{Table: table.Name},
			})
		} else {
			state.pkValues[key] = struct{}{}
		}
	}

	for _, fk := range row.FKs {
		if !fk.Ref.FK.ReferencedTableKnown {
			continue
		}
		parent := v.schema.TableByName(fk.Ref.FK.ReferencedTable)
		if parent == nil {
			continue
		}
		v.pendingFK = append(v.pendingFK, pendingFKCheck{
			childTable:    table.Name,
			childTableID:  table.ID,
			parentTable:   parent.Name,
			parentTableID: parent.ID,
			fkKey:         pkKey(fk.Tuple),
			fkDisplay:     displayTuple(fk.Tuple),
			stmtIdx:       v.statementCount,
		})
	}
}

func (v *validator) validatePendingFKChecks() {
	for _, check := range v.pendingFK {
		parentState := v.tableStates[check.parentTableID]
		parentHasPK := parentState != nil && parentState.pkValues != nil
		if parentHasPK {
			if _, ok := parentState.pkValues[check.fkKey]; ok {
				continue
			}
		} else if parentState != nil && parentState.pkValues == nil {
			// PK checks were skipped for the parent table (row cap
			// exceeded); assume present rather than report a false
			// orphan for data we never finished indexing.
			continue
		}

		childState := v.tableStates[check.childTableID]
		if childState == nil {
			continue
		}
		childState.fkMissingParents++
		if childState.fkMissingParents > maxFKIssuesPerTable {
			continue
		}
		v.addIssue(Issue{
			Code: "FK_MISSING_PARENT", Severity: Error,
			Message: fmt.Sprintf("FK violation in %q: (%s) references missing row in %q",
				check.childTable, check.fkDisplay, check.parentTable),
			Location: Location{Table: check.childTable, StatementIndex: check.stmtIdx, HasStatement: true},
		})
	}
}

// pkKey canonicalises a PK/FK tuple into a map key, tagging each
// component's kind so differently-typed values can never collide
// (spec §3).
func pkKey(tuple core.PKTuple) string {
	s := ""
	for _, v := range tuple {
		s += fmt.Sprintf("%d:%s\x00", v.Kind, v.String())
	}
	return s
}

func displayTuple(tuple core.PKTuple) string {
	s := ""
	for i, v := range tuple {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (v *validator) buildSummary() *Summary {
	errors, warnings, info := 0, 0, 0
	for _, issue := range v.issues {
		switch issue.Severity {
		case Error:
			errors++
		case Warning:
			warnings++
		default:
			info++
		}
	}

	syntaxStatus := CheckStatus{State: CheckOK}
	if v.syntaxErrors > 0 {
		syntaxStatus = CheckStatus{State: CheckFailed, Count: v.syntaxErrors}
	}
	encodingStatus := CheckStatus{State: CheckOK}
	if v.encodingWarns > 0 {
		encodingStatus = CheckStatus{State: CheckFailed, Count: v.encodingWarns}
	}
	ddlDmlStatus := CheckStatus{State: CheckOK}
	if v.ddlDmlErrors > 0 {
		ddlDmlStatus = CheckStatus{State: CheckFailed, Count: v.ddlDmlErrors}
	}

	pkStatus := CheckStatus{State: CheckSkipped, Reason: "fk checks disabled"}
	fkStatus := CheckStatus{State: CheckSkipped, Reason: "fk checks disabled"}
	if v.opts.FKChecksEnabled {
		pkStatus = CheckStatus{State: CheckOK}
		if v.pkErrors > 0 {
			pkStatus = CheckStatus{State: CheckFailed, Count: v.pkErrors}
		}
		fkStatus = CheckStatus{State: CheckOK}
		if v.fkErrors > 0 {
			fkStatus = CheckStatus{State: CheckFailed, Count: v.fkErrors}
		}
	}

	return &Summary{
		Dialect: string(v.dialect),
		Issues:  v.issues,
		Stats: SummaryStats{
			Errors: errors, Warnings: warnings, Info: info,
			TablesScanned:     len(v.tablesFromDDL),
			StatementsScanned: v.statementCount,
		},
		Checks: CheckResults{
			Syntax: syntaxStatus, Encoding: encodingStatus, DDLDMLConsistency: ddlDmlStatus,
			PKDuplicates: pkStatus, FKIntegrity: fkStatus,
		},
	}
}
