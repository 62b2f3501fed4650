// Package ddl implements the DDL parser / schema builder (C5): it
// consumes CREATE/ALTER/CREATE INDEX statements and produces the schema
// model in internal/core.
package ddl

import (
	"strings"

	"dumpkit/internal/core"
)

// Finding is a non-fatal parse issue: a malformed clause is skipped and
// recorded rather than aborting the command (spec §7).
type Finding struct {
	Table   string
	Message string
}

// Builder accumulates CREATE/ALTER/CREATE INDEX statements into a
// core.Schema. Feed every DDL statement, in input order, then call
// Finalize once to run FK resolution.
type Builder struct {
	dialect  core.Dialect
	schema   *core.Schema
	findings []Finding
}

// NewBuilder returns an empty builder for the given dialect.
func NewBuilder(dialect core.Dialect) *Builder {
	return &Builder{dialect: dialect, schema: core.NewSchema()}
}

// Findings returns every non-fatal issue recorded so far.
func (b *Builder) Findings() []Finding { return b.findings }

func (b *Builder) warn(table, msg string) {
	b.findings = append(b.findings, Finding{Table: table, Message: msg})
}

// Feed processes one classified statement. Only CreateTable, AlterTable,
// and CreateIndex statements do anything; everything else is ignored by
// the schema builder (it is handled by the row parser or passed
// through).
func (b *Builder) Feed(stmt core.Statement) {
	switch stmt.Kind {
	case core.CreateTable:
		b.feedCreateTable(stmt)
	case core.AlterTable:
		b.feedAlterTable(stmt)
	case core.CreateIndex:
		b.feedCreateIndex(stmt)
	}
}

// Finalize runs the FK-resolution pass and returns the finished schema.
// Call this once, after every DDL statement has been fed.
func (b *Builder) Finalize() *core.Schema {
	b.schema.ResolveForeignKeys()
	return b.schema
}

func (b *Builder) feedCreateTable(stmt core.Statement) {
	if stmt.Table == "" {
		b.warn("", "CREATE TABLE with no extractable table name, skipped")
		return
	}
	body, ok := parenBody(string(stmt.Raw))
	table := &core.Table{Name: stmt.Table, RawDDL: string(stmt.Raw)}
	if !ok {
		b.warn(stmt.Table, "CREATE TABLE has no parenthesised body, registering empty table")
		if !b.schema.AddTable(table) {
			b.warn(stmt.Table, "duplicate table name, ignoring redefinition")
		}
		return
	}

	var nextOrdinal core.ColumnID
	for _, part := range commaSplitTopLevel(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch kind, rest, constraintName := classifyBodyPart(part, b.dialect); kind {
		case partColumn:
			col := parseColumnDef(part, b.dialect)
			if col == nil {
				b.warn(stmt.Table, "malformed column definition, skipped: "+truncate(part))
				continue
			}
			col.Ordinal = nextOrdinal
			nextOrdinal++
			table.Columns = append(table.Columns, col)
			if col.IsPrimaryKey {
				table.PrimaryKey = append(table.PrimaryKey, col.Ordinal)
			}
		case partPrimaryKey:
			cols := parseColumnList(rest, b.dialect)
			for _, name := range cols {
				if id, ok := columnIDByName(table, name); ok {
					table.PrimaryKey = append(table.PrimaryKey, id)
					table.Columns[id].IsPrimaryKey = true
				}
			}
		case partForeignKey:
			fk := parseForeignKey(rest, constraintName, table, b.dialect)
			if fk == nil {
				b.warn(stmt.Table, "malformed foreign key, discarded: "+truncate(part))
				continue
			}
			table.ForeignKeys = append(table.ForeignKeys, fk)
		case partIndex:
			idx := parseIndex(rest, constraintName, b.dialect)
			if idx != nil {
				table.Indexes = append(table.Indexes, idx)
			}
		case partCheck:
			// ignored per spec §4.5
		}
	}

	if !b.schema.AddTable(table) {
		b.warn(stmt.Table, "duplicate table name (case-insensitive), ignoring redefinition")
	}
}

func (b *Builder) feedAlterTable(stmt core.Statement) {
	table := b.schema.TableByName(stmt.Table)
	if table == nil {
		b.warn(stmt.Table, "ALTER TABLE on unknown table, ignored")
		return
	}
	raw := string(stmt.Raw)
	upper := strings.ToUpper(raw)
	tableIdx := findWord(upper, "TABLE")
	if tableIdx < 0 {
		return
	}
	trimmed := strings.TrimLeft(raw[tableIdx+len("TABLE"):], " \t\r\n")
	_, tok := readIdentifier(trimmed, b.dialect)
	rest := trimmed[len(tok):]
	if strings.HasPrefix(rest, ".") {
		_, tok2 := readIdentifier(rest[1:], b.dialect)
		rest = rest[1+len(tok2):]
	}

	for _, clause := range commaSplitTopLevel(rest) {
		clause = strings.TrimSpace(clause)
		clauseUpper := strings.ToUpper(clause)
		if hasWordPrefix(clauseUpper, "ADD") {
			_, n := consumeWord(clauseUpper)
			clause = strings.TrimLeft(clause[n:], " \t\r\n")
		}
		kind, body, constraintName := classifyBodyPart(clause, b.dialect)
		if kind != partForeignKey {
			continue
		}
		if fk := parseForeignKey(body, constraintName, table, b.dialect); fk != nil {
			table.ForeignKeys = append(table.ForeignKeys, fk)
		} else {
			b.warn(stmt.Table, "malformed FK in ALTER TABLE, discarded")
		}
	}
}

func (b *Builder) feedCreateIndex(stmt core.Statement) {
	table := b.schema.TableByName(stmt.Table)
	if table == nil {
		b.warn(stmt.Table, "CREATE INDEX on unknown table, ignored")
		return
	}
	raw := string(stmt.Raw)
	name := indexNameFromCreateIndex(raw, b.dialect)
	body, ok := parenBody(raw)
	if !ok {
		b.warn(stmt.Table, "CREATE INDEX with no column list, skipped")
		return
	}
	idx := &core.Index{
		Name:     name,
		Columns:  parseIndexColumnList(body, b.dialect),
		IsUnique: strings.Contains(strings.ToUpper(raw), "UNIQUE"),
	}
	table.Indexes = append(table.Indexes, idx)
}

func truncate(s string) string {
	const max = 80
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func columnIDByName(t *core.Table, name string) (core.ColumnID, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c.Ordinal, true
		}
	}
	return 0, false
}
