package differ

import (
	"sort"
	"strings"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
)

// SchemaDiff is the outcome of comparing two schemas.
type SchemaDiff struct {
	TablesAdded    []TableInfo
	TablesRemoved  []string
	TablesModified []TableModification
}

// HasChanges reports whether the diff found any difference at all.
func (d *SchemaDiff) HasChanges() bool {
	return len(d.TablesAdded) > 0 || len(d.TablesRemoved) > 0 || len(d.TablesModified) > 0
}

// TableInfo describes a whole table, used for tables that only exist on
// one side of the diff.
type TableInfo struct {
	Name       string
	Columns    []ColumnInfo
	PrimaryKey []string
}

// ColumnInfo is a column's comparison-relevant shape.
type ColumnInfo struct {
	Name         string
	Type         string
	Nullable     bool
	IsPrimaryKey bool
}

func columnInfo(c *core.Column) ColumnInfo {
	return ColumnInfo{Name: c.Name, Type: c.Type.String(), Nullable: c.IsNullable, IsPrimaryKey: c.IsPrimaryKey}
}

func tableInfo(t *core.Table) TableInfo {
	info := TableInfo{Name: t.Name}
	for _, c := range t.Columns {
		info.Columns = append(info.Columns, columnInfo(c))
	}
	for _, id := range t.PrimaryKey {
		if c, ok := findColumnByID(t, id); ok {
			info.PrimaryKey = append(info.PrimaryKey, c.Name)
		}
	}
	return info
}

func findColumnByID(t *core.Table, id core.ColumnID) (*core.Column, bool) {
	for _, c := range t.Columns {
		if c.Ordinal == id {
			return c, true
		}
	}
	return nil, false
}

// TableModification lists what changed about a table present on both
// sides.
type TableModification struct {
	Table string

	ColumnsAdded    []ColumnInfo
	ColumnsRemoved  []ColumnInfo
	ColumnsModified []ColumnChange

	PKChanged bool
	OldPK     []string
	NewPK     []string

	FKsAdded     []FKInfo
	FKsRemoved   []FKInfo
	IndexesAdded []IndexInfo
	IndexesRemoved []IndexInfo
}

// HasChanges reports whether m describes any actual modification.
func (m TableModification) HasChanges() bool {
	return len(m.ColumnsAdded) > 0 || len(m.ColumnsRemoved) > 0 || len(m.ColumnsModified) > 0 ||
		m.PKChanged || len(m.FKsAdded) > 0 || len(m.FKsRemoved) > 0 ||
		len(m.IndexesAdded) > 0 || len(m.IndexesRemoved) > 0
}

// ColumnChange records a type and/or nullability change for one column
// present on both sides.
type ColumnChange struct {
	Name string

	TypeChanged bool
	OldType     string
	NewType     string

	NullableChanged bool
	OldNullable     bool
	NewNullable     bool
}

// FKInfo is a foreign key's comparison-relevant shape.
type FKInfo struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
}

func fkInfo(fk *core.ForeignKey) FKInfo {
	return FKInfo{
		Name:              fk.Name,
		Columns:           fk.OwningColumnNames,
		ReferencedTable:   fk.ReferencedTable,
		ReferencedColumns: fk.ReferencedColumns,
	}
}

// key returns a canonical, order-insensitive identity for set
// comparison (spec §4.11: FK/index equality ignores column order).
func (f FKInfo) key() string {
	cols := sortedCopy(f.Columns)
	refCols := sortedCopy(f.ReferencedColumns)
	return strings.ToLower(f.ReferencedTable) + "|" + strings.Join(cols, ",") + "|" + strings.Join(refCols, ",")
}

// IndexInfo is an index's comparison-relevant shape.
type IndexInfo struct {
	Name      string
	Columns   []string
	IsUnique  bool
	IndexType string
}

func indexInfo(idx *core.Index) IndexInfo {
	info := IndexInfo{Name: idx.Name, IsUnique: idx.IsUnique, IndexType: idx.IndexType}
	for _, c := range idx.Columns {
		info.Columns = append(info.Columns, c.Name)
	}
	return info
}

func (i IndexInfo) key() string {
	cols := sortedCopy(i.Columns)
	unique := "0"
	if i.IsUnique {
		unique = "1"
	}
	return strings.Join(cols, ",") + "|" + unique
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}

// compareSchemas diffs old and new, honoring the include/exclude table
// filter and ignore-columns glob from cfg (spec §6/§4.11).
func compareSchemas(oldSchema, newSchema *core.Schema, cfg config.Config) SchemaDiff {
	var diff SchemaDiff

	for _, nt := range newSchema.Tables {
		if !cfg.TableIncluded(nt.Name) {
			continue
		}
		if oldSchema.TableByName(nt.Name) == nil {
			info := tableInfo(nt)
			info.Columns = filterIgnoredColumns(info.Columns, nt.Name, cfg)
			diff.TablesAdded = append(diff.TablesAdded, info)
		}
	}

	for _, ot := range oldSchema.Tables {
		if !cfg.TableIncluded(ot.Name) {
			continue
		}
		nt := newSchema.TableByName(ot.Name)
		if nt == nil {
			diff.TablesRemoved = append(diff.TablesRemoved, ot.Name)
			continue
		}
		mod := compareTables(ot, nt, cfg)
		if mod.HasChanges() {
			diff.TablesModified = append(diff.TablesModified, mod)
		}
	}

	return diff
}

func filterIgnoredColumns(cols []ColumnInfo, table string, cfg config.Config) []ColumnInfo {
	if len(cfg.IgnoreColumns) == 0 {
		return cols
	}
	kept := cols[:0:0]
	for _, c := range cols {
		if !cfg.ColumnIgnored(table, c.Name) {
			kept = append(kept, c)
		}
	}
	return kept
}

func compareTables(old, new *core.Table, cfg config.Config) TableModification {
	mod := TableModification{Table: old.Name}

	oldCols := make(map[string]*core.Column, len(old.Columns))
	for _, c := range old.Columns {
		oldCols[strings.ToLower(c.Name)] = c
	}
	newCols := make(map[string]*core.Column, len(new.Columns))
	for _, c := range new.Columns {
		newCols[strings.ToLower(c.Name)] = c
	}

	for _, nc := range new.Columns {
		if cfg.ColumnIgnored(old.Name, nc.Name) {
			continue
		}
		if _, ok := oldCols[strings.ToLower(nc.Name)]; !ok {
			mod.ColumnsAdded = append(mod.ColumnsAdded, columnInfo(nc))
		}
	}
	for _, oc := range old.Columns {
		if cfg.ColumnIgnored(old.Name, oc.Name) {
			continue
		}
		nc, ok := newCols[strings.ToLower(oc.Name)]
		if !ok {
			mod.ColumnsRemoved = append(mod.ColumnsRemoved, columnInfo(oc))
			continue
		}
		if change, changed := compareColumns(oc, nc); changed {
			mod.ColumnsModified = append(mod.ColumnsModified, change)
		}
	}

	oldPK := pkNames(old)
	newPK := pkNames(new)
	mod.PKChanged = !stringsEqual(oldPK, newPK)
	if mod.PKChanged {
		mod.OldPK, mod.NewPK = oldPK, newPK
	}

	mod.FKsAdded, mod.FKsRemoved = diffFKSets(old.ForeignKeys, new.ForeignKeys)
	mod.IndexesAdded, mod.IndexesRemoved = diffIndexSets(old.Indexes, new.Indexes)

	return mod
}

func pkNames(t *core.Table) []string {
	var names []string
	for _, id := range t.PrimaryKey {
		if c, ok := findColumnByID(t, id); ok {
			names = append(names, c.Name)
		}
	}
	return names
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compareColumns(old, new *core.Column) (ColumnChange, bool) {
	change := ColumnChange{Name: old.Name}
	typeChanged := old.Type != new.Type
	nullableChanged := old.IsNullable != new.IsNullable
	if !typeChanged && !nullableChanged {
		return change, false
	}
	if typeChanged {
		change.TypeChanged = true
		change.OldType, change.NewType = old.Type.String(), new.Type.String()
	}
	if nullableChanged {
		change.NullableChanged = true
		change.OldNullable, change.NewNullable = old.IsNullable, new.IsNullable
	}
	return change, true
}

func diffFKSets(old, new []*core.ForeignKey) (added, removed []FKInfo) {
	oldKeys := make(map[string]bool, len(old))
	for _, fk := range old {
		oldKeys[fkInfo(fk).key()] = true
	}
	newKeys := make(map[string]bool, len(new))
	for _, fk := range new {
		newKeys[fkInfo(fk).key()] = true
	}
	for _, fk := range new {
		if !oldKeys[fkInfo(fk).key()] {
			added = append(added, fkInfo(fk))
		}
	}
	for _, fk := range old {
		if !newKeys[fkInfo(fk).key()] {
			removed = append(removed, fkInfo(fk))
		}
	}
	return added, removed
}

func diffIndexSets(old, new []*core.Index) (added, removed []IndexInfo) {
	oldKeys := make(map[string]bool, len(old))
	for _, idx := range old {
		oldKeys[indexInfo(idx).key()] = true
	}
	newKeys := make(map[string]bool, len(new))
	for _, idx := range new {
		newKeys[indexInfo(idx).key()] = true
	}
	for _, idx := range new {
		if !oldKeys[indexInfo(idx).key()] {
			added = append(added, indexInfo(idx))
		}
	}
	for _, idx := range old {
		if !newKeys[indexInfo(idx).key()] {
			removed = append(removed, indexInfo(idx))
		}
	}
	return added, removed
}
