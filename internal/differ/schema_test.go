package differ

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
)

func col(name string, ordinal core.ColumnID, typ core.ColumnType, pk bool) *core.Column {
	return &core.Column{Name: name, Ordinal: ordinal, Type: typ, IsPrimaryKey: pk}
}

func TestCompareSchemasTableAddedAndRemoved(t *testing.T) {
	old := core.NewSchema()
	require.True(t, old.AddTable(&core.Table{Name: "widgets"}))

	next := core.NewSchema()
	require.True(t, next.AddTable(&core.Table{
		Name:       "gadgets",
		Columns:    []*core.Column{col("id", 0, core.TypeInt, true)},
		PrimaryKey: []core.ColumnID{0},
	}))

	diff := compareSchemas(old, next, config.Config{})
	require.Len(t, diff.TablesAdded, 1)
	require.Equal(t, "gadgets", diff.TablesAdded[0].Name)
	require.Equal(t, []string{"id"}, diff.TablesAdded[0].PrimaryKey)
	require.Equal(t, []string{"widgets"}, diff.TablesRemoved)
	require.Empty(t, diff.TablesModified)
	require.True(t, diff.HasChanges())
}

func TestCompareSchemasHonoursTableFilter(t *testing.T) {
	old := core.NewSchema()
	require.True(t, old.AddTable(&core.Table{Name: "widgets"}))
	next := core.NewSchema()

	diff := compareSchemas(old, next, config.Config{ExcludeTables: []string{"widgets"}})
	require.Empty(t, diff.TablesRemoved)
	require.False(t, diff.HasChanges())
}

func buildCustomersTable(withEmail, withPhone bool) *core.Table {
	cols := []*core.Column{col("id", 0, core.TypeInt, true), col("name", 1, core.TypeText, false)}
	if withEmail {
		cols = append(cols, col("email", core.ColumnID(len(cols)), core.TypeText, false))
	}
	if withPhone {
		cols = append(cols, col("phone", core.ColumnID(len(cols)), core.TypeText, false))
	}
	return &core.Table{Name: "customers", Columns: cols, PrimaryKey: []core.ColumnID{0}}
}

func TestCompareTablesColumnAddedRemovedModified(t *testing.T) {
	old := buildCustomersTable(true, false)
	next := buildCustomersTable(false, true)
	next.Columns[1].Type = core.TypeDecimal // name also changes type, to exercise ColumnsModified

	mod := compareTables(old, next, config.Config{})
	require.Len(t, mod.ColumnsAdded, 1)
	require.Equal(t, "phone", mod.ColumnsAdded[0].Name)
	require.Len(t, mod.ColumnsRemoved, 1)
	require.Equal(t, "email", mod.ColumnsRemoved[0].Name)
	require.Len(t, mod.ColumnsModified, 1)
	require.Equal(t, "name", mod.ColumnsModified[0].Name)
	require.True(t, mod.ColumnsModified[0].TypeChanged)
	require.False(t, mod.PKChanged)
	require.True(t, mod.HasChanges())
}

func TestCompareTablesIgnoreColumnsExcludesFromDiff(t *testing.T) {
	old := buildCustomersTable(true, false)
	next := buildCustomersTable(false, false)

	mod := compareTables(old, next, config.Config{IgnoreColumns: []string{"customers.email"}})
	require.Empty(t, mod.ColumnsRemoved)
	require.False(t, mod.HasChanges())
}

func TestCompareTablesPKChanged(t *testing.T) {
	old := &core.Table{
		Name:       "orders",
		Columns:    []*core.Column{col("id", 0, core.TypeInt, true), col("line", 1, core.TypeInt, false)},
		PrimaryKey: []core.ColumnID{0},
	}
	next := &core.Table{
		Name:       "orders",
		Columns:    []*core.Column{col("id", 0, core.TypeInt, true), col("line", 1, core.TypeInt, true)},
		PrimaryKey: []core.ColumnID{0, 1},
	}
	mod := compareTables(old, next, config.Config{})
	require.True(t, mod.PKChanged)
	require.Equal(t, []string{"id"}, mod.OldPK)
	require.Equal(t, []string{"id", "line"}, mod.NewPK)
}

func TestDiffFKSetsIsOrderInsensitive(t *testing.T) {
	old := []*core.ForeignKey{{
		Name: "fk_a", OwningColumnNames: []string{"a", "b"},
		ReferencedTable: "parent", ReferencedColumns: []string{"a", "b"},
	}}
	next := []*core.ForeignKey{{
		Name: "fk_a_renamed", OwningColumnNames: []string{"b", "a"},
		ReferencedTable: "parent", ReferencedColumns: []string{"b", "a"},
	}}

	added, removed := diffFKSets(old, next)
	require.Empty(t, added, "column-order-only difference must not register as a change")
	require.Empty(t, removed)
}

func TestDiffFKSetsDetectsRealChange(t *testing.T) {
	old := []*core.ForeignKey{{OwningColumnNames: []string{"a"}, ReferencedTable: "parent", ReferencedColumns: []string{"id"}}}
	next := []*core.ForeignKey{{OwningColumnNames: []string{"a"}, ReferencedTable: "other_parent", ReferencedColumns: []string{"id"}}}

	added, removed := diffFKSets(old, next)
	require.Len(t, added, 1)
	require.Len(t, removed, 1)
}

func TestDiffIndexSetsIsOrderInsensitive(t *testing.T) {
	old := []*core.Index{{
		Name: "idx_a", IsUnique: true,
		Columns: []core.IndexColumn{{Name: "a"}, {Name: "b"}},
	}}
	next := []*core.Index{{
		Name: "idx_a_renamed", IsUnique: true,
		Columns: []core.IndexColumn{{Name: "b"}, {Name: "a"}},
	}}

	added, removed := diffIndexSets(old, next)
	require.Empty(t, added)
	require.Empty(t, removed)
}

func TestDiffIndexSetsDetectsUniqueChange(t *testing.T) {
	old := []*core.Index{{Name: "idx_a", IsUnique: false, Columns: []core.IndexColumn{{Name: "a"}}}}
	next := []*core.Index{{Name: "idx_a", IsUnique: true, Columns: []core.IndexColumn{{Name: "a"}}}}

	added, removed := diffIndexSets(old, next)
	require.Len(t, added, 1)
	require.Len(t, removed, 1)
}
