package differ

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
)

func itemsTable(withPK bool) *core.Table {
	cols := []*core.Column{col("id", 0, core.TypeInt, withPK), col("name", 1, core.TypeText, false)}
	t := &core.Table{Name: "items", Columns: cols}
	if withPK {
		t.PrimaryKey = []core.ColumnID{0}
	}
	return t
}

func row(id int64, name string) core.RowExtractionResult {
	return core.RowExtractionResult{Values: []core.PKValue{core.IntValue(id), core.TextValue(name)}}
}

func TestDataDifferAddedRemovedModified(t *testing.T) {
	table := itemsTable(true)
	dd := newDataDiffer(config.Config{}, 0)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "b"), row(3, "c")}, true)
	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "B"), row(4, "d")}, false)

	diff, warnings := dd.computeDiff()
	require.Empty(t, warnings)

	td, ok := diff.Tables["items"]
	require.True(t, ok)
	require.Equal(t, uint64(3), td.OldRowCount)
	require.Equal(t, uint64(3), td.NewRowCount)
	require.Equal(t, uint64(1), td.AddedCount)
	require.Equal(t, uint64(1), td.RemovedCount)
	require.Equal(t, uint64(1), td.ModifiedCount)
	require.False(t, td.Truncated)
}

func TestDataDifferNoPKWarnsAndSkipsTable(t *testing.T) {
	table := itemsTable(false)
	dd := newDataDiffer(config.Config{}, 0)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a")}, true)
	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "b")}, false)

	diff, warnings := dd.computeDiff()
	require.Len(t, warnings, 1)
	require.Equal(t, "items", warnings[0].Table)
	require.Contains(t, warnings[0].Message, "no primary key")
	require.Empty(t, diff.Tables)
}

func TestDataDifferAllowNoPKUsesFullRowAsKey(t *testing.T) {
	table := itemsTable(false)
	cfg := config.Config{AllowNoPK: true}
	dd := newDataDiffer(cfg, 0)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "b")}, true)
	// row(2, "b") changed to row(2, "B"): with no declared PK, the whole
	// row is the comparison key, so this reads as one row removed and
	// one added rather than one modified.
	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "B")}, false)

	diff, warnings := dd.computeDiff()
	require.Empty(t, warnings)

	td := diff.Tables["items"]
	require.Equal(t, uint64(1), td.AddedCount)
	require.Equal(t, uint64(1), td.RemovedCount)
	require.Equal(t, uint64(0), td.ModifiedCount)
}

func TestDataDifferPKOverrideResolvesKeyOnNoPKTable(t *testing.T) {
	table := itemsTable(false)
	cfg := config.Config{PKOverrides: map[string][]string{"items": {"id"}}}
	dd := newDataDiffer(cfg, 0)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "b")}, true)
	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "B")}, false)

	diff, warnings := dd.computeDiff()
	require.Empty(t, warnings)

	td := diff.Tables["items"]
	require.Equal(t, uint64(1), td.ModifiedCount)
	require.Equal(t, uint64(0), td.AddedCount)
	require.Equal(t, uint64(0), td.RemovedCount)
}

func TestDataDifferPKOverrideInvalidColumnWarnsOnce(t *testing.T) {
	table := itemsTable(false)
	cfg := config.Config{PKOverrides: map[string][]string{"items": {"id", "missing_col"}}}
	dd := newDataDiffer(cfg, 0)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a")}, true)
	dd.processRows(table, []core.RowExtractionResult{row(1, "a")}, true) // second batch must not duplicate the warning

	found := false
	for _, w := range dd.warnings {
		if w.Table == "items" {
			found = true
		}
	}
	require.True(t, found)
	require.Len(t, dd.warnings, 1)
}

func TestDataDifferVerboseSamplesBoundedAndPopulated(t *testing.T) {
	table := itemsTable(true)
	dd := newDataDiffer(config.Config{}, 100)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(2, "b")}, true)
	dd.processRows(table, []core.RowExtractionResult{row(1, "a"), row(3, "c")}, false)

	diff, _ := dd.computeDiff()
	td := diff.Tables["items"]
	require.Equal(t, []string{"3"}, td.SampleAddedPKs)
	require.Equal(t, []string{"2"}, td.SampleRemovedPKs)
}

func TestDataDifferIgnoreColumnsExcludesFromDigest(t *testing.T) {
	table := itemsTable(true)
	cfg := config.Config{IgnoreColumns: []string{"items.name"}}
	dd := newDataDiffer(cfg, 0)

	dd.processRows(table, []core.RowExtractionResult{row(1, "a")}, true)
	dd.processRows(table, []core.RowExtractionResult{row(1, "changed")}, false)

	diff, _ := dd.computeDiff()
	td := diff.Tables["items"]
	require.Equal(t, uint64(0), td.ModifiedCount, "ignored column must not affect the row digest")
}
