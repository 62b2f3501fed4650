package rowparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/core"
)

func usersTableWithFK() *core.Table {
	companyFK := &core.ForeignKey{
		OwningColumns:        []core.ColumnID{2},
		OwningColumnNames:     []string{"company_id"},
		ReferencedTable:      "companies",
		ReferencedColumns:    []string{"id"},
		ReferencedTableID:    1,
		ReferencedTableKnown: true,
	}
	return &core.Table{
		Name: "users",
		Columns: []*core.Column{
			{Name: "id", Type: core.TypeInt, Ordinal: 0, IsPrimaryKey: true},
			{Name: "name", Type: core.TypeText, Ordinal: 1},
			{Name: "company_id", Type: core.TypeInt, Ordinal: 2, IsNullable: true},
		},
		PrimaryKey:  []core.ColumnID{0},
		ForeignKeys: []*core.ForeignKey{companyFK},
	}
}

func TestParseInsertExtractsPKAndFK(t *testing.T) {
	table := usersTableWithFK()
	raw := []byte("INSERT INTO users VALUES (1, 'Alice', 5), (2, 'Bob', NULL);")

	rows, err := ParseInsert(raw, table, core.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, core.PKTuple{core.IntValue(1)}, rows[0].PK)
	require.Len(t, rows[0].FKs, 1)
	require.Equal(t, core.PKTuple{core.IntValue(5)}, rows[0].FKs[0].Tuple)

	require.Equal(t, core.PKTuple{core.IntValue(2)}, rows[1].PK)
	require.Empty(t, rows[1].FKs, "FK with a NULL component must not be extracted")
}

func TestParseInsertExplicitColumnList(t *testing.T) {
	table := usersTableWithFK()
	raw := []byte("INSERT INTO users (name, id) VALUES ('Zed', 9);")

	rows, err := ParseInsert(raw, table, core.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, core.TextValue("Zed"), rows[0].Values[1])
	require.Equal(t, core.IntValue(9), rows[0].Values[0])
	require.Equal(t, core.PKTuple{core.IntValue(9)}, rows[0].PK)
}

func TestParseInsertMySQLBackslashEscape(t *testing.T) {
	table := usersTableWithFK()
	raw := []byte(`INSERT INTO users VALUES (1, 'O\'Brien', NULL);`)

	rows, err := ParseInsert(raw, table, core.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, core.TextValue(`O'Brien`), rows[0].Values[1])
}

func TestParseInsertMissingValuesKeyword(t *testing.T) {
	_, err := ParseInsert([]byte("INSERT INTO users (id) SET id=1;"), nil, core.MySQL)
	require.Error(t, err)
}

func TestParseCopyDataExtractsPKAndSkipsNullFK(t *testing.T) {
	table := usersTableWithFK()
	data := []byte("1\tAlice\t5\n2\tBob\t5\n3\tCarol\t\\N\n\\.\n")

	rows := ParseCopyData(data, table, []string{"id", "name", "company_id"})
	require.Len(t, rows, 3)

	require.Equal(t, core.PKTuple{core.IntValue(1)}, rows[0].PK)
	require.Len(t, rows[0].FKs, 1)
	require.Equal(t, core.PKTuple{core.IntValue(3)}, rows[2].PK)
	require.Empty(t, rows[2].FKs)
}

func TestParseCopyHeaderColumns(t *testing.T) {
	cols := ParseCopyHeaderColumns(`COPY public.users (id, name, email) FROM stdin;`)
	require.Equal(t, []string{"id", "name", "email"}, cols)
}

func TestParseCopyDataDecodesEscapes(t *testing.T) {
	table := usersTableWithFK()
	data := []byte("1\thello\\tworld\t\\N\n\\.\n")

	rows := ParseCopyData(data, table, []string{"id", "name", "company_id"})
	require.Len(t, rows, 1)
	require.Equal(t, core.TextValue("hello\tworld"), rows[0].Values[1])
}
