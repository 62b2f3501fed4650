package ddl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/core"
)

func mustFind(t *testing.T, s *core.Schema, name string) *core.Table {
	t.Helper()
	tbl := s.TableByName(name)
	require.NotNil(t, tbl, "table %q not found", name)
	return tbl
}

func TestBuilderInlinePrimaryKeyAndForeignKey(t *testing.T) {
	b := NewBuilder(core.MySQL)
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "customers",
		Raw:   []byte("CREATE TABLE customers (\n  id INT PRIMARY KEY,\n  name TEXT NOT NULL\n)"),
	})
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "orders",
		Raw:   []byte("CREATE TABLE orders (\n  id INT PRIMARY KEY,\n  customer_id INT NOT NULL,\n  FOREIGN KEY (customer_id) REFERENCES customers(id)\n)"),
	})
	schema := b.Finalize()
	require.Empty(t, b.Findings())

	orders := mustFind(t, schema, "orders")
	require.Len(t, orders.Columns, 2)
	require.Equal(t, []core.ColumnID{0}, orders.PrimaryKey)
	require.True(t, orders.Columns[0].IsPrimaryKey)
	require.False(t, orders.Columns[1].IsNullable)

	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	require.Equal(t, []string{"customer_id"}, fk.OwningColumnNames)
	require.Equal(t, []core.ColumnID{1}, fk.OwningColumns)
	require.Equal(t, "customers", fk.ReferencedTable)
	require.Equal(t, []string{"id"}, fk.ReferencedColumns)
	require.True(t, fk.ReferencedTableKnown)
}

func TestBuilderTableLevelCompositePrimaryKey(t *testing.T) {
	b := NewBuilder(core.MySQL)
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "order_items",
		Raw:   []byte("CREATE TABLE order_items (\n  order_id INT,\n  product_id INT,\n  PRIMARY KEY (order_id, product_id)\n)"),
	})
	schema := b.Finalize()

	tbl := mustFind(t, schema, "order_items")
	require.ElementsMatch(t, []core.ColumnID{0, 1}, tbl.PrimaryKey)
	require.True(t, tbl.Columns[0].IsPrimaryKey)
	require.True(t, tbl.Columns[1].IsPrimaryKey)
}

func TestBuilderCreateIndexWithSortOrder(t *testing.T) {
	b := NewBuilder(core.Postgres)
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "users",
		Raw:   []byte("CREATE TABLE users (id INT, email TEXT, created_at TIMESTAMP)"),
	})
	b.Feed(core.Statement{
		Kind:  core.CreateIndex,
		Table: "users",
		Raw:   []byte("CREATE INDEX idx_email ON users (email, created_at DESC);"),
	})
	schema := b.Finalize()

	tbl := mustFind(t, schema, "users")
	require.Len(t, tbl.Indexes, 1)
	idx := tbl.Indexes[0]
	require.Equal(t, "idx_email", idx.Name)
	require.False(t, idx.IsUnique)
	require.Equal(t, []core.IndexColumn{
		{Name: "email", Order: core.SortAsc},
		{Name: "created_at", Order: core.SortDesc},
	}, idx.Columns)
}

func TestBuilderAlterTableAddForeignKey(t *testing.T) {
	b := NewBuilder(core.MySQL)
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "customers",
		Raw:   []byte("CREATE TABLE customers (id INT PRIMARY KEY)"),
	})
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "orders",
		Raw:   []byte("CREATE TABLE orders (id INT PRIMARY KEY, customer_id INT)"),
	})
	b.Feed(core.Statement{
		Kind:  core.AlterTable,
		Table: "orders",
		Raw:   []byte("ALTER TABLE orders ADD CONSTRAINT fk_customer FOREIGN KEY (customer_id) REFERENCES customers (id)"),
	})
	schema := b.Finalize()

	orders := mustFind(t, schema, "orders")
	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	require.Equal(t, "fk_customer", fk.Name)
	require.Equal(t, "customers", fk.ReferencedTable)
	require.True(t, fk.ReferencedTableKnown)
}

func TestBuilderUnresolvedForeignKeyStaysUnknown(t *testing.T) {
	b := NewBuilder(core.MySQL)
	b.Feed(core.Statement{
		Kind:  core.CreateTable,
		Table: "orders",
		Raw:   []byte("CREATE TABLE orders (id INT PRIMARY KEY, customer_id INT, FOREIGN KEY (customer_id) REFERENCES customers(id))"),
	})
	schema := b.Finalize()

	orders := mustFind(t, schema, "orders")
	require.Len(t, orders.ForeignKeys, 1)
	require.False(t, orders.ForeignKeys[0].ReferencedTableKnown)
}

func TestBuilderDuplicateTableNameIgnored(t *testing.T) {
	b := NewBuilder(core.MySQL)
	b.Feed(core.Statement{Kind: core.CreateTable, Table: "Users", Raw: []byte("CREATE TABLE Users (id INT)")})
	b.Feed(core.Statement{Kind: core.CreateTable, Table: "users", Raw: []byte("CREATE TABLE users (id INT, extra TEXT)")})
	schema := b.Finalize()

	require.Len(t, schema.Tables, 1)
	require.NotEmpty(t, b.Findings())
}
