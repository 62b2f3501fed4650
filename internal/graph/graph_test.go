package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/core"
)

func buildTestSchema(t *testing.T) *core.Schema {
	t.Helper()
	s := core.NewSchema()

	customers := &core.Table{Name: "customers"}
	require.True(t, s.AddTable(customers))

	products := &core.Table{Name: "products"}
	require.True(t, s.AddTable(products))

	orders := &core.Table{Name: "orders", ForeignKeys: []*core.ForeignKey{
		{ReferencedTable: "customers", ReferencedTableID: customers.ID, ReferencedTableKnown: true},
	}}
	require.True(t, s.AddTable(orders))

	orderItems := &core.Table{Name: "order_items", ForeignKeys: []*core.ForeignKey{
		{ReferencedTable: "orders", ReferencedTableID: orders.ID, ReferencedTableKnown: true},
		{ReferencedTable: "products", ReferencedTableID: products.ID, ReferencedTableKnown: true},
	}}
	require.True(t, s.AddTable(orderItems))

	employees := &core.Table{Name: "employees"}
	require.True(t, s.AddTable(employees))
	employees.ForeignKeys = []*core.ForeignKey{
		{ReferencedTable: "employees", ReferencedTableID: employees.ID, ReferencedTableKnown: true},
	}

	return s
}

func TestGraphParentsAndChildren(t *testing.T) {
	s := buildTestSchema(t)
	g := Build(s)

	orders := s.TableByName("orders")
	customers := s.TableByName("customers")
	orderItems := s.TableByName("order_items")

	products := s.TableByName("products")

	require.Equal(t, []core.TableID{customers.ID}, g.Parents(orders.ID))
	require.Equal(t, []core.TableID{orders.ID}, g.Children(customers.ID))
	require.ElementsMatch(t, []core.TableID{orders.ID, products.ID}, g.Parents(orderItems.ID))
}

func TestGraphRootAndLeafTables(t *testing.T) {
	s := buildTestSchema(t)
	g := Build(s)

	customers := s.TableByName("customers")
	products := s.TableByName("products")
	orderItems := s.TableByName("order_items")
	employees := s.TableByName("employees")

	roots := g.RootTables()
	require.Contains(t, roots, customers.ID)
	require.Contains(t, roots, products.ID)
	require.Contains(t, roots, employees.ID) // self-reference is not a parent edge

	leaves := g.LeafTables()
	require.Contains(t, leaves, orderItems.ID)
	require.Contains(t, leaves, employees.ID)
}

func TestGraphSelfReference(t *testing.T) {
	s := buildTestSchema(t)
	g := Build(s)
	employees := s.TableByName("employees")
	orders := s.TableByName("orders")

	require.True(t, g.HasSelfReference(employees.ID))
	require.False(t, g.HasSelfReference(orders.ID))
}

func TestGraphTopoSortOrdersParentsFirst(t *testing.T) {
	s := buildTestSchema(t)
	g := Build(s)
	order, cyclic := g.TopoSort()

	require.Empty(t, cyclic)
	require.Len(t, order, len(s.Tables))

	pos := make(map[core.TableID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	customers := s.TableByName("customers")
	orders := s.TableByName("orders")
	orderItems := s.TableByName("order_items")
	products := s.TableByName("products")

	require.Less(t, pos[customers.ID], pos[orders.ID])
	require.Less(t, pos[orders.ID], pos[orderItems.ID])
	require.Less(t, pos[products.ID], pos[orderItems.ID])
}

func TestGraphTopoSortIsolatesCycle(t *testing.T) {
	s := core.NewSchema()
	a := &core.Table{Name: "a"}
	require.True(t, s.AddTable(a))
	b := &core.Table{Name: "b"}
	require.True(t, s.AddTable(b))
	a.ForeignKeys = []*core.ForeignKey{{ReferencedTable: "b", ReferencedTableID: b.ID, ReferencedTableKnown: true}}
	b.ForeignKeys = []*core.ForeignKey{{ReferencedTable: "a", ReferencedTableID: a.ID, ReferencedTableKnown: true}}

	g := Build(s)
	order, cyclic := g.TopoSort()

	require.Empty(t, order)
	require.ElementsMatch(t, []core.TableID{a.ID, b.ID}, cyclic)
}

func TestGraphAncestorsAndDescendants(t *testing.T) {
	s := buildTestSchema(t)
	g := Build(s)

	customers := s.TableByName("customers")
	orders := s.TableByName("orders")
	orderItems := s.TableByName("order_items")

	require.ElementsMatch(t, []core.TableID{customers.ID}, g.Ancestors(orders.ID))
	ancestors := g.Ancestors(orderItems.ID)
	require.Contains(t, ancestors, orders.ID)
	require.Contains(t, ancestors, customers.ID)

	descendants := g.Descendants(customers.ID)
	require.Contains(t, descendants, orders.ID)
	require.Contains(t, descendants, orderItems.ID)
}
