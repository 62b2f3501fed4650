// Package graph builds the foreign-key dependency graph (C6) from a
// resolved schema and exposes topological ordering, ancestor/descendant
// queries, and root/leaf classification used by the selection engine
// and the schema command.
package graph

import (
	"sort"

	"dumpkit/internal/core"
)

// Graph is the FK dependency graph over a schema's tables. An edge
// t -> p means t has a foreign key referencing p (t depends on p being
// inserted first). Self-references are tracked separately via
// HasSelfReference and never appear as graph edges, since a table
// trivially cannot wait on itself.
type Graph struct {
	schema   *core.Schema
	parents  map[core.TableID]map[core.TableID]bool
	children map[core.TableID]map[core.TableID]bool
}

// Build constructs the graph from every resolved foreign key in schema.
// Unresolved FKs (ReferencedTableKnown false) contribute no edge.
func Build(schema *core.Schema) *Graph {
	g := &Graph{
		schema:   schema,
		parents:  make(map[core.TableID]map[core.TableID]bool),
		children: make(map[core.TableID]map[core.TableID]bool),
	}
	for _, t := range schema.Tables {
		g.parents[t.ID] = make(map[core.TableID]bool)
		g.children[t.ID] = make(map[core.TableID]bool)
	}
	for _, t := range schema.Tables {
		for _, fk := range t.ForeignKeys {
			if !fk.ReferencedTableKnown || fk.ReferencedTableID == t.ID {
				continue
			}
			g.parents[t.ID][fk.ReferencedTableID] = true
			g.children[fk.ReferencedTableID][t.ID] = true
		}
	}
	return g
}

// Parents returns the tables id directly references, sorted by ID.
func (g *Graph) Parents(id core.TableID) []core.TableID {
	return sortedKeys(g.parents[id])
}

// Children returns the tables that directly reference id, sorted by ID.
func (g *Graph) Children(id core.TableID) []core.TableID {
	return sortedKeys(g.children[id])
}

// HasSelfReference reports whether id has a foreign key referencing
// itself.
func (g *Graph) HasSelfReference(id core.TableID) bool {
	t := g.schema.Table(id)
	if t == nil {
		return false
	}
	for _, fk := range t.ForeignKeys {
		if fk.ReferencedTableKnown && fk.ReferencedTableID == id {
			return true
		}
	}
	return false
}

// RootTables returns every table with no resolved parent, i.e. nothing
// it depends on (candidates for "insert first").
func (g *Graph) RootTables() []core.TableID {
	var roots []core.TableID
	for _, t := range g.schema.Tables {
		if len(g.parents[t.ID]) == 0 {
			roots = append(roots, t.ID)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// LeafTables returns every table nothing else references.
func (g *Graph) LeafTables() []core.TableID {
	var leaves []core.TableID
	for _, t := range g.schema.Tables {
		if len(g.children[t.ID]) == 0 {
			leaves = append(leaves, t.ID)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })
	return leaves
}

// Ancestors returns every table transitively reachable by following
// parent edges from id (id itself excluded), sorted by ID.
func (g *Graph) Ancestors(id core.TableID) []core.TableID {
	return g.walk(id, g.parents)
}

// Descendants returns every table transitively reachable by following
// child edges from id (id itself excluded), sorted by ID.
func (g *Graph) Descendants(id core.TableID) []core.TableID {
	return g.walk(id, g.children)
}

func (g *Graph) walk(start core.TableID, edges map[core.TableID]map[core.TableID]bool) []core.TableID {
	seen := map[core.TableID]bool{start: true}
	queue := []core.TableID{start}
	var result []core.TableID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range edges[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			result = append(result, next)
			queue = append(queue, next)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// TopoSort returns a dependency order where every table appears after
// all the tables it (non-cyclically) references, using Kahn's
// algorithm. Tables participating in a cycle are excluded from order
// and returned in cyclic instead, sorted by ID for determinism (spec
// §4.6: cycles are isolated rather than failing the whole sort).
func (g *Graph) TopoSort() (order []core.TableID, cyclic []core.TableID) {
	indegree := make(map[core.TableID]int, len(g.schema.Tables))
	for _, t := range g.schema.Tables {
		indegree[t.ID] = len(g.parents[t.ID])
	}

	var queue []core.TableID
	for _, t := range g.schema.Tables {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	for len(queue) > 0 {
		sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for child := range g.children[cur] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	for _, t := range g.schema.Tables {
		if indegree[t.ID] > 0 {
			cyclic = append(cyclic, t.ID)
		}
	}
	sort.Slice(cyclic, func(i, j int) bool { return cyclic[i] < cyclic[j] })
	return order, cyclic
}

func sortedKeys(m map[core.TableID]bool) []core.TableID {
	if len(m) == 0 {
		return nil
	}
	ids := make([]core.TableID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
