// Package selection implements the selection engine (C9): table
// classification, per-table selection strategies, and FK-aware
// streaming row selection shared by the sampler and sharder (spec
// §4.9).
package selection

import (
	"strings"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
	"dumpkit/internal/graph"
)

// Mode distinguishes the sampler (percentage/reservoir row selection)
// from the sharder (tenant-scoped extraction); they share every other
// rule of the engine.
type Mode int

const (
	ModeSample Mode = iota
	ModeShard
)

// Classification is a table's resolved role, computed once per engine
// run before any row is read (spec §4.9).
type Classification int

const (
	ClassNormal Classification = iota
	ClassSystem
	ClassLookup
	ClassJunction
	ClassTenantRoot
	ClassTenantDependent
	ClassRoot
)

func (c Classification) String() string {
	switch c {
	case ClassSystem:
		return "system"
	case ClassLookup:
		return "lookup"
	case ClassJunction:
		return "junction"
	case ClassTenantRoot:
		return "tenant_root"
	case ClassTenantDependent:
		return "tenant_dependent"
	case ClassRoot:
		return "root"
	default:
		return "normal"
	}
}

// defaultJunctionSuffixes/infix are the naming-pattern fallback when no
// explicit junction_patterns are configured (spec §4.9).
var defaultJunctionInfix = "_has_"
var defaultJunctionSuffixes = []string{"_pivot", "_link", "_map"}

func classifyTable(t *core.Table, g *graph.Graph, cfg config.Config, mode Mode, tenantRoots map[core.TableID]bool) Classification {
	if ov, ok := cfg.OverrideFor(t.Name); ok && ov.Role != "" {
		switch strings.ToLower(ov.Role) {
		case "system":
			return ClassSystem
		case "lookup":
			return ClassLookup
		case "junction":
			return ClassJunction
		case "root":
			if mode == ModeShard {
				return ClassTenantRoot
			}
			return ClassRoot
		case "normal":
			return ClassNormal
		}
	}

	if config.MatchAny(cfg.SystemPatterns, t.Name) {
		return ClassSystem
	}
	if config.MatchAny(cfg.LookupPatterns, t.Name) {
		return ClassLookup
	}
	if isJunction(t, cfg) {
		return ClassJunction
	}

	if mode == ModeShard {
		if tenantRoots[t.ID] {
			return ClassTenantRoot
		}
		if isTenantDependent(t, g, tenantRoots) {
			return ClassTenantDependent
		}
		return ClassNormal
	}

	if len(g.Parents(t.ID)) == 0 {
		return ClassRoot
	}
	if config.MatchAny(cfg.RootTables, t.Name) {
		return ClassRoot
	}
	return ClassNormal
}

// isJunction reports whether t looks like a many-to-many join table
// (spec §4.9): either it matches a configured/default naming pattern,
// or it has at least two resolved outgoing FKs whose columns cover all
// but at most two of the table's columns.
func isJunction(t *core.Table, cfg config.Config) bool {
	name := strings.ToLower(t.Name)
	if strings.Contains(name, defaultJunctionInfix) {
		return true
	}
	for _, suffix := range defaultJunctionSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	if config.MatchAny(cfg.JunctionPatterns, t.Name) {
		return true
	}

	resolvedFKs := 0
	fkColumns := make(map[core.ColumnID]bool)
	for _, fk := range t.ForeignKeys {
		if !fk.ReferencedTableKnown {
			continue
		}
		resolvedFKs++
		for _, id := range fk.OwningColumns {
			fkColumns[id] = true
		}
	}
	if resolvedFKs < 2 {
		return false
	}
	return len(fkColumns) >= len(t.Columns)-2
}

// isTenantDependent reports whether t is reachable from any tenant-root
// table by following child (dependent) edges in the FK graph.
func isTenantDependent(t *core.Table, g *graph.Graph, tenantRoots map[core.TableID]bool) bool {
	for root := range tenantRoots {
		for _, d := range g.Descendants(root) {
			if d == t.ID {
				return true
			}
		}
	}
	return false
}
