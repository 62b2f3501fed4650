package selection

import (
	"strconv"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
)

// StrategyKind is one of the six per-table selection strategies (spec
// §4.9).
type StrategyKind int

const (
	StrategyIncludeAll StrategyKind = iota
	StrategyPercent
	StrategyReservoir
	StrategyMatchesTenant
	StrategyMatchesSelectedParent
	StrategySkip
)

// Strategy is the resolved, ready-to-execute selection rule for one
// table. Only the fields relevant to Kind are populated.
type Strategy struct {
	Kind StrategyKind

	Percent       float64 // StrategyPercent: 0..100
	ReservoirSize int     // StrategyReservoir

	TenantColumn core.ColumnID // StrategyMatchesTenant

	// ORSemantics selects "any FK matches" (junctions) over the default
	// "all FKs must match" (ordinary tenant dependents).
	ORSemantics bool
}

// strategyFor assigns a table's strategy from its resolved
// classification, following the fixed mapping of spec §4.9.
func strategyFor(t *core.Table, cls Classification, cfg config.Config, tenantColumn string) Strategy {
	switch cls {
	case ClassSystem:
		return Strategy{Kind: StrategySkip}

	case ClassLookup:
		if cfg.IncludeLookupTables() {
			return Strategy{Kind: StrategyIncludeAll}
		}
		return Strategy{Kind: StrategySkip}

	case ClassJunction:
		return Strategy{Kind: StrategyMatchesSelectedParent, ORSemantics: true}

	case ClassTenantRoot:
		col, ok := t.FindColumn(tenantColumn)
		if !ok {
			return Strategy{Kind: StrategySkip}
		}
		return Strategy{Kind: StrategyMatchesTenant, TenantColumn: col.Ordinal}

	case ClassTenantDependent:
		return Strategy{Kind: StrategyMatchesSelectedParent, ORSemantics: false}

	default: // ClassRoot, ClassNormal
		if cfg.Rows > 0 {
			return Strategy{Kind: StrategyReservoir, ReservoirSize: cfg.Rows}
		}
		return Strategy{Kind: StrategyPercent, Percent: float64(cfg.Percent)}
	}
}

// parseConfigValue reinterprets a raw configured string (e.g.
// --tenant-value) against col's declared type, applying the same
// text-to-integer re-interpretation rule row extraction uses (spec
// §4.7), so a numeric tenant value compares equal regardless of how
// either side happened to be spelled.
func parseConfigValue(raw string, col *core.Column) core.PKValue {
	if col != nil {
		switch col.Type {
		case core.TypeInt:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return core.IntValue(n)
			}
		case core.TypeBigInt:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return core.BigIntValue(n)
			}
		}
	}
	return core.TextValue(raw)
}
