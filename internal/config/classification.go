package config

import "strings"

// OverrideFor looks up a classification override by table name,
// case-insensitively.
func (c Config) OverrideFor(table string) (ClassificationOverride, bool) {
	for name, o := range c.Classification {
		if strings.EqualFold(name, table) {
			return o, true
		}
	}
	return ClassificationOverride{}, false
}

// IncludeLookupTables reports whether the include-global policy keeps
// lookup tables' rows (spec §6: "none | lookups | all", default
// "lookups").
func (c Config) IncludeLookupTables() bool {
	switch strings.ToLower(c.IncludeGlobal) {
	case "", "lookups", "all":
		return true
	default:
		return false
	}
}

// IncludeAllGlobalTables reports whether include_global=all. Tables
// classified System are skipped whatever this reports.
func (c Config) IncludeAllGlobalTables() bool {
	return strings.ToLower(c.IncludeGlobal) == "all"
}
