package config

import (
	"path"
	"strings"
)

// matchGlob reports whether name matches pattern, case-insensitively,
// using shell-style wildcards (spec §6: "glob patterns matched
// case-insensitively"). No glob library appears anywhere in the
// retrieval pack, so this wraps the standard library's path.Match.
func matchGlob(pattern, name string) bool {
	ok, err := path.Match(strings.ToLower(pattern), strings.ToLower(name))
	return err == nil && ok
}

// MatchAny reports whether name matches any of patterns.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchGlob(p, name) {
			return true
		}
	}
	return false
}

// TableIncluded applies the include/exclude glob lists (spec §6): an
// empty include list means "everything is a candidate"; exclude always
// wins over include.
func (c Config) TableIncluded(table string) bool {
	if MatchAny(c.ExcludeTables, table) {
		return false
	}
	if len(c.IncludeTables) == 0 {
		return true
	}
	return MatchAny(c.IncludeTables, table)
}

// ColumnIgnored reports whether "table.column" matches any pattern in
// IgnoreColumns (differ/redact ignore-columns list, spec §6/§4.11).
func (c Config) ColumnIgnored(table, column string) bool {
	qualified := table + "." + column
	return MatchAny(c.IgnoreColumns, qualified)
}
