// Package config loads the optional TOML configuration file that
// layers onto command flags (spec §6's configuration surface). Flags
// always override config file values; config file values override the
// defaults below.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface shared by the sampler,
// sharder, differ, and validator commands. Every field has a zero value
// that means "use the default", so a command can load a (possibly
// absent) config file and then apply flag overrides on top without
// needing to distinguish "explicitly set to zero" from "unset".
type Config struct {
	Dialect string `toml:"dialect"`

	IncludeTables []string `toml:"include_tables"`
	ExcludeTables []string `toml:"exclude_tables"`
	IgnoreColumns []string `toml:"ignore_columns"` // "table.column" globs

	Percent int `toml:"percent"` // 1..100, mutually exclusive with Rows
	Rows    int `toml:"rows"`    // reservoir size, mutually exclusive with Percent

	Seed *uint64 `toml:"seed"` // nil means "draw from entropy and report it"

	PerTableCap uint64 `toml:"per_table_cap"`
	GlobalCap   uint64 `toml:"global_cap"`
	MaxSelectedRows int64 `toml:"max_selected_rows"`

	IncludeGlobal string `toml:"include_global"` // none | lookups | all
	StrictFK      bool   `toml:"strict_fk"`

	PKOverrides map[string][]string `toml:"pk_overrides"` // differ: table -> ordered column names
	AllowNoPK   bool                `toml:"allow_no_pk"`

	Classification map[string]ClassificationOverride `toml:"classification"`

	Tenant Tenant `toml:"tenant"`

	RootTables []string `toml:"root_tables"` // sampler: explicit root-table list

	SystemPatterns   []string `toml:"system_patterns"`
	LookupPatterns   []string `toml:"lookup_patterns"`
	JunctionPatterns []string `toml:"junction_patterns"`
}

// ClassificationOverride pins a table's role and behaviour, bypassing
// the automatic classification rules (spec §6).
type ClassificationOverride struct {
	Role         string `toml:"role"` // root | lookup | system | junction | normal
	Skip         bool   `toml:"skip"`
	SelfFKColumn string `toml:"self_fk"`
}

// Tenant configures the sharder's tenant scoping (spec §6/§4.9).
type Tenant struct {
	Column     string   `toml:"tenant_column"`
	RootTables []string `toml:"root_tables"`
}

// TenantColumnCandidates is the ordered auto-detect list consulted when
// Tenant.Column is empty (spec §6).
var TenantColumnCandidates = []string{
	"company_id", "tenant_id", "organization_id", "org_id",
	"account_id", "team_id", "workspace_id",
}

// Defaults returns a Config populated with every documented default
// (spec §6): include_global=lookups, 5M/10M membership caps.
func Defaults() Config {
	return Config{
		IncludeGlobal: "lookups",
		PerTableCap:   5_000_000,
		GlobalCap:     10_000_000,
	}
}

// Load reads a TOML config file and merges it onto Defaults(). A path
// that doesn't exist is not an error — callers may pass an optional
// "--config" flag.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveTenantColumn returns the configured tenant column, or the
// first auto-detect candidate present in columnNames (case-sensitive
// match against already-lowercased names is the caller's job).
func (c Config) ResolveTenantColumn(columnNames map[string]bool) (string, bool) {
	if c.Tenant.Column != "" {
		return c.Tenant.Column, true
	}
	for _, candidate := range TenantColumnCandidates {
		if columnNames[candidate] {
			return candidate, true
		}
	}
	return "", false
}
