package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "lookups", cfg.IncludeGlobal)
	require.Equal(t, uint64(5_000_000), cfg.PerTableCap)
	require.Equal(t, uint64(10_000_000), cfg.GlobalCap)
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadMergesFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
dialect = "postgres"
percent = 10
strict_fk = true
include_global = "all"

[tenant]
tenant_column = "company_id"
root_tables = ["companies"]

[classification.audit_log]
role = "system"
skip = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Dialect)
	require.Equal(t, 10, cfg.Percent)
	require.True(t, cfg.StrictFK)
	require.Equal(t, "company_id", cfg.Tenant.Column)
	require.Equal(t, []string{"companies"}, cfg.Tenant.RootTables)
	require.Equal(t, uint64(5_000_000), cfg.PerTableCap) // unset in file, default preserved

	override, ok := cfg.OverrideFor("Audit_Log")
	require.True(t, ok)
	require.Equal(t, "system", override.Role)
	require.True(t, override.Skip)
}

func TestTableIncludedExcludeWinsOverInclude(t *testing.T) {
	cfg := Config{IncludeTables: []string{"user*"}, ExcludeTables: []string{"*_audit"}}
	require.True(t, cfg.TableIncluded("users"))
	require.False(t, cfg.TableIncluded("user_audit"))
	require.False(t, cfg.TableIncluded("products"))
}

func TestTableIncludedEmptyIncludeListMeansEverything(t *testing.T) {
	cfg := Config{}
	require.True(t, cfg.TableIncluded("anything"))
}

func TestColumnIgnoredMatchesQualifiedGlob(t *testing.T) {
	cfg := Config{IgnoreColumns: []string{"users.password*", "*.created_at"}}
	require.True(t, cfg.ColumnIgnored("users", "password_hash"))
	require.True(t, cfg.ColumnIgnored("orders", "created_at"))
	require.False(t, cfg.ColumnIgnored("users", "email"))
}

func TestResolveTenantColumnAutoDetects(t *testing.T) {
	cfg := Config{}
	names := map[string]bool{"id": true, "organization_id": true}
	col, ok := cfg.ResolveTenantColumn(names)
	require.True(t, ok)
	require.Equal(t, "organization_id", col)
}

func TestResolveTenantColumnPrefersExplicit(t *testing.T) {
	cfg := Config{Tenant: Tenant{Column: "account_id"}}
	col, ok := cfg.ResolveTenantColumn(map[string]bool{"company_id": true})
	require.True(t, ok)
	require.Equal(t, "account_id", col)
}

func TestIncludeGlobalPolicy(t *testing.T) {
	require.True(t, Config{}.IncludeLookupTables())
	require.True(t, Config{IncludeGlobal: "all"}.IncludeLookupTables())
	require.False(t, Config{IncludeGlobal: "none"}.IncludeLookupTables())
	require.True(t, Config{IncludeGlobal: "all"}.IncludeAllGlobalTables())
	require.False(t, Config{IncludeGlobal: "lookups"}.IncludeAllGlobalTables())
}
