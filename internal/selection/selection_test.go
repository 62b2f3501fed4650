package selection

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
	"dumpkit/internal/graph"
	"dumpkit/internal/tablesplit"
)

func col(name string, ordinal core.ColumnID, typ core.ColumnType) *core.Column {
	return &core.Column{Name: name, Ordinal: ordinal, Type: typ}
}

func TestClassifyTableSystemAndLookupPatterns(t *testing.T) {
	s := core.NewSchema()
	migrations := &core.Table{Name: "schema_migrations"}
	require.True(t, s.AddTable(migrations))
	statuses := &core.Table{Name: "order_statuses"}
	require.True(t, s.AddTable(statuses))
	g := graph.Build(s)

	cfg := config.Config{
		SystemPatterns: []string{"schema_*"},
		LookupPatterns: []string{"*_statuses"},
	}
	require.Equal(t, ClassSystem, classifyTable(migrations, g, cfg, ModeSample, nil))
	require.Equal(t, ClassLookup, classifyTable(statuses, g, cfg, ModeSample, nil))
}

func TestClassifyTableOverrideWins(t *testing.T) {
	s := core.NewSchema()
	widgets := &core.Table{Name: "widgets"}
	require.True(t, s.AddTable(widgets))
	g := graph.Build(s)

	cfg := config.Config{Classification: map[string]config.ClassificationOverride{
		"widgets": {Role: "system"},
	}}
	require.Equal(t, ClassSystem, classifyTable(widgets, g, cfg, ModeSample, nil))
}

func TestClassifyTableJunctionByNamingPattern(t *testing.T) {
	s := core.NewSchema()
	pivot := &core.Table{Name: "users_has_roles"}
	require.True(t, s.AddTable(pivot))
	g := graph.Build(s)

	require.Equal(t, ClassJunction, classifyTable(pivot, g, config.Config{}, ModeSample, nil))
}

func TestClassifyTableJunctionByFKShape(t *testing.T) {
	s := core.NewSchema()
	users := &core.Table{Name: "users"}
	require.True(t, s.AddTable(users))
	roles := &core.Table{Name: "roles"}
	require.True(t, s.AddTable(roles))
	assoc := &core.Table{
		Name:    "user_role_assignments",
		Columns: []*core.Column{col("user_id", 0, core.TypeInt), col("role_id", 1, core.TypeInt)},
		ForeignKeys: []*core.ForeignKey{
			{OwningColumns: []core.ColumnID{0}, ReferencedTable: "users", ReferencedTableID: users.ID, ReferencedTableKnown: true},
			{OwningColumns: []core.ColumnID{1}, ReferencedTable: "roles", ReferencedTableID: roles.ID, ReferencedTableKnown: true},
		},
	}
	require.True(t, s.AddTable(assoc))
	g := graph.Build(s)

	require.Equal(t, ClassJunction, classifyTable(assoc, g, config.Config{}, ModeSample, nil))
}

func TestClassifyTableRootVsNormal(t *testing.T) {
	s := core.NewSchema()
	customers := &core.Table{Name: "customers"}
	require.True(t, s.AddTable(customers))
	orders := &core.Table{Name: "orders", ForeignKeys: []*core.ForeignKey{
		{ReferencedTable: "customers", ReferencedTableID: customers.ID, ReferencedTableKnown: true},
	}}
	require.True(t, s.AddTable(orders))
	g := graph.Build(s)

	require.Equal(t, ClassRoot, classifyTable(customers, g, config.Config{}, ModeSample, nil))
	require.Equal(t, ClassNormal, classifyTable(orders, g, config.Config{}, ModeSample, nil))
}

func TestStrategyForFixedMapping(t *testing.T) {
	lookup := &core.Table{Name: "statuses"}
	strat := strategyFor(lookup, ClassLookup, config.Config{IncludeGlobal: "lookups"}, "")
	require.Equal(t, StrategyIncludeAll, strat.Kind)

	strat = strategyFor(lookup, ClassLookup, config.Config{IncludeGlobal: "none"}, "")
	require.Equal(t, StrategySkip, strat.Kind)

	junction := &core.Table{Name: "j"}
	strat = strategyFor(junction, ClassJunction, config.Config{}, "")
	require.Equal(t, StrategyMatchesSelectedParent, strat.Kind)
	require.True(t, strat.ORSemantics)

	dependent := &core.Table{Name: "d"}
	strat = strategyFor(dependent, ClassTenantDependent, config.Config{}, "")
	require.Equal(t, StrategyMatchesSelectedParent, strat.Kind)
	require.False(t, strat.ORSemantics)

	root := &core.Table{Name: "r"}
	strat = strategyFor(root, ClassRoot, config.Config{Rows: 5}, "")
	require.Equal(t, StrategyReservoir, strat.Kind)
	require.Equal(t, 5, strat.ReservoirSize)

	strat = strategyFor(root, ClassRoot, config.Config{Percent: 20}, "")
	require.Equal(t, StrategyPercent, strat.Kind)
	require.Equal(t, float64(20), strat.Percent)

	tenantRoot := &core.Table{Name: "companies", Columns: []*core.Column{col("company_id", 0, core.TypeInt)}}
	strat = strategyFor(tenantRoot, ClassTenantRoot, config.Config{}, "company_id")
	require.Equal(t, StrategyMatchesTenant, strat.Kind)
	require.Equal(t, core.ColumnID(0), strat.TenantColumn)
}

// buildShardSchema builds companies(1) <- users(N) <- orders(N), where
// companies' PK column doubles as the tenant column every descendant
// carries, mirroring a common tenant-root shape.
func buildShardSchema(t *testing.T) (*core.Schema, *graph.Graph) {
	t.Helper()
	s := core.NewSchema()

	companies := &core.Table{
		Name:       "companies",
		Columns:    []*core.Column{col("company_id", 0, core.TypeInt)},
		PrimaryKey: []core.ColumnID{0},
	}
	require.True(t, s.AddTable(companies))

	users := &core.Table{
		Name:       "users",
		Columns:    []*core.Column{col("id", 0, core.TypeInt), col("company_id", 1, core.TypeInt)},
		PrimaryKey: []core.ColumnID{0},
		ForeignKeys: []*core.ForeignKey{{
			OwningColumns: []core.ColumnID{1}, OwningColumnNames: []string{"company_id"},
			ReferencedTable: "companies", ReferencedColumns: []string{"company_id"},
			ReferencedTableID: companies.ID, ReferencedTableKnown: true,
		}},
	}
	require.True(t, s.AddTable(users))

	orders := &core.Table{
		Name:       "orders",
		Columns:    []*core.Column{col("id", 0, core.TypeInt), col("user_id", 1, core.TypeInt)},
		PrimaryKey: []core.ColumnID{0},
		ForeignKeys: []*core.ForeignKey{{
			OwningColumns: []core.ColumnID{1}, OwningColumnNames: []string{"user_id"},
			ReferencedTable: "users", ReferencedColumns: []string{"id"},
			ReferencedTableID: users.ID, ReferencedTableKnown: true,
		}},
	}
	require.True(t, s.AddTable(orders))

	return s, graph.Build(s)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEngineRunShardsSelectedTenantAndCascadesFK(t *testing.T) {
	schema, g := buildShardSchema(t)
	dir := t.TempDir()

	manifest := &tablesplit.Manifest{Dir: dir, Dialect: core.MySQL, TablePaths: map[string]string{
		"companies": writeFile(t, dir, "companies.sql", "INSERT INTO companies VALUES (42);\nINSERT INTO companies VALUES (99);\n"),
		"users":     writeFile(t, dir, "users.sql", "INSERT INTO users VALUES (1, 42);\nINSERT INTO users VALUES (2, 99);\n"),
		"orders":    writeFile(t, dir, "orders.sql", "INSERT INTO orders VALUES (100, 1);\nINSERT INTO orders VALUES (200, 2);\n"),
	}}

	cfg := config.Config{Tenant: config.Tenant{Column: "company_id", RootTables: []string{"companies"}}}
	eng, err := NewEngine(schema, g, manifest, core.MySQL, Options{Mode: ModeShard, Config: cfg, TenantValue: "42", Seed: 1})
	require.NoError(t, err)

	require.Equal(t, ClassTenantRoot, eng.classifications[schema.TableByName("companies").ID])
	require.Equal(t, ClassTenantDependent, eng.classifications[schema.TableByName("users").ID])
	require.Equal(t, ClassTenantDependent, eng.classifications[schema.TableByName("orders").ID])

	var out bytes.Buffer
	report, err := eng.Run(&out)
	require.NoError(t, err)
	require.False(t, report.Halted)

	byTable := make(map[string]TableReport, len(report.Tables))
	for _, tr := range report.Tables {
		byTable[tr.Table] = tr
	}
	require.Equal(t, 1, byTable["companies"].Selected)
	require.Equal(t, 1, byTable["users"].Selected)
	require.Equal(t, 1, byTable["users"].Orphans)
	require.Equal(t, 1, byTable["orders"].Selected)
	require.Equal(t, 1, byTable["orders"].Orphans)

	written := out.String()
	require.Contains(t, written, "INSERT INTO `companies` VALUES (42);")
	require.NotContains(t, written, "VALUES (99)")
	require.Contains(t, written, "INSERT INTO `users` VALUES (1, 42);")
	require.NotContains(t, written, "VALUES (2, 99)")
	require.Contains(t, written, "INSERT INTO `orders` VALUES (100, 1);")
	require.NotContains(t, written, "VALUES (200, 2)")
}

func TestEngineRunStrictFKHaltsOnFirstOrphan(t *testing.T) {
	schema, g := buildShardSchema(t)
	dir := t.TempDir()

	manifest := &tablesplit.Manifest{Dir: dir, Dialect: core.MySQL, TablePaths: map[string]string{
		"companies": writeFile(t, dir, "companies.sql", "INSERT INTO companies VALUES (42);\nINSERT INTO companies VALUES (99);\n"),
		"users":     writeFile(t, dir, "users.sql", "INSERT INTO users VALUES (1, 42);\nINSERT INTO users VALUES (2, 99);\n"),
		"orders":    writeFile(t, dir, "orders.sql", "INSERT INTO orders VALUES (100, 1);\n"),
	}}

	cfg := config.Config{StrictFK: true, Tenant: config.Tenant{Column: "company_id", RootTables: []string{"companies"}}}
	eng, err := NewEngine(schema, g, manifest, core.MySQL, Options{Mode: ModeShard, Config: cfg, TenantValue: "42"})
	require.NoError(t, err)

	var out bytes.Buffer
	report, err := eng.Run(&out)
	require.NoError(t, err)
	require.True(t, report.Halted)
	require.Contains(t, report.HaltReason, "users")

	// orders is never reached once the halt fires mid-"users".
	for _, tr := range report.Tables {
		require.NotEqual(t, "orders", tr.Table)
	}
}

func TestEngineRunReservoirSamplingIsDeterministicAndBounded(t *testing.T) {
	s := core.NewSchema()
	items := &core.Table{Name: "items", Columns: []*core.Column{col("id", 0, core.TypeInt)}, PrimaryKey: []core.ColumnID{0}}
	require.True(t, s.AddTable(items))
	g := graph.Build(s)

	var dump bytes.Buffer
	for i := 1; i <= 10; i++ {
		dump.WriteString("INSERT INTO items VALUES (")
		dump.WriteString(itoa(i))
		dump.WriteString(");\n")
	}

	run := func() []string {
		dir := t.TempDir()
		manifest := &tablesplit.Manifest{Dir: dir, Dialect: core.MySQL, TablePaths: map[string]string{
			"items": writeFile(t, dir, "items.sql", dump.String()),
		}}
		eng, err := NewEngine(s, g, manifest, core.MySQL, Options{Mode: ModeSample, Config: config.Config{Rows: 3}, Seed: 7})
		require.NoError(t, err)
		var out bytes.Buffer
		report, err := eng.Run(&out)
		require.NoError(t, err)
		require.False(t, report.Halted)
		require.Equal(t, 1, len(report.Tables))
		require.Equal(t, 3, report.Tables[0].Selected)
		require.Equal(t, 10, report.Tables[0].Considered)
		return splitLines(out.String())
	}

	first := run()
	second := run()
	require.Equal(t, first, second)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}
