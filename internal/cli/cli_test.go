package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureDump = `CREATE TABLE ` + "`customers`" + ` (
  ` + "`id`" + ` int NOT NULL,
  ` + "`name`" + ` varchar(255) NOT NULL,
  PRIMARY KEY (` + "`id`" + `)
) ENGINE=InnoDB;
CREATE TABLE ` + "`orders`" + ` (
  ` + "`id`" + ` int NOT NULL,
  ` + "`customer_id`" + ` int NOT NULL,
  PRIMARY KEY (` + "`id`" + `),
  FOREIGN KEY (` + "`customer_id`" + `) REFERENCES ` + "`customers`" + ` (` + "`id`" + `)
) ENGINE=InnoDB;
INSERT INTO ` + "`customers`" + ` (` + "`id`" + `, ` + "`name`" + `) VALUES (1, 'Ada'), (2, 'Grace');
INSERT INTO ` + "`orders`" + ` (` + "`id`" + `, ` + "`customer_id`" + `) VALUES (10, 1), (11, 2);
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCmd()
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestDetectCommandReportsMySQL(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)

	_, stderr, err := execRoot(t, "detect", path)
	require.NoError(t, err)
	require.Contains(t, stderr, "dialect: mysql")
}

func TestSchemaCommandListsTablesAndColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)

	stdout, _, err := execRoot(t, "schema", "--dialect", "mysql", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "TABLE customers")
	require.Contains(t, stdout, "TABLE orders")
	require.Contains(t, stdout, "FOREIGN KEY -> customers")
}

func TestSchemaCommandOrderListsParentBeforeChild(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)

	stdout, _, err := execRoot(t, "schema", "--dialect", "mysql", "--order", path)
	require.NoError(t, err)
	customersIdx := indexOf(t, stdout, "customers")
	ordersIdx := indexOf(t, stdout, "orders")
	require.Less(t, customersIdx, ordersIdx)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("%q not found in %q", needle, haystack)
	return -1
}

func TestSplitCommandWritesPerTableFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)
	outDir := filepath.Join(dir, "split")

	_, stderr, err := execRoot(t, "split", "--dialect", "mysql", "--output", outDir, path)
	require.NoError(t, err)
	require.Contains(t, stderr, "tables split into")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestValidateCommandCleanDumpHasNoErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)
	reportPath := filepath.Join(dir, "report.json")

	_, _, err := execRoot(t, "validate", "--dialect", "mysql", "--report", reportPath, path)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"command": "validate"`)
}

func TestValidateCommandFlagsOrphanAsError(t *testing.T) {
	dir := t.TempDir()
	dump := fixtureDump + "INSERT INTO `orders` (`id`, `customer_id`) VALUES (12, 999);\n"
	path := writeFixture(t, dir, "dump.sql", dump)
	reportPath := filepath.Join(dir, "report.json")

	_, _, err := execRoot(t, "validate", "--dialect", "mysql", "--report", reportPath, path)
	require.Error(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "FK_MISSING_PARENT")
}

func TestSampleCommandWritesOutputAndReport(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)
	outPath := filepath.Join(dir, "sample.sql")
	reportPath := filepath.Join(dir, "report.json")

	_, _, err := execRoot(t, "sample", "--dialect", "mysql", "--percent", "100",
		"--seed", "1", "--output", outPath, "--report", reportPath, path)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(out), "CREATE TABLE")
	require.Contains(t, string(out), "INSERT INTO")
}

func TestShardCommandRequiresTenantValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)

	_, _, err := execRoot(t, "shard", "--dialect", "mysql", path)
	require.Error(t, err)
}

func TestDiffCommandReportsNoChangesForIdenticalDumps(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFixture(t, dir, "old.sql", fixtureDump)
	newPath := writeFixture(t, dir, "new.sql", fixtureDump)
	reportPath := filepath.Join(dir, "report.json")

	_, stderr, err := execRoot(t, "diff", "--dialect", "mysql", "--report", reportPath, oldPath, newPath)
	require.NoError(t, err)
	require.Contains(t, stderr, "tables: +0 -0 ~0")
}

func TestRedactCommandWithoutGeneratorFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)

	_, _, err := execRoot(t, "redact", path)
	require.Error(t, err)
}

func TestQueryCommandWithoutEngineFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "dump.sql", fixtureDump)

	_, _, err := execRoot(t, "query", path, "SELECT 1")
	require.Error(t, err)
}
