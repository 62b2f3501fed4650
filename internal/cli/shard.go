package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dumpkit/internal/config"
	"dumpkit/internal/report"
	"dumpkit/internal/selection"
)

type shardFlags struct {
	dialect       string
	configPath    string
	output        string
	reportPath    string
	includeTables []string
	excludeTables []string
	includeGlobal string
	tenantColumn  string
	tenantValue   string
	rootTables    []string
	maxTotalRows  int64
	strictFK      bool
}

func newShardCmd() *cobra.Command {
	flags := &shardFlags{}
	cmd := &cobra.Command{
		Use:   "shard <dump>",
		Short: "Extract one tenant's rows from a multi-tenant dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShard(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.dialect, "dialect", "", "SQL dialect; auto-detected if omitted")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Optional TOML configuration file")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output dump file (stdout if omitted)")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write a JSON findings report here (stdout if omitted)")
	cmd.Flags().StringSliceVar(&flags.includeTables, "tables", nil, "Glob patterns of tables to include")
	cmd.Flags().StringSliceVar(&flags.excludeTables, "exclude", nil, "Glob patterns of tables to exclude")
	cmd.Flags().StringVar(&flags.includeGlobal, "include-global", "", "Global table policy: none, lookups, or all")
	cmd.Flags().StringVar(&flags.tenantColumn, "tenant-column", "", "Tenant column name; auto-detected from common names if omitted")
	cmd.Flags().StringVar(&flags.tenantValue, "tenant-value", "", "Tenant value to extract (required)")
	cmd.Flags().StringSliceVar(&flags.rootTables, "root-tables", nil, "Explicit tenant-root table names")
	cmd.Flags().Int64Var(&flags.maxTotalRows, "max-total-rows", 0, "Abort once this many rows have been selected across all tables")
	cmd.Flags().BoolVar(&flags.strictFK, "strict-fk", false, "Abort on the first foreign-key orphan instead of dropping the row")
	return cmd
}

func runShard(cmd *cobra.Command, path string, flags *shardFlags) error {
	if flags.tenantValue == "" {
		return fmt.Errorf("--tenant-value is required")
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if len(flags.includeTables) > 0 {
		cfg.IncludeTables = flags.includeTables
	}
	if len(flags.excludeTables) > 0 {
		cfg.ExcludeTables = flags.excludeTables
	}
	if flags.includeGlobal != "" {
		cfg.IncludeGlobal = flags.includeGlobal
	}
	if flags.tenantColumn != "" {
		cfg.Tenant.Column = flags.tenantColumn
	}
	if len(flags.rootTables) > 0 {
		cfg.Tenant.RootTables = flags.rootTables
	}
	if flags.maxTotalRows != 0 {
		cfg.MaxSelectedRows = flags.maxTotalRows
	}
	if flags.strictFK {
		cfg.StrictFK = flags.strictFK
	}

	log := newStatusLog(cmd)
	dialect, err := resolveDialect(path, flags.dialect)
	if err != nil {
		return err
	}

	rep, err := runSelection(log, path, dialect, selection.ModeShard, cfg, flags.tenantValue, flags.output)
	if err != nil {
		return err
	}

	r := report.New("shard")
	for _, tr := range rep.Tables {
		if tr.Truncated {
			r.AddSimple("SHARD_TABLE_TRUNCATED", report.SeverityWarning,
				fmt.Sprintf("table %s hit its membership cap and was truncated", tr.Table))
		}
	}
	if rep.Halted {
		r.AddSimple("SHARD_HALTED", report.SeverityError, rep.HaltReason)
	}
	if err := writeReport(r, flags.reportPath); err != nil {
		return err
	}
	return exitWithReport(cmd, r)
}
