package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dumpkit/internal/config"
	"dumpkit/internal/report"
	"dumpkit/internal/selection"
)

type sampleFlags struct {
	dialect       string
	configPath    string
	output        string
	reportPath    string
	includeTables []string
	excludeTables []string
	rootTables    []string
	includeGlobal string
	percent       int
	rows          int
	seed          uint64
	maxTotalRows  int64
	strictFK      bool
}

func newSampleCmd() *cobra.Command {
	flags := &sampleFlags{}
	cmd := &cobra.Command{
		Use:   "sample <dump>",
		Short: "Extract a representative, FK-consistent subset of a dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.dialect, "dialect", "", "SQL dialect; auto-detected if omitted")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Optional TOML configuration file")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output dump file (stdout if omitted)")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write a JSON findings report here (stdout if omitted)")
	cmd.Flags().StringSliceVar(&flags.includeTables, "tables", nil, "Glob patterns of tables to include")
	cmd.Flags().StringSliceVar(&flags.excludeTables, "exclude", nil, "Glob patterns of tables to exclude")
	cmd.Flags().StringSliceVar(&flags.rootTables, "root-tables", nil, "Explicit root-table names, overriding auto-classification")
	cmd.Flags().StringVar(&flags.includeGlobal, "include-global", "", "Global table policy: none, lookups, or all")
	cmd.Flags().IntVar(&flags.percent, "percent", 0, "Percentage of rows to retain per table (1..100), mutually exclusive with --rows")
	cmd.Flags().IntVar(&flags.rows, "rows", 0, "Reservoir size per table, mutually exclusive with --percent")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "Random seed; drawn from entropy and reported if omitted")
	cmd.Flags().Int64Var(&flags.maxTotalRows, "max-total-rows", 0, "Abort once this many rows have been selected across all tables")
	cmd.Flags().BoolVar(&flags.strictFK, "strict-fk", false, "Abort on the first foreign-key orphan instead of dropping the row")
	return cmd
}

func runSample(cmd *cobra.Command, path string, flags *sampleFlags) error {
	if flags.percent != 0 && flags.rows != 0 {
		return fmt.Errorf("--percent and --rows are mutually exclusive")
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	applySelectionFlags(&cfg, flags.includeTables, flags.excludeTables, flags.rootTables,
		flags.includeGlobal, flags.percent, flags.rows, flags.seed, cmd.Flags().Changed("seed"),
		flags.maxTotalRows, flags.strictFK)

	log := newStatusLog(cmd)
	dialect, err := resolveDialect(path, flags.dialect)
	if err != nil {
		return err
	}

	rep, err := runSelection(log, path, dialect, selection.ModeSample, cfg, "", flags.output)
	if err != nil {
		return err
	}

	r := report.New("sample")
	for _, tr := range rep.Tables {
		if tr.Truncated {
			r.AddSimple("SAMPLE_TABLE_TRUNCATED", report.SeverityWarning,
				fmt.Sprintf("table %s hit its membership cap and was truncated", tr.Table))
		}
	}
	if rep.Halted {
		r.AddSimple("SAMPLE_HALTED", report.SeverityError, rep.HaltReason)
	}
	if err := writeReport(r, flags.reportPath); err != nil {
		return err
	}
	return exitWithReport(cmd, r)
}

// applySelectionFlags layers explicitly-set flags onto cfg, which
// already carries the config file's values (or the documented
// defaults); flags always win, matching spec §6's precedence rule.
func applySelectionFlags(cfg *config.Config, include, exclude, rootTables []string,
	includeGlobal string, percent, rows int, seed uint64, seedSet bool,
	maxTotalRows int64, strictFK bool) {
	if len(include) > 0 {
		cfg.IncludeTables = include
	}
	if len(exclude) > 0 {
		cfg.ExcludeTables = exclude
	}
	if len(rootTables) > 0 {
		cfg.RootTables = rootTables
	}
	if includeGlobal != "" {
		cfg.IncludeGlobal = includeGlobal
	}
	if percent != 0 {
		cfg.Percent = percent
	}
	if rows != 0 {
		cfg.Rows = rows
	}
	if seedSet {
		cfg.Seed = &seed
	}
	if maxTotalRows != 0 {
		cfg.MaxSelectedRows = maxTotalRows
	}
	if strictFK {
		cfg.StrictFK = strictFK
	}
}
