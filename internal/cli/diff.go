package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dumpkit/internal/config"
	"dumpkit/internal/differ"
	"dumpkit/internal/report"
)

type diffFlags struct {
	dialect    string
	configPath string
	reportPath string
	schemaOnly bool
	dataOnly   bool
	verbose    bool
}

func newDiffCmd() *cobra.Command {
	flags := &diffFlags{}
	cmd := &cobra.Command{
		Use:   "diff <old.sql> <new.sql>",
		Short: "Compare the schema and data of two dumps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], args[1], flags)
		},
	}
	cmd.Flags().StringVar(&flags.dialect, "dialect", "", "SQL dialect; auto-detected from the old dump if omitted")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Optional TOML configuration file (e.g. pk_overrides)")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write a JSON findings report here (stdout if omitted)")
	cmd.Flags().BoolVar(&flags.schemaOnly, "schema-only", false, "Compare schema only, skip row data")
	cmd.Flags().BoolVar(&flags.dataOnly, "data-only", false, "Compare row data only, skip schema")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Retain sample primary keys per change category")
	return cmd
}

func runDiff(cmd *cobra.Command, oldPath, newPath string, flags *diffFlags) error {
	if flags.schemaOnly && flags.dataOnly {
		return fmt.Errorf("--schema-only and --data-only are mutually exclusive")
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	log := newStatusLog(cmd)
	dialect, err := resolveDialect(oldPath, flags.dialect)
	if err != nil {
		return err
	}
	log.Step("comparing %s to %s (%s)", oldPath, newPath, dialect)

	result, err := differ.Run(differ.Options{
		OldPath:    oldPath,
		NewPath:    newPath,
		Dialect:    dialect,
		Config:     cfg,
		SchemaOnly: flags.schemaOnly,
		DataOnly:   flags.dataOnly,
		Verbose:    flags.verbose,
	})
	if err != nil {
		return err
	}

	r := report.New("diff")
	for _, w := range result.Warnings {
		r.AddDifferWarning(w)
	}
	log.Summary("tables: +%d -%d ~%d; rows: +%d -%d ~%d; truncated=%t",
		result.Summary.TablesAdded, result.Summary.TablesRemoved, result.Summary.TablesModified,
		result.Summary.RowsAdded, result.Summary.RowsRemoved, result.Summary.RowsModified,
		result.Summary.Truncated)

	if err := writeReport(r, flags.reportPath); err != nil {
		return err
	}
	return exitWithReport(cmd, r)
}
