package cli

import (
	"github.com/spf13/cobra"

	"dumpkit/internal/report"
	"dumpkit/internal/validator"
)

type validateFlags struct {
	dialect         string
	reportPath      string
	fkChecks        bool
	maxRowsPerTable uint64
}

func newValidateCmd() *cobra.Command {
	flags := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate <dump>",
		Short: "Check a dump for syntax, encoding, and referential-integrity issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.dialect, "dialect", "", "SQL dialect; auto-detected if omitted")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write a JSON findings report here (stdout if omitted)")
	cmd.Flags().BoolVar(&flags.fkChecks, "fk-checks", true, "Run the duplicate-primary-key and foreign-key-orphan pass")
	cmd.Flags().Uint64Var(&flags.maxRowsPerTable, "max-rows-per-table", 0, "Row cap per table for PK/FK tracking (0 uses the built-in default)")
	return cmd
}

func runValidate(cmd *cobra.Command, path string, flags *validateFlags) error {
	log := newStatusLog(cmd)
	dialect, err := resolveDialect(path, flags.dialect)
	if err != nil {
		return err
	}
	log.Step("validating %s (%s)", path, dialect)

	summary, err := validator.Run(validator.Options{
		Path:            path,
		Dialect:         dialect,
		FKChecksEnabled: flags.fkChecks,
		MaxRowsPerTable: flags.maxRowsPerTable,
	})
	if err != nil {
		return err
	}

	r := report.New("validate")
	for _, issue := range summary.Issues {
		r.AddValidatorIssue(issue)
	}
	log.Summary("%d error(s), %d warning(s) across %d table(s), %d statement(s) scanned",
		summary.Stats.Errors, summary.Stats.Warnings, summary.Stats.TablesScanned, summary.Stats.StatementsScanned)

	if err := writeReport(r, flags.reportPath); err != nil {
		return err
	}
	return exitWithReport(cmd, r)
}
