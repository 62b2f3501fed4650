package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dumpkit/internal/report"
	"dumpkit/internal/statuslog"
)

// exitWithReport returns an error cobra will surface through
// SilenceUsage (so the os.Exit(1) path in main happens) when r carries
// an error-severity finding; otherwise it returns nil.
func exitWithReport(cmd *cobra.Command, r *report.Report) error {
	if r.HasErrors() {
		return fmt.Errorf("%s failed: see report for details", r.Command)
	}
	return nil
}

// NewRootCmd assembles the dumpkit root command and every subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dumpkit",
		Short:         "Work with large SQL dumps without loading them into a database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newSplitCmd(),
		newDetectCmd(),
		newSchemaCmd(),
		newSampleCmd(),
		newShardCmd(),
		newDiffCmd(),
		newValidateCmd(),
		newRedactCmd(),
		newQueryCmd(),
	)
	return root
}

// newStatusLog returns a status logger writing to the command's stderr
// stream (spec §7's textual status stream), so tests can redirect it
// via cmd.SetErr without touching the real process stderr.
func newStatusLog(cmd *cobra.Command) *statuslog.Logger {
	return statuslog.NewTo(cmd.ErrOrStderr())
}

// writeReport renders r as indented JSON to outPath, or stdout when
// outPath is empty, for the --report flag every analysis command shares.
func writeReport(r *report.Report, outPath string) error {
	js, err := r.JSON()
	if err != nil {
		return err
	}
	if outPath == "" || outPath == "-" {
		_, err := os.Stdout.WriteString(js)
		return err
	}
	return os.WriteFile(outPath, []byte(js), 0o644)
}
