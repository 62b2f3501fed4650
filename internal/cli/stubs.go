package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRedactCmd and newQueryCmd are thin CLI layers over the redact.Generator
// and queryengine.Engine interfaces (internal/redact, internal/queryengine).
// Both seams name an explicit external collaborator dumpkit doesn't ship
// itself (a value-generation library, an embedded analytic database); until
// one is wired in, the commands exist so `dumpkit --help` documents the
// full surface, and fail clearly rather than silently no-op.

func newRedactCmd() *cobra.Command {
	var generator string
	cmd := &cobra.Command{
		Use:    "redact <dump>",
		Short:  "Replace sensitive column values with generated data (requires a generator plugin)",
		Args:   cobra.ExactArgs(1),
		Hidden: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if generator == "" {
				return fmt.Errorf("redact requires --generator; no redact.Generator is built in, see internal/redact")
			}
			return fmt.Errorf("no generator named %q is registered", generator)
		},
	}
	cmd.Flags().StringVar(&generator, "generator", "", "Name of a registered redact.Generator implementation")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:    "query <dump> <sql>",
		Short:  "Run a read-only SQL query over a loaded dump (requires a query engine plugin)",
		Args:   cobra.ExactArgs(2),
		Hidden: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if engine == "" {
				return fmt.Errorf("query requires --engine; no queryengine.Engine is built in, see internal/queryengine")
			}
			return fmt.Errorf("no query engine named %q is registered", engine)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "Name of a registered queryengine.Engine implementation")
	return cmd
}
