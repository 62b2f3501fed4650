package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dumpkit/internal/core"
	"dumpkit/internal/graph"
)

type schemaFlags struct {
	dialect string
	order   bool
	graph   bool
}

func newSchemaCmd() *cobra.Command {
	flags := &schemaFlags{}
	cmd := &cobra.Command{
		Use:   "schema <dump>",
		Short: "Print the tables, columns, and keys discovered in a dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.dialect, "dialect", "", "SQL dialect; auto-detected if omitted")
	cmd.Flags().BoolVar(&flags.order, "order", false, "Print tables in foreign-key dependency order instead")
	cmd.Flags().BoolVar(&flags.graph, "graph", false, "Print each table's parent/child foreign-key edges instead")
	return cmd
}

func runSchema(cmd *cobra.Command, path string, flags *schemaFlags) error {
	log := newStatusLog(cmd)

	dialect, err := resolveDialect(path, flags.dialect)
	if err != nil {
		return err
	}
	log.Step("reading schema from %s (%s)", path, dialect)

	result, err := buildSchema(path, dialect)
	if err != nil {
		return err
	}
	schema := result.Schema
	out := cmd.OutOrStdout()

	switch {
	case flags.graph:
		g := graph.Build(schema)
		for _, t := range schema.Tables {
			parents := tableNames(schema, g.Parents(t.ID))
			children := tableNames(schema, g.Children(t.ID))
			fmt.Fprintf(out, "%s: parents=%v children=%v\n", t.Name, parents, children)
		}
	case flags.order:
		g := graph.Build(schema)
		order, cyclic := g.TopoSort()
		for _, id := range order {
			fmt.Fprintln(out, schema.Table(id).Name)
		}
		if len(cyclic) > 0 {
			fmt.Fprintf(out, "-- %d table(s) in a foreign-key cycle, unordered:\n", len(cyclic))
			for _, id := range cyclic {
				fmt.Fprintln(out, schema.Table(id).Name)
			}
		}
	default:
		printSchema(out, schema)
	}

	for _, f := range result.Findings {
		log.Warn("%s: %s", f.Table, f.Message)
	}
	log.Summary("%d table(s) scanned", len(schema.Tables))
	return nil
}

func tableNames(schema *core.Schema, ids []core.TableID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, schema.Table(id).Name)
	}
	return names
}

func printSchema(out io.Writer, schema *core.Schema) {
	for _, t := range schema.Tables {
		fmt.Fprintf(out, "TABLE %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(out, "  %s %s\n", c.Name, c.Type)
		}
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(out, "  FOREIGN KEY -> %s\n", fk.ReferencedTable)
		}
	}
}
