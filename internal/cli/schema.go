// Package cli assembles dumpkit's cobra commands on top of the engine
// packages: it wires flags to config.Config, opens input files through
// the reader (C1) for compression transparency, and routes findings and
// progress through internal/report and internal/statuslog (spec §7).
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"dumpkit/internal/classifier"
	"dumpkit/internal/core"
	"dumpkit/internal/ddl"
	"dumpkit/internal/reader"
	"dumpkit/internal/splitter"
)

// schemaResult bundles the schema built from one dump pass with the raw
// bytes of every statement that isn't an INSERT/COPY row, in original
// order. The sampler and sharder need both: the schema to drive
// classification, and the DDL bytes to reproduce the table definitions
// and session-level statements the selection engine itself never
// writes (it only emits a dialect prelude and INSERT statements).
type schemaResult struct {
	Schema   *core.Schema
	DDLBytes []byte
	Findings []ddl.Finding
}

// buildSchema opens path and feeds every CREATE TABLE, ALTER TABLE, and
// CREATE INDEX statement into a schema builder, skipping COPY data
// blocks without parsing them. It is the one schema-extraction pass
// shared by the schema, sample, and shard commands.
func buildSchema(path string, dialect core.Dialect) (*schemaResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	rd, err := reader.Open(path, info.Size(), reader.NewRegistry())
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	sp := splitter.New(rd, dialect)
	b := ddl.NewBuilder(dialect)

	var ddlBytes []byte
	for {
		stmt, serr := sp.Next()
		if serr == io.EOF {
			break
		}
		if serr != nil {
			return nil, fmt.Errorf("splitting %s: %w", path, serr)
		}

		kind, table := classifier.Classify(stmt.Raw, dialect)
		stmt.Kind, stmt.Table = kind, table

		switch kind {
		case core.CreateTable, core.AlterTable, core.CreateIndex:
			b.Feed(stmt)
			ddlBytes = append(ddlBytes, stmt.Raw...)
			ddlBytes = append(ddlBytes, '\n')
		case core.Copy:
			if dialect.SupportsCopy() {
				if _, derr := sp.NextCopyData(); derr != nil && derr != io.EOF {
					return nil, fmt.Errorf("skipping COPY data in %s: %w", path, derr)
				}
			}
		case core.DropTable, core.Unknown:
			ddlBytes = append(ddlBytes, stmt.Raw...)
			ddlBytes = append(ddlBytes, '\n')
		}
	}

	return &schemaResult{Schema: b.Finalize(), DDLBytes: ddlBytes, Findings: b.Findings()}, nil
}

// openOutput returns a writer for path, or os.Stdout when path is "-"
// or empty, along with a close function the caller must always invoke.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 256*1024)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

// resolveDialect returns the explicitly flagged dialect, or runs the
// detector against path's header sample when flagged is empty.
func resolveDialect(path, flagged string) (core.Dialect, error) {
	if flagged != "" {
		d, ok := core.ParseDialect(flagged)
		if !ok {
			return "", fmt.Errorf("unrecognised dialect %q", flagged)
		}
		return d, nil
	}
	return detectDialect(path)
}
