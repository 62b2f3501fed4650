// Package differ implements the diff engine (C11): a two-pass-per-file
// comparison between two SQL dumps, covering schema differences
// (tables, columns, primary keys, foreign keys, indexes) and row-level
// data differences (added/removed/modified), bounded by the same
// PK/hash membership cap policy the selection engine uses (spec
// §4.10/§4.11).
package differ

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"dumpkit/internal/classifier"
	"dumpkit/internal/config"
	"dumpkit/internal/core"
	"dumpkit/internal/ddl"
	"dumpkit/internal/splitter"
)

// Options configures one Run.
type Options struct {
	OldPath string
	NewPath string
	Dialect core.Dialect
	Config  config.Config

	SchemaOnly bool // compare schema only, skip data
	DataOnly   bool // compare data only, skip schema (schema is still
	// extracted from both files: row comparison needs PK/column info)
	Verbose bool // retain up to sampleSize PKs per table per change
	// category instead of just counts
}

// Warning is a non-fatal condition surfaced alongside a diff result,
// e.g. a table with no usable primary key.
type Warning struct {
	Table   string
	Message string
}

// Summary rolls the schema and data diffs into headline counts for the
// status line and JSON report.
type Summary struct {
	TablesAdded    int
	TablesRemoved  int
	TablesModified int
	RowsAdded      uint64
	RowsRemoved    uint64
	RowsModified   uint64
	Truncated      bool
}

// Result is the complete outcome of a Run.
type Result struct {
	Schema   *SchemaDiff // nil when Options.DataOnly
	Data     *DataDiff   // nil when Options.SchemaOnly
	Warnings []Warning
	Summary  Summary
}

// sampleSize caps the number of sample PKs retained per table per
// change category in verbose mode (spec §4.11).
const sampleSize = 100

// Run executes the configured diff between Options.OldPath and
// Options.NewPath.
func Run(opts Options) (*Result, error) {
	oldSchema, err := extractSchema(opts.OldPath, opts.Dialect)
	if err != nil {
		return nil, fmt.Errorf("reading schema from %s: %w", opts.OldPath, err)
	}
	newSchema, err := extractSchema(opts.NewPath, opts.Dialect)
	if err != nil {
		return nil, fmt.Errorf("reading schema from %s: %w", opts.NewPath, err)
	}

	var schemaDiff *SchemaDiff
	if !opts.DataOnly {
		sd := compareSchemas(oldSchema, newSchema, opts.Config)
		schemaDiff = &sd
	}

	var dataDiff *DataDiff
	var warnings []Warning
	if !opts.SchemaOnly {
		n := 0
		if opts.Verbose {
			n = sampleSize
		}
		dd := newDataDiffer(opts.Config, n)
		if err := dd.scanFile(opts.OldPath, oldSchema, opts.Dialect, true); err != nil {
			return nil, fmt.Errorf("scanning data in %s: %w", opts.OldPath, err)
		}
		if err := dd.scanFile(opts.NewPath, newSchema, opts.Dialect, false); err != nil {
			return nil, fmt.Errorf("scanning data in %s: %w", opts.NewPath, err)
		}
		result, warns := dd.computeDiff()
		dataDiff = &result
		warnings = warns
	}

	return &Result{
		Schema:   schemaDiff,
		Data:     dataDiff,
		Warnings: warnings,
		Summary:  buildSummary(schemaDiff, dataDiff),
	}, nil
}

// extractSchema runs a forward pass over path, feeding every
// CREATE/ALTER/CREATE INDEX statement to a schema builder (spec §4.5)
// and ignoring row data entirely.
func extractSchema(path string, dialect core.Dialect) (*core.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sp := splitter.New(bufio.NewReaderSize(f, 64*1024), dialect)
	b := ddl.NewBuilder(dialect)

	for {
		stmt, err := sp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", path, err)
		}

		kind, table := classifier.Classify(stmt.Raw, dialect)
		stmt.Kind, stmt.Table = kind, table

		switch kind {
		case core.CreateTable, core.AlterTable, core.CreateIndex:
			b.Feed(stmt)
		case core.Copy:
			// Skip the data block following a COPY header; the schema
			// pass never needs it.
			if dialect.SupportsCopy() {
				if _, err := sp.NextCopyData(); err != nil && err != io.EOF {
					return nil, fmt.Errorf("skipping COPY data in %s: %w", path, err)
				}
			}
		}
	}
	return b.Finalize(), nil
}

// buildSummary derives headline counts from whichever of schemaDiff and
// dataDiff ran.
func buildSummary(schemaDiff *SchemaDiff, dataDiff *DataDiff) Summary {
	var s Summary
	if schemaDiff != nil {
		s.TablesAdded = len(schemaDiff.TablesAdded)
		s.TablesRemoved = len(schemaDiff.TablesRemoved)
		s.TablesModified = len(schemaDiff.TablesModified)
	}
	if dataDiff != nil {
		modifiedTables := 0
		for _, td := range dataDiff.Tables {
			s.RowsAdded += td.AddedCount
			s.RowsRemoved += td.RemovedCount
			s.RowsModified += td.ModifiedCount
			if td.AddedCount > 0 || td.RemovedCount > 0 || td.ModifiedCount > 0 {
				modifiedTables++
			}
			if td.Truncated {
				s.Truncated = true
			}
		}
		if modifiedTables > s.TablesModified {
			s.TablesModified = modifiedTables
		}
	}
	return s
}
