package differ

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"dumpkit/internal/classifier"
	"dumpkit/internal/config"
	"dumpkit/internal/core"
	"dumpkit/internal/membership"
	"dumpkit/internal/rowparser"
	"dumpkit/internal/splitter"
)

// DataDiff is the per-table outcome of the row-level comparison pass.
type DataDiff struct {
	Tables map[string]TableDataDiff
}

// TableDataDiff is one table's row-level differences.
type TableDataDiff struct {
	OldRowCount  uint64
	NewRowCount  uint64
	AddedCount   uint64
	RemovedCount uint64
	ModifiedCount uint64
	Truncated    bool

	SampleAddedPKs    []string
	SampleRemovedPKs  []string
	SampleModifiedPKs []string
}

// dataDiffer accumulates per-table pk_hash/row_digest_hash state across
// both file scans, sharing a single membership.HashStore keyed by
// side+table so the global memory cap spans both sides combined (spec
// §4.10/§4.11), matching the two-file comparison the sampler's
// membership store already performs for a single file.
type dataDiffer struct {
	cfg        config.Config
	sampleSize int

	hashes    *membership.HashStore
	rowCounts map[string]uint64
	pkStrings map[string]map[uint64]string

	warnings     []Warning
	warnedTables map[string]bool

	pkIndexCache     map[string]pkIndexInfo
	ignoreIndexCache map[string][]core.ColumnID
}

type pkIndexInfo struct {
	indices     []core.ColumnID
	hasOverride bool
	allColumns  bool
	invalidCols []string
	usable      bool
}

func newDataDiffer(cfg config.Config, sampleSize int) *dataDiffer {
	return &dataDiffer{
		cfg:              cfg,
		sampleSize:       sampleSize,
		hashes:           membership.NewHashStore(cfg.PerTableCap, cfg.GlobalCap),
		rowCounts:        make(map[string]uint64),
		pkStrings:        make(map[string]map[uint64]string),
		warnedTables:     make(map[string]bool),
		pkIndexCache:     make(map[string]pkIndexInfo),
		ignoreIndexCache: make(map[string][]core.ColumnID),
	}
}

func sideKey(isOld bool, table string) string {
	if isOld {
		return "old::" + strings.ToLower(table)
	}
	return "new::" + strings.ToLower(table)
}

// scanFile streams path, parsing INSERT/COPY rows against schema and
// recording them into the shared hash store.
func (d *dataDiffer) scanFile(path string, schema *core.Schema, dialect core.Dialect, isOld bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sp := splitter.New(bufio.NewReaderSize(f, 64*1024), dialect)

	for {
		stmt, err := sp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("splitting %s: %w", path, err)
		}

		kind, tableName := classifier.Classify(stmt.Raw, dialect)
		if tableName == "" {
			continue
		}

		switch kind {
		case core.Insert:
			table := schema.TableByName(tableName)
			if table == nil || !d.cfg.TableIncluded(table.Name) {
				continue
			}
			rows, err := rowparser.ParseInsert(stmt.Raw, table, dialect)
			if err != nil {
				return fmt.Errorf("parsing INSERT in %s: %w", table.Name, err)
			}
			d.processRows(table, rows, isOld)

		case core.Copy:
			if !dialect.SupportsCopy() {
				continue
			}
			data, derr := sp.NextCopyData()
			if derr != nil && derr != io.EOF {
				return fmt.Errorf("reading COPY data in %s: %w", path, derr)
			}
			table := schema.TableByName(tableName)
			if table == nil || !d.cfg.TableIncluded(table.Name) {
				continue
			}
			cols := rowparser.ParseCopyHeaderColumns(string(stmt.Raw))
			rows := rowparser.ParseCopyData(data.Raw, table, cols)
			d.processRows(table, rows, isOld)
		}
	}
	return nil
}

// processRows records every row of one INSERT/COPY block against the
// table's effective primary key.
func (d *dataDiffer) processRows(table *core.Table, rows []core.RowExtractionResult, isOld bool) {
	pki := d.effectivePK(table)
	if !pki.usable {
		if !d.warnedTables[strings.ToLower(table.Name)] {
			d.warnedTables[strings.ToLower(table.Name)] = true
			d.warnings = append(d.warnings, Warning{Table: table.Name, Message: "no primary key, data comparison skipped"})
		}
		return
	}
	if len(pki.invalidCols) > 0 && !d.warnedTables["invalid-pk:"+strings.ToLower(table.Name)] {
		d.warnedTables["invalid-pk:"+strings.ToLower(table.Name)] = true
		d.warnings = append(d.warnings, Warning{
			Table:   table.Name,
			Message: fmt.Sprintf("primary key override column(s) not found: %s", strings.Join(pki.invalidCols, ", ")),
		})
	}

	ignore := d.ignoreIndices(table)
	key := sideKey(isOld, table.Name)

	for _, row := range rows {
		d.rowCounts[key]++

		var tuple core.PKTuple
		if pki.allColumns {
			tuple = core.PKTuple(row.Values)
		} else {
			t, ok := buildTuple(row.Values, pki.indices)
			if !ok {
				continue
			}
			tuple = t
		}

		pkHash := d.hashes.HashTuple(tuple)
		digestHash := d.hashes.HashValues(filterIgnoredValues(row.Values, ignore))
		d.hashes.Insert(key, pkHash, digestHash)

		if d.sampleSize > 0 {
			m := d.pkStrings[key]
			if m == nil {
				m = make(map[uint64]string)
				d.pkStrings[key] = m
			}
			if _, exists := m[pkHash]; !exists {
				m[pkHash] = formatPK(tuple)
			}
		}
	}
}

// effectivePK resolves and caches table's comparison key: an explicit
// override, else its natural primary key, else every column when
// allow_no_pk is set, else unusable (spec §4.11).
func (d *dataDiffer) effectivePK(table *core.Table) pkIndexInfo {
	key := strings.ToLower(table.Name)
	if info, ok := d.pkIndexCache[key]; ok {
		return info
	}

	var info pkIndexInfo
	if override, ok := d.cfg.PKOverrides[key]; ok {
		var indices []core.ColumnID
		var invalid []string
		for _, name := range override {
			if c, found := table.FindColumn(name); found {
				indices = append(indices, c.Ordinal)
			} else {
				invalid = append(invalid, name)
			}
		}
		info = pkIndexInfo{indices: indices, hasOverride: true, invalidCols: invalid, usable: len(indices) > 0}
	} else if len(table.PrimaryKey) > 0 {
		info = pkIndexInfo{indices: table.PrimaryKey, usable: true}
	} else if d.cfg.AllowNoPK {
		info = pkIndexInfo{allColumns: true, usable: true}
	} else {
		info = pkIndexInfo{usable: false}
	}

	d.pkIndexCache[key] = info
	return info
}

// ignoreIndices resolves and caches the ordinals of columns the
// ignore-columns glob excludes from the row digest, warning once if an
// ignored column is also part of the primary key (spec §4.11).
func (d *dataDiffer) ignoreIndices(table *core.Table) []core.ColumnID {
	key := strings.ToLower(table.Name)
	if idx, ok := d.ignoreIndexCache[key]; ok {
		return idx
	}
	var indices []core.ColumnID
	for _, c := range table.Columns {
		if !d.cfg.ColumnIgnored(table.Name, c.Name) {
			continue
		}
		if c.IsPrimaryKey && !d.warnedTables["ignore-pk:"+key] {
			d.warnedTables["ignore-pk:"+key] = true
			d.warnings = append(d.warnings, Warning{
				Table:   table.Name,
				Message: fmt.Sprintf("ignoring primary key column %q may affect diff accuracy", c.Name),
			})
		}
		indices = append(indices, c.Ordinal)
	}
	d.ignoreIndexCache[key] = indices
	return indices
}

func buildTuple(values []core.PKValue, indices []core.ColumnID) (core.PKTuple, bool) {
	if len(indices) == 0 {
		return nil, false
	}
	tuple := make(core.PKTuple, 0, len(indices))
	for _, id := range indices {
		if int(id) >= len(values) {
			return nil, false
		}
		v := values[id]
		if v.IsNull() {
			return nil, false
		}
		tuple = append(tuple, v)
	}
	return tuple, true
}

func filterIgnoredValues(values []core.PKValue, ignore []core.ColumnID) []core.PKValue {
	if len(ignore) == 0 {
		return values
	}
	skip := make(map[core.ColumnID]bool, len(ignore))
	for _, id := range ignore {
		skip[id] = true
	}
	kept := make([]core.PKValue, 0, len(values))
	for i, v := range values {
		if skip[core.ColumnID(i)] {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

// formatPK renders a comparison key for a sample: a single-column key as
// its bare value, a composite key parenthesised (spec §4.11).
func formatPK(tuple core.PKTuple) string {
	if len(tuple) == 1 {
		return tuple[0].String()
	}
	return tuple.String()
}

// computeDiff produces the final DataDiff from accumulated state. A
// table whose hash store was truncated (per side, or globally) falls
// back to a row-count-only estimate, since the detailed hash sets
// needed for an exact added/removed/modified split may be incomplete
// (spec §4.10's truncation policy).
func (d *dataDiffer) computeDiff() (DataDiff, []Warning) {
	tables := make(map[string]TableDataDiff)
	seen := make(map[string]bool)

	for key := range d.rowCounts {
		name := strings.TrimPrefix(strings.TrimPrefix(key, "old::"), "new::")
		seen[name] = true
	}

	for name := range seen {
		oldKey, newKey := "old::"+name, "new::"+name
		oldCount, newCount := d.rowCounts[oldKey], d.rowCounts[newKey]

		td := TableDataDiff{
			OldRowCount: oldCount,
			NewRowCount: newCount,
			Truncated:   d.hashes.IsTruncated(oldKey) || d.hashes.IsTruncated(newKey),
		}

		if td.Truncated {
			switch {
			case newCount > oldCount:
				td.AddedCount = newCount - oldCount
			case oldCount > newCount:
				td.RemovedCount = oldCount - newCount
			}
			tables[name] = td
			continue
		}

		oldHashes := d.hashes.Keys(oldKey)
		newHashes := d.hashes.Keys(newKey)
		oldSet := make(map[uint64]bool, len(oldHashes))
		for _, h := range oldHashes {
			oldSet[h] = true
		}

		for _, h := range newHashes {
			if oldSet[h] {
				continue
			}
			td.AddedCount++
			if d.sampleSize > 0 && len(td.SampleAddedPKs) < d.sampleSize {
				if s, ok := d.pkStrings[newKey][h]; ok {
					td.SampleAddedPKs = append(td.SampleAddedPKs, s)
				}
			}
		}

		newSet := make(map[uint64]bool, len(newHashes))
		for _, h := range newHashes {
			newSet[h] = true
		}
		for _, h := range oldHashes {
			oldDigest, _ := d.hashes.Get(oldKey, h)
			if !newSet[h] {
				td.RemovedCount++
				if d.sampleSize > 0 && len(td.SampleRemovedPKs) < d.sampleSize {
					if s, ok := d.pkStrings[oldKey][h]; ok {
						td.SampleRemovedPKs = append(td.SampleRemovedPKs, s)
					}
				}
				continue
			}
			newDigest, _ := d.hashes.Get(newKey, h)
			if oldDigest != newDigest {
				td.ModifiedCount++
				if d.sampleSize > 0 && len(td.SampleModifiedPKs) < d.sampleSize {
					if s, ok := d.pkStrings[oldKey][h]; ok {
						td.SampleModifiedPKs = append(td.SampleModifiedPKs, s)
					}
				}
			}
		}

		if td.OldRowCount > 0 || td.NewRowCount > 0 || td.AddedCount > 0 || td.RemovedCount > 0 || td.ModifiedCount > 0 {
			tables[name] = td
		}
	}

	return DataDiff{Tables: tables}, d.warnings
}
