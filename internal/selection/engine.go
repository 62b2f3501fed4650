package selection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"dumpkit/internal/classifier"
	"dumpkit/internal/config"
	"dumpkit/internal/core"
	"dumpkit/internal/graph"
	"dumpkit/internal/membership"
	"dumpkit/internal/rowparser"
	"dumpkit/internal/splitter"
	"dumpkit/internal/tablesplit"
)

// Options configures one engine run. The sampler and sharder differ
// only in Mode and TenantValue; every other rule is shared (spec
// §4.9).
type Options struct {
	Mode   Mode
	Config config.Config

	// TenantValue is the raw --tenant-value the sharder matches
	// tenant-root rows against. Unused in ModeSample.
	TenantValue string

	Seed int64
}

// TableReport summarises what happened to one table during a run, for
// the command layer's status output and the JSON findings report.
type TableReport struct {
	Table          string
	Classification Classification
	Strategy       StrategyKind
	Considered     int
	Selected       int
	Orphans        int
	Truncated      bool
}

// Report is the outcome of one engine Run.
type Report struct {
	Tables     []TableReport
	Halted     bool
	HaltReason string
}

// Engine drives classification, strategy assignment, and FK-aware
// streaming selection over a per-table-split dump (spec §4.9).
type Engine struct {
	schema   *core.Schema
	graph    *graph.Graph
	manifest *tablesplit.Manifest
	dialect  core.Dialect
	opts     Options

	rng     *rand.Rand
	members *membership.TupleStore

	// cyclicSet holds every table TopoSort could not linearise. An FK
	// edge between two cyclic tables can't be relied on to have its
	// parent side fully processed first, so checkForeignKeys skips it
	// rather than report a spurious orphan.
	cyclicSet map[core.TableID]bool
	order     []core.TableID
	cyclic    []core.TableID

	classifications map[core.TableID]Classification
	strategies      map[core.TableID]Strategy

	tenantColumnName string
}

// NewEngine classifies every table and resolves its strategy up front,
// before any row is read.
func NewEngine(schema *core.Schema, g *graph.Graph, manifest *tablesplit.Manifest, dialect core.Dialect, opts Options) (*Engine, error) {
	order, cyclic := g.TopoSort()
	cyclicSet := make(map[core.TableID]bool, len(cyclic))
	for _, id := range cyclic {
		cyclicSet[id] = true
	}

	e := &Engine{
		schema:    schema,
		graph:     g,
		manifest:  manifest,
		dialect:   dialect,
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		members:   membership.NewTupleStore(opts.Config.PerTableCap, opts.Config.GlobalCap),
		cyclicSet: cyclicSet,
		order:     order,
		cyclic:    cyclic,
	}

	if opts.Mode == ModeShard {
		col, ok := opts.Config.ResolveTenantColumn(e.columnNameSet())
		if !ok {
			return nil, fmt.Errorf("sharding requires a tenant column; none configured or auto-detected")
		}
		e.tenantColumnName = col
	}

	e.classify()
	e.assignStrategies()
	return e, nil
}

func (e *Engine) columnNameSet() map[string]bool {
	names := make(map[string]bool)
	for _, t := range e.schema.Tables {
		for _, c := range t.Columns {
			names[strings.ToLower(c.Name)] = true
		}
	}
	return names
}

// buildTenantRoots resolves which tables are tenant roots: the
// explicitly configured list if given, otherwise every table carrying
// the tenant column with no FK parent of its own.
func (e *Engine) buildTenantRoots() map[core.TableID]bool {
	roots := make(map[core.TableID]bool)
	if len(e.opts.Config.Tenant.RootTables) > 0 {
		for _, name := range e.opts.Config.Tenant.RootTables {
			if t := e.schema.TableByName(name); t != nil {
				roots[t.ID] = true
			}
		}
		return roots
	}
	for _, t := range e.schema.Tables {
		if _, ok := t.FindColumn(e.tenantColumnName); ok && len(e.graph.Parents(t.ID)) == 0 {
			roots[t.ID] = true
		}
	}
	return roots
}

func (e *Engine) classify() {
	var tenantRoots map[core.TableID]bool
	if e.opts.Mode == ModeShard {
		tenantRoots = e.buildTenantRoots()
	}
	e.classifications = make(map[core.TableID]Classification, len(e.schema.Tables))
	for _, t := range e.schema.Tables {
		e.classifications[t.ID] = classifyTable(t, e.graph, e.opts.Config, e.opts.Mode, tenantRoots)
	}
}

func (e *Engine) assignStrategies() {
	e.strategies = make(map[core.TableID]Strategy, len(e.schema.Tables))
	for _, t := range e.schema.Tables {
		if ov, ok := e.opts.Config.OverrideFor(t.Name); ok && ov.Skip {
			e.strategies[t.ID] = Strategy{Kind: StrategySkip}
			continue
		}
		e.strategies[t.ID] = strategyFor(t, e.classifications[t.ID], e.opts.Config, e.tenantColumnName)
	}
}

// strictFKError signals a strict-fk abort: the run halts, no rows for
// the table in progress are written, every table processed before it
// stands.
type strictFKError struct{ table string }

func (s *strictFKError) Error() string {
	return fmt.Sprintf("strict-fk: orphan row encountered in %s", s.table)
}

// Run streams every table's split file in dependency order, writing
// selected rows (and a dialect prelude/postlude) to w.
func (e *Engine) Run(w io.Writer) (*Report, error) {
	if err := writePrelude(w, e.dialect); err != nil {
		return nil, err
	}

	report := &Report{}
	var globalSelected int64

	processOrder := make([]core.TableID, 0, len(e.order)+len(e.cyclic))
	processOrder = append(processOrder, e.order...)
	processOrder = append(processOrder, e.cyclic...)

	for _, id := range processOrder {
		t := e.schema.Table(id)
		strat := e.strategies[id]
		tr := TableReport{Table: t.Name, Classification: e.classifications[id], Strategy: strat.Kind}

		if strat.Kind == StrategySkip {
			report.Tables = append(report.Tables, tr)
			continue
		}
		path, ok := e.manifest.PathFor(t.Name)
		if !ok {
			report.Tables = append(report.Tables, tr)
			continue
		}

		rows, orphans, considered, err := e.selectRows(t, strat, path)
		tr.Considered = considered
		tr.Orphans = orphans
		if err != nil {
			var sfe *strictFKError
			if errors.As(err, &sfe) {
				report.Halted = true
				report.HaltReason = err.Error()
				report.Tables = append(report.Tables, tr)
				return report, nil
			}
			return nil, err
		}

		if e.opts.Config.MaxSelectedRows > 0 && globalSelected+int64(len(rows)) > e.opts.Config.MaxSelectedRows {
			report.Halted = true
			report.HaltReason = fmt.Sprintf("max_selected_rows exceeded while processing %s", t.Name)
			report.Tables = append(report.Tables, tr)
			return report, nil
		}
		globalSelected += int64(len(rows))

		for _, row := range rows {
			if len(row.PK) > 0 {
				e.members.Insert(t.Name, row.PK)
			}
		}
		if err := writeInserts(w, e.dialect, t, rows); err != nil {
			return nil, err
		}

		tr.Selected = len(rows)
		tr.Truncated = e.members.IsTruncated(t.Name)
		report.Tables = append(report.Tables, tr)
	}

	if err := writePostlude(w, e.dialect); err != nil {
		return nil, err
	}
	return report, nil
}

// selectRows streams one table's split file and applies strat to every
// row, returning the accepted rows, the orphan count, and the total
// rows considered. Membership-store insertion and output writing are
// the caller's job, deferred until the whole table has been read, so a
// strict-fk abort partway through never produces a partial write (spec
// §4.9).
func (e *Engine) selectRows(t *core.Table, strat Strategy, path string) (accepted []core.RowExtractionResult, orphanCount int, considered int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	src := bufio.NewReaderSize(f, 64*1024)
	sp := splitter.New(src, e.dialect)

	reservoirCount := 0
	for {
		stmt, serr := sp.Next()
		if serr == io.EOF {
			break
		}
		if serr != nil {
			return nil, orphanCount, considered, fmt.Errorf("splitting %s: %w", t.Name, serr)
		}

		kind, _ := classifier.Classify(stmt.Raw, e.dialect)

		var rows []core.RowExtractionResult
		switch kind {
		case core.Insert:
			rows, err = rowparser.ParseInsert(stmt.Raw, t, e.dialect)
			if err != nil {
				return nil, orphanCount, considered, fmt.Errorf("parsing INSERT in %s: %w", t.Name, err)
			}
		case core.Copy:
			if !e.dialect.SupportsCopy() {
				continue
			}
			data, derr := sp.NextCopyData()
			if derr == io.EOF {
				break
			}
			if derr != nil {
				return nil, orphanCount, considered, fmt.Errorf("reading COPY data in %s: %w", t.Name, derr)
			}
			cols := rowparser.ParseCopyHeaderColumns(string(stmt.Raw))
			rows = rowparser.ParseCopyData(data.Raw, t, cols)
		default:
			continue
		}

		for _, row := range rows {
			considered++
			pass, orphan := e.evaluate(t, strat, row)
			if orphan {
				orphanCount++
				if e.opts.Config.StrictFK {
					return nil, orphanCount, considered, &strictFKError{table: t.Name}
				}
			}
			if !pass {
				continue
			}
			accepted, reservoirCount = e.accumulate(strat, accepted, reservoirCount, row)
		}
	}
	return accepted, orphanCount, considered, nil
}

// accumulate applies strat's retention rule to one already-passed row.
// Reservoir sampling uses Algorithm R: the first ReservoirSize rows
// fill the reservoir directly, every row after that replaces a
// uniformly chosen existing slot with probability ReservoirSize/i.
func (e *Engine) accumulate(strat Strategy, accepted []core.RowExtractionResult, reservoirCount int, row core.RowExtractionResult) ([]core.RowExtractionResult, int) {
	switch strat.Kind {
	case StrategyReservoir:
		reservoirCount++
		if strat.ReservoirSize <= 0 {
			return accepted, reservoirCount
		}
		if reservoirCount <= strat.ReservoirSize {
			accepted = append(accepted, row)
			return accepted, reservoirCount
		}
		if j := e.rng.Intn(reservoirCount); j < strat.ReservoirSize {
			accepted[j] = row
		}
		return accepted, reservoirCount

	case StrategyPercent:
		if strat.Percent > 0 && e.rng.Float64()*100 < strat.Percent {
			accepted = append(accepted, row)
		}
		return accepted, reservoirCount

	default: // IncludeAll, MatchesTenant, MatchesSelectedParent: evaluate already filtered
		return append(accepted, row), reservoirCount
	}
}

// evaluate reports whether row passes strat, and whether it was
// rejected specifically because of a missing FK match (an orphan, only
// meaningful for StrategyMatchesSelectedParent).
func (e *Engine) evaluate(t *core.Table, strat Strategy, row core.RowExtractionResult) (pass, orphan bool) {
	switch strat.Kind {
	case StrategyIncludeAll, StrategyPercent, StrategyReservoir:
		return true, false

	case StrategyMatchesTenant:
		if int(strat.TenantColumn) >= len(row.Values) || int(strat.TenantColumn) >= len(t.Columns) {
			return false, false
		}
		col := t.Columns[strat.TenantColumn]
		want := parseConfigValue(e.opts.TenantValue, col)
		got := row.Values[strat.TenantColumn]
		return got.Equal(want), false

	case StrategyMatchesSelectedParent:
		return e.checkForeignKeys(t, row, strat.ORSemantics)

	default: // StrategySkip
		return false, false
	}
}

// checkForeignKeys validates row's FK tuples against the membership
// store of already-selected parent rows. orMode (junctions) requires
// at least one matching FK; the default (tenant-dependents) requires
// every resolved, non-cyclic FK to match. A null FK tuple carries no
// constraint and is skipped (spec §3/§4.9).
func (e *Engine) checkForeignKeys(t *core.Table, row core.RowExtractionResult, orMode bool) (pass, orphan bool) {
	relevant := 0
	matched := 0
	for _, fk := range t.ForeignKeys {
		if !fk.ReferencedTableKnown {
			continue
		}
		if e.cyclicSet[t.ID] && e.cyclicSet[fk.ReferencedTableID] {
			continue
		}
		tuple := findFKTuple(row, fk)
		if tuple == nil {
			continue
		}
		relevant++
		parent := e.schema.Table(fk.ReferencedTableID)
		if e.members.Contains(parent.Name, *tuple) {
			matched++
		} else if !orMode {
			return false, true
		}
	}
	if relevant == 0 {
		return true, false
	}
	if orMode {
		return matched > 0, matched == 0
	}
	return true, false
}

func findFKTuple(row core.RowExtractionResult, fk *core.ForeignKey) *core.PKTuple {
	for i := range row.FKs {
		if row.FKs[i].Ref.FK == fk {
			return &row.FKs[i].Tuple
		}
	}
	return nil
}
