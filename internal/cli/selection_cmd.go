package cli

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"

	"dumpkit/internal/config"
	"dumpkit/internal/core"
	"dumpkit/internal/graph"
	"dumpkit/internal/reader"
	"dumpkit/internal/selection"
	"dumpkit/internal/statuslog"
	"dumpkit/internal/tablesplit"
)

// resolveSeed returns cfg.Seed's value if the config file or --seed set one,
// otherwise draws 63 bits of entropy and reports the draw so the run
// can be reproduced with --seed (spec §4.9/§6).
func resolveSeed(cfg config.Config, log *statuslog.Logger) int64 {
	if cfg.Seed != nil {
		return int64(*cfg.Seed)
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Warn("failed to draw a random seed, falling back to 1: %v", err)
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]) >> 1)
	log.Step("no seed configured, drew %d (pass --seed %d to reproduce this run)", seed, seed)
	return seed
}

// runSelection drives the shared sample/shard pipeline: build the
// schema, the FK graph, and a per-table split, then run the selection
// engine and write its output (prefixed by the schema DDL, which the
// engine itself never emits) to outPath.
func runSelection(log *statuslog.Logger, path string, dialect core.Dialect, mode selection.Mode, cfg config.Config, tenantValue string, outPath string) (*selection.Report, error) {
	log.Step("reading schema from %s (%s)", path, dialect)
	sr, err := buildSchema(path, dialect)
	if err != nil {
		return nil, err
	}
	for _, f := range sr.Findings {
		log.Warn("%s: %s", f.Table, f.Message)
	}

	g := graph.Build(sr.Schema)

	splitDir, err := os.MkdirTemp("", "dumpkit-split-")
	if err != nil {
		return nil, fmt.Errorf("creating split scratch directory: %w", err)
	}
	defer os.RemoveAll(splitDir)

	log.Step("splitting %s into per-table files", path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	rd, err := reader.Open(path, info.Size(), reader.NewRegistry())
	if err != nil {
		return nil, err
	}
	manifest, err := tablesplit.Split(newByteSource(rd), dialect, splitDir)
	rd.Close()
	if err != nil {
		return nil, err
	}

	seed := resolveSeed(cfg, log)
	engine, err := selection.NewEngine(sr.Schema, g, manifest, dialect, selection.Options{
		Mode:        mode,
		Config:      cfg,
		TenantValue: tenantValue,
		Seed:        seed,
	})
	if err != nil {
		return nil, err
	}

	out, closeOut, err := openOutput(outPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeOut() }()

	if len(sr.DDLBytes) > 0 {
		if _, err := out.Write(sr.DDLBytes); err != nil {
			return nil, fmt.Errorf("writing schema DDL to output: %w", err)
		}
	}

	log.Step("selecting rows")
	rep, err := engine.Run(out)
	if err != nil {
		return nil, err
	}
	if rep.Halted {
		log.Warn("run halted early: %s", rep.HaltReason)
	}
	var totalSelected int
	for _, tr := range rep.Tables {
		totalSelected += tr.Selected
	}
	log.Summary("%d table(s) processed, %d row(s) selected", len(rep.Tables), totalSelected)
	return rep, nil
}
