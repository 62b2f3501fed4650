// Package tablesplit implements the per-table splitter (C8): it reads a
// dump once and routes each statement to one append-mode file per
// discovered table, with a shared prelude file for statements that
// target no table (spec §4.8). The sampler and sharder (C9) stream
// these files back in dependency order instead of re-scanning the
// original dump once per table.
package tablesplit

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dumpkit/internal/classifier"
	"dumpkit/internal/core"
	"dumpkit/internal/splitter"
)

const preludeFileName = "_prelude.sql"

// Manifest describes the result of a split: where the per-table files
// and the shared prelude ended up, and the dialect they were split
// under (selection strategies and C7 parsing both need it).
type Manifest struct {
	Dir         string
	Dialect     core.Dialect
	PreludePath string
	TablePaths  map[string]string // table name -> file path, discovery order not preserved
	TableOrder  []string          // table names in first-seen order
}

// PathFor returns the file a table's statements were written to, and
// whether that table was seen at all.
func (m *Manifest) PathFor(table string) (string, bool) {
	p, ok := m.TablePaths[table]
	return p, ok
}

// Split reads src to exhaustion under dialect, classifying each
// statement (C3) and appending it to its target table's file (creating
// the file on first sight), or to the shared prelude file when the
// statement targets no table. COPY data blocks are written immediately
// after their header, to the same file. Whitespace-only emissions (such
// as the bytes after the final terminator) are not written anywhere.
func Split(src splitter.Source, dialect core.Dialect, dir string) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating split directory %s: %w", dir, err)
	}

	w, err := newWriter(dir)
	if err != nil {
		return nil, err
	}
	defer w.closeAll()

	sp := splitter.New(src, dialect)
	for {
		stmt, err := sp.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("splitting statement: %w", err)
		}
		if len(bytes.TrimSpace(stmt.Raw)) == 0 {
			continue
		}

		kind, table := classifier.Classify(stmt.Raw, dialect)
		stmt.Kind, stmt.Table = kind, table

		dest, err := w.fileFor(table)
		if err != nil {
			return nil, err
		}
		if err := writeStatement(dest, stmt.Raw); err != nil {
			return nil, fmt.Errorf("writing statement to %s: %w", dest.path, err)
		}

		if kind == core.Copy && dialect.SupportsCopy() {
			data, err := sp.NextCopyData()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("reading COPY data for %s: %w", table, err)
			}
			if err := writeStatement(dest, data.Raw); err != nil {
				return nil, fmt.Errorf("writing COPY data to %s: %w", dest.path, err)
			}
		}
	}

	if err := w.flushAll(); err != nil {
		return nil, err
	}
	m := w.manifest()
	m.Dialect = dialect
	return m, nil
}

// writeStatement appends raw to dest, ensuring it ends in exactly one
// trailing newline regardless of how the splitter terminated it (spec
// §4.8: "each statement terminated by the dialect's terminator plus a
// newline").
func writeStatement(dest *tableFile, raw []byte) error {
	if _, err := dest.w.Write(raw); err != nil {
		return err
	}
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		if _, err := dest.w.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	return nil
}

type tableFile struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// writer lazily opens one append-mode file per table name plus the
// shared prelude file, tracking discovery order for Manifest.TableOrder.
type writer struct {
	dir     string
	prelude *tableFile
	files   map[string]*tableFile
	order   []string
}

func newWriter(dir string) (*writer, error) {
	prelude, err := openTableFile(filepath.Join(dir, preludeFileName))
	if err != nil {
		return nil, err
	}
	return &writer{dir: dir, prelude: prelude, files: make(map[string]*tableFile)}, nil
}

func (w *writer) fileFor(table string) (*tableFile, error) {
	if table == "" {
		return w.prelude, nil
	}
	if tf, ok := w.files[table]; ok {
		return tf, nil
	}
	tf, err := openTableFile(filepath.Join(w.dir, sanitizeFileName(table)+".sql"))
	if err != nil {
		return nil, err
	}
	w.files[table] = tf
	w.order = append(w.order, table)
	return tf, nil
}

func openTableFile(path string) (*tableFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &tableFile{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (w *writer) flushAll() error {
	if err := w.prelude.w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", w.prelude.path, err)
	}
	for _, tf := range w.files {
		if err := tf.w.Flush(); err != nil {
			return fmt.Errorf("flushing %s: %w", tf.path, err)
		}
	}
	return nil
}

func (w *writer) closeAll() {
	_ = w.prelude.w.Flush()
	_ = w.prelude.f.Close()
	for _, tf := range w.files {
		_ = tf.w.Flush()
		_ = tf.f.Close()
	}
}

func (w *writer) manifest() *Manifest {
	paths := make(map[string]string, len(w.files))
	for name, tf := range w.files {
		paths[name] = tf.path
	}
	return &Manifest{
		Dir:         w.dir,
		PreludePath: w.prelude.path,
		TablePaths:  paths,
		TableOrder:  append([]string(nil), w.order...),
	}
}

// sanitizeFileName strips path separators from a table name so it can
// never escape the split directory, even for a maliciously-crafted
// dump. Quoted identifiers are already unquoted by the classifier by
// the time a name reaches here.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		name = "_unnamed"
	}
	return name
}
