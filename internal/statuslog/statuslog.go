// Package statuslog prints human-readable progress lines to a status
// stream during a run: one line per pass boundary, one summary line at
// the end (spec §7), in the same spirit as the teacher's printInfo
// helper in cmd/smf/main.go.
package statuslog

import (
	"fmt"
	"io"
	"os"
)

// Logger writes status lines to an output stream, defaulting to stderr
// so stdout stays free for a command's primary output (a dump, a JSON
// report, etc.).
type Logger struct {
	w io.Writer
}

// New returns a Logger writing to os.Stderr.
func New() *Logger { return &Logger{w: os.Stderr} }

// NewTo returns a Logger writing to w, for tests and alternate targets.
func NewTo(w io.Writer) *Logger { return &Logger{w: w} }

// Step announces the start or completion of one pass boundary, e.g.
// "scanning old.sql for schema changes".
func (l *Logger) Step(format string, args ...any) {
	fmt.Fprintf(l.w, "==> %s\n", fmt.Sprintf(format, args...))
}

// Warn surfaces a non-fatal condition the run recovered from.
func (l *Logger) Warn(format string, args ...any) {
	fmt.Fprintf(l.w, "warning: %s\n", fmt.Sprintf(format, args...))
}

// Summary prints the final one-line result of a run.
func (l *Logger) Summary(format string, args ...any) {
	fmt.Fprintf(l.w, "%s\n", fmt.Sprintf(format, args...))
}
