// Package redact defines the value-generation seam the redact command
// sits on top of. Value generation (deterministic fakes, format-
// preserving substitution, etc.) is an explicit external collaborator
// per spec §1 and is never implemented here — only the interface a
// generator must satisfy to plug into dumpkit's row pipeline.
package redact

import "dumpkit/internal/core"

// Generator produces a replacement value for one column during a redact
// pass. Implementations decide how to fake or mask data; dumpkit only
// calls through this interface.
type Generator interface {
	// Generate returns the replacement for original, given the column it
	// belongs to. Implementations may use original's content (e.g. to
	// preserve format) or ignore it entirely.
	Generate(column *core.Column, original core.PKValue) (core.PKValue, error)
}
