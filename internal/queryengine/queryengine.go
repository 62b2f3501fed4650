// Package queryengine defines the analytic-query seam the query command
// sits on top of. Running SQL over a loaded dump is an explicit external
// collaborator per spec §1 (an embedded analytic database such as
// DuckDB) and is never implemented here — only the interface a backend
// must satisfy.
package queryengine

import "context"

// Row is one result row, column name to value, matching the backend's
// native type rather than dumpkit's PKValue (query results are not
// restricted to PK/FK columns).
type Row map[string]any

// Engine runs a read-only SQL query against a loaded dump and streams
// back its rows.
type Engine interface {
	// Load ingests a dump file so subsequent queries can reference its
	// tables.
	Load(ctx context.Context, path string) error

	// Query runs sql and returns every result row.
	Query(ctx context.Context, sql string) ([]Row, error)

	// Close releases any resources the engine is holding.
	Close() error
}
