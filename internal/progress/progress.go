// Package progress defines the progress-bar rendering seam: displaying
// bytes-consumed-so-far during a long-running scan. Rendering is an
// explicit external collaborator per spec §1 (a terminal progress-bar
// library) and is never implemented here — only the interface a
// renderer must satisfy and the byte-count source it reads from.
package progress

// Source is anything that reports a monotonic count of bytes processed
// so far; *reader.Reader satisfies this via its Consumed method.
type Source interface {
	Consumed() uint64
}

// Reporter renders progress against a known or unknown total size.
// total is 0 when the input size can't be determined in advance (e.g. a
// piped, non-seekable stream).
type Reporter interface {
	// Start begins rendering against src, whose total size (in bytes) is
	// total, or 0 if unknown.
	Start(src Source, total uint64)

	// Tick is called periodically while the scan is in progress.
	Tick()

	// Finish stops rendering, e.g. clearing the bar or printing a final
	// line.
	Finish()
}
