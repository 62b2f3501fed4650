// Package reader implements the byte reader (C1): a buffered, forward-only
// source over a dump file that may be plain, gzip, bzip2, xz, or zstd,
// reporting bytes consumed for progress.
package reader

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

const (
	defaultBufferSize = 64 * 1024
	largeBufferSize   = 256 * 1024
	largeFileThreshold = 1 << 30 // 1 GiB
)

// Decompressor wraps a raw byte stream into a decompressed one. gzip and
// bzip2 are wired directly from the standard library; xz and zstd are
// external collaborators per spec §1 and are reached only through this
// interface — dumpkit does not implement them itself (see DESIGN.md).
type Decompressor interface {
	// Name identifies the codec, for error messages ("xz", "zstd", ...).
	Name() string
	// Wrap returns a reader that decompresses r. It may return an error
	// immediately if the stream header is malformed.
	Wrap(r io.Reader) (io.Reader, error)
}

// Registry maps a file extension (without the leading dot, lowercase)
// to a Decompressor. Callers may register xz/zstd adapters here; gzip
// and bzip2 are always available and cannot be overridden.
type Registry struct {
	extra map[string]Decompressor
}

// NewRegistry returns a registry with no external codecs registered.
func NewRegistry() *Registry {
	return &Registry{extra: make(map[string]Decompressor)}
}

// Register adds an external decompressor for the given extension
// ("xz", "zst").
func (r *Registry) Register(ext string, d Decompressor) {
	r.extra[strings.ToLower(ext)] = d
}

// Reader is the pull-style byte source used by every command. It is not
// safe for concurrent use; the progress-bar seam (§5) reads only the
// atomic counter, never the reader itself.
type Reader struct {
	br       *bufio.Reader
	consumed atomic.Uint64
	closer   io.Closer
}

// Open opens path, selecting a decompression codec from its extension
// (.gz, .bz2, .xz, .zst) or treating it as plain text otherwise. size,
// if known (0 if not), scales the internal buffer from 64 KiB to 256
// KiB once the uncompressed size is expected to exceed 1 GiB.
func Open(path string, size int64, reg *Registry) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	var src io.Reader = f
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "gz", "gzip":
		gr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("malformed gzip stream in %s: %w", path, err)
		}
		src = gr
	case "bz2", "bzip2":
		src = bzip2.NewReader(f)
	case "xz", "zst", "zstd":
		if reg == nil {
			_ = f.Close()
			return nil, fmt.Errorf("no decompressor registered for .%s (external codec not wired)", ext)
		}
		d, ok := reg.extra[ext]
		if !ok {
			_ = f.Close()
			return nil, fmt.Errorf("no decompressor registered for .%s", ext)
		}
		wrapped, err := d.Wrap(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("malformed %s stream in %s: %w", d.Name(), path, err)
		}
		src = wrapped
	}

	bufSize := defaultBufferSize
	if size > largeFileThreshold {
		bufSize = largeBufferSize
	}

	rd := &Reader{closer: f}
	cr := &countingReader{r: src, counter: &rd.consumed}
	rd.br = bufio.NewReaderSize(cr, bufSize)
	return rd, nil
}

// countingReader wraps an io.Reader and accumulates bytes read into an
// atomic counter, the only state the progress-bar seam (§5) touches.
type countingReader struct {
	r       io.Reader
	counter *atomic.Uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.counter != nil {
		c.counter.Add(uint64(n))
	}
	return n, err
}

// ReadByte reads a single byte, satisfying io.ByteReader for the
// splitter's byte-at-a-time scan.
func (r *Reader) ReadByte() (byte, error) {
	return r.br.ReadByte()
}

// Peek returns the next n bytes without advancing, for lookahead (e.g.
// detecting a dollar-quote tag or a GO batch separator).
func (r *Reader) Peek(n int) ([]byte, error) {
	return r.br.Peek(n)
}

// Read satisfies io.Reader for callers (like the dialect detector) that
// want a bulk sample rather than byte-at-a-time scanning.
func (r *Reader) Read(p []byte) (int, error) {
	return r.br.Read(p)
}

// Consumed returns the monotonic count of bytes read so far, safe to
// read concurrently from a progress-bar renderer (spec §5).
func (r *Reader) Consumed() uint64 {
	return r.consumed.Load()
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
