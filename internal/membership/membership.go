// Package membership implements the PK/FK membership store (C10): two
// modes, a full-tuple set for the selection engine's FK checks and a
// 64-bit hash set for the differ's pk_hash/row_digest_hash bookkeeping,
// both sharing the same per-table/global cap and truncation policy
// (spec §4.10).
package membership

import (
	"encoding/binary"
	"hash/maphash"

	"dumpkit/internal/core"
)

// Default caps, used when a caller doesn't override them (spec §6).
const (
	DefaultPerTableCap uint64 = 5_000_000
	DefaultGlobalCap   uint64 = 10_000_000
)

// capTracker implements the cap/truncation bookkeeping shared by
// TupleStore and HashStore: on first exceeding either cap for a table,
// that table is marked truncated (further inserts are counted but not
// retained); on first exceeding the global cap, every table tracked so
// far is marked truncated.
type capTracker struct {
	perTableCap uint64
	globalCap   uint64

	globalCount     uint64
	globalTruncated bool

	tableCounts map[string]uint64
	truncated   map[string]bool
}

func newCapTracker(perTableCap, globalCap uint64) capTracker {
	if perTableCap == 0 {
		perTableCap = DefaultPerTableCap
	}
	if globalCap == 0 {
		globalCap = DefaultGlobalCap
	}
	return capTracker{
		perTableCap: perTableCap,
		globalCap:   globalCap,
		tableCounts: make(map[string]uint64),
		truncated:   make(map[string]bool),
	}
}

// admit records one more attempted insert for table and reports whether
// it may actually be retained.
func (c *capTracker) admit(table string) bool {
	c.globalCount++
	c.tableCounts[table]++

	if c.globalTruncated {
		return false
	}
	if c.globalCount > c.globalCap {
		c.globalTruncated = true
		for t := range c.tableCounts {
			c.truncated[t] = true
		}
		return false
	}
	if c.truncated[table] {
		return false
	}
	if c.tableCounts[table] > c.perTableCap {
		c.truncated[table] = true
		return false
	}
	return true
}

// IsTruncated reports whether table's store has been dropped. A
// truncated table's lookups must return "present" to the caller to
// avoid spurious FK-orphan errors (spec §4.9/§4.10).
func (c *capTracker) IsTruncated(table string) bool {
	return c.globalTruncated || c.truncated[table]
}

// Count returns the number of inserts attempted for table so far
// (retained or not), for reporting.
func (c *capTracker) Count(table string) uint64 {
	return c.tableCounts[table]
}

// encodeTuple serialises a PKTuple as arity, then per component a
// discriminant byte and the value, length-prefixing text so no two
// distinct tuples can collide on the encoded bytes (spec/DESIGN: the
// same discipline `original_source/src/pk.rs` uses before hashing).
func encodeTuple(tuple core.PKTuple) []byte {
	buf := make([]byte, 0, 1+len(tuple)*9)
	buf = append(buf, byte(len(tuple)))
	for _, v := range tuple {
		buf = append(buf, byte(v.Kind))
		switch v.Kind {
		case core.PKInt:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v.Int))
		case core.PKBigInt:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v.Big))
		case core.PKText:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.Text)))
			buf = append(buf, v.Text...)
		}
	}
	return buf
}

// TupleStore stores full PK tuples per table and supports exact-tuple
// membership lookup, the mode the selection engine uses to validate a
// child row's FK tuple against its parent's selected PKs.
type TupleStore struct {
	capTracker
	tables map[string]map[string]struct{}
}

// NewTupleStore returns an empty tuple-set store. A zero cap uses the
// package default.
func NewTupleStore(perTableCap, globalCap uint64) *TupleStore {
	return &TupleStore{
		capTracker: newCapTracker(perTableCap, globalCap),
		tables:     make(map[string]map[string]struct{}),
	}
}

// Insert records tuple as present for table. Tuples with a Null
// component must never be passed here (callers filter them at
// extraction time, per spec §3); Insert is a no-op for one regardless.
func (s *TupleStore) Insert(table string, tuple core.PKTuple) {
	if tuple.HasNull() {
		return
	}
	if !s.admit(table) {
		return
	}
	set, ok := s.tables[table]
	if !ok {
		set = make(map[string]struct{})
		s.tables[table] = set
	}
	set[string(encodeTuple(tuple))] = struct{}{}
}

// Contains reports whether tuple was inserted for table, or whether
// table's store has been truncated (in which case every lookup is
// conservatively "present").
func (s *TupleStore) Contains(table string, tuple core.PKTuple) bool {
	if s.IsTruncated(table) {
		return true
	}
	set, ok := s.tables[table]
	if !ok {
		return false
	}
	_, found := set[string(encodeTuple(tuple))]
	return found
}

// HashStore stores 64-bit pk-hash -> row-digest-hash pairs per table,
// the mode the differ uses for its second pass (spec §4.10/§4.11):
// membership without the memory cost of retaining full tuples.
type HashStore struct {
	capTracker
	seed   maphash.Seed
	tables map[string]map[uint64]uint64
}

// NewHashStore returns an empty hash-set store with a fresh seed (the
// seed only needs to be consistent within one store's lifetime, never
// across runs).
func NewHashStore(perTableCap, globalCap uint64) *HashStore {
	return &HashStore{
		capTracker: newCapTracker(perTableCap, globalCap),
		seed:       maphash.MakeSeed(),
		tables:     make(map[string]map[uint64]uint64),
	}
}

// HashTuple hashes a PK tuple to the store's 64-bit key space.
func (s *HashStore) HashTuple(tuple core.PKTuple) uint64 {
	return s.hashBytes(encodeTuple(tuple))
}

// HashValues hashes an arbitrary ordered slice of values (the differ
// uses it as a row digest over every non-ignored column), using the
// same arity-then-discriminant-then-value discipline as tuple hashing.
func (s *HashStore) HashValues(values []core.PKValue) uint64 {
	return s.hashBytes(encodeTuple(core.PKTuple(values)))
}

func (s *HashStore) hashBytes(b []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.Write(b)
	return h.Sum64()
}

// Insert records digestHash under pkHash for table.
func (s *HashStore) Insert(table string, pkHash, digestHash uint64) {
	if !s.admit(table) {
		return
	}
	m, ok := s.tables[table]
	if !ok {
		m = make(map[uint64]uint64)
		s.tables[table] = m
	}
	m[pkHash] = digestHash
}

// Get looks up pkHash for table, reporting its digest hash and whether
// it was found. When table's store is truncated, Get always reports
// found=true (present) with a zero digest, since no reliable digest
// survives truncation; callers should check IsTruncated separately
// before trusting the digest for a modified/unmodified decision.
func (s *HashStore) Get(table string, pkHash uint64) (digestHash uint64, found bool) {
	if s.IsTruncated(table) {
		return 0, true
	}
	m, ok := s.tables[table]
	if !ok {
		return 0, false
	}
	d, ok := m[pkHash]
	return d, ok
}

// Keys returns every pk-hash currently retained for table, for the
// differ's added/removed/modified sweep. Order is unspecified.
func (s *HashStore) Keys(table string) []uint64 {
	m := s.tables[table]
	if len(m) == 0 {
		return nil
	}
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
