package core

import "strings"

// TableID is a dense, insertion-order index identifying a table.
type TableID uint32

// ColumnID is a table-local, positional dense index identifying a
// column within its owning table.
type ColumnID uint16

// ColumnType is the closed enumeration of column types the schema model
// understands. Mapping from a dialect-specific declared type is lossy
// and deliberately so; Other preserves the raw spelling.
type ColumnType int

const (
	TypeOther ColumnType = iota
	TypeInt
	TypeBigInt
	TypeText
	TypeUUID
	TypeDecimal
	TypeDateTime
	TypeBool
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeBigInt:
		return "BigInt"
	case TypeText:
		return "Text"
	case TypeUUID:
		return "Uuid"
	case TypeDecimal:
		return "Decimal"
	case TypeDateTime:
		return "DateTime"
	case TypeBool:
		return "Bool"
	default:
		return "Other"
	}
}

// typeTable is the closed mapping from a lowercased, size-stripped
// declared type to the ColumnType enumeration (spec §4.5).
var typeTable = map[string]ColumnType{
	"int": TypeInt, "integer": TypeInt, "smallint": TypeInt, "tinyint": TypeInt,
	"mediumint": TypeInt, "int2": TypeInt, "int4": TypeInt, "serial": TypeInt,
	"bigint": TypeBigInt, "bigserial": TypeBigInt, "int8": TypeBigInt,

	"varchar": TypeText, "char": TypeText, "text": TypeText, "tinytext": TypeText,
	"mediumtext": TypeText, "longtext": TypeText, "nvarchar": TypeText,
	"nchar": TypeText, "ntext": TypeText, "character": TypeText,
	"character varying": TypeText, "citext": TypeText,

	"uuid": TypeUUID, "uniqueidentifier": TypeUUID,

	"decimal": TypeDecimal, "numeric": TypeDecimal, "float": TypeDecimal,
	"double": TypeDecimal, "double precision": TypeDecimal, "real": TypeDecimal,
	"money": TypeDecimal,

	"datetime": TypeDateTime, "timestamp": TypeDateTime, "date": TypeDateTime,
	"time": TypeDateTime, "timestamptz": TypeDateTime,
	"timestamp with time zone": TypeDateTime,
	"timestamp without time zone": TypeDateTime, "datetime2": TypeDateTime,
	"smalldatetime": TypeDateTime, "year": TypeDateTime,

	"bool": TypeBool, "boolean": TypeBool, "bit": TypeBool,
}

// ClassifyColumnType maps a dialect-specific declared type string (e.g.
// "varchar(255)" or "DECIMAL(10,2) UNSIGNED") to the closed ColumnType
// enumeration, lowercasing and stripping any parenthesised size first.
// Anything left unmatched lands in TypeOther, with raw preserving the
// original spelling.
func ClassifyColumnType(declared string) (t ColumnType, raw string) {
	raw = strings.TrimSpace(declared)
	lower := strings.ToLower(raw)
	if i := strings.IndexByte(lower, '('); i >= 0 {
		if j := strings.IndexByte(lower[i:], ')'); j >= 0 {
			lower = lower[:i] + lower[i+j+1:]
		} else {
			lower = lower[:i]
		}
	}
	lower = strings.Join(strings.Fields(lower), " ")
	// Keep only the first token for compound declarations with trailing
	// modifiers dumpkit doesn't need to classify (UNSIGNED, ZEROFILL, ...),
	// but try the full lowered string first since some types are two words
	// ("double precision", "character varying").
	if ct, ok := typeTable[lower]; ok {
		return ct, raw
	}
	firstWord := lower
	if i := strings.IndexByte(lower, ' '); i >= 0 {
		firstWord = lower[:i]
	}
	if ct, ok := typeTable[firstWord]; ok {
		return ct, raw
	}
	return TypeOther, raw
}

// Column describes one column of a table.
type Column struct {
	Name         string
	Type         ColumnType
	TypeRaw      string
	Ordinal      ColumnID
	IsPrimaryKey bool
	IsNullable   bool
}

// ForeignKey describes one foreign-key constraint.
type ForeignKey struct {
	Name string // optional, "" if unnamed

	OwningColumns     []ColumnID // resolved against the owning table
	OwningColumnNames []string   // pre-resolution, as spelled in the DDL

	ReferencedTable   string // as spelled in the DDL
	ReferencedColumns []string

	ReferencedTableID    TableID
	ReferencedTableKnown bool // false until the resolution pass succeeds
}

// IndexColumn is one column participating in an index, with its own
// sort order (spec treats indexes as name-based; order defaults to
// ascending when the DDL doesn't say).
type IndexColumn struct {
	Name  string
	Order SortOrder
}

type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
)

// Index describes one secondary index.
type Index struct {
	Name      string
	Columns   []IndexColumn
	IsUnique  bool
	IndexType string // optional, e.g. "BTREE", "HASH", ""
}

// Table is one table's reconstructed schema.
type Table struct {
	Name       string
	ID         TableID
	Columns    []*Column
	PrimaryKey []ColumnID
	ForeignKeys []*ForeignKey
	Indexes    []*Index
	RawDDL     string // optional, the raw CREATE TABLE text
}

// FindColumn looks up a column by name, case-insensitively.
func (t *Table) FindColumn(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// FindIndex looks up an index by name, case-insensitively.
func (t *Table) FindIndex(name string) *Index {
	for _, idx := range t.Indexes {
		if strings.EqualFold(idx.Name, name) {
			return idx
		}
	}
	return nil
}

// IsPrimaryKeyColumn reports whether id is one of the table's PK
// columns.
func (t *Table) IsPrimaryKeyColumn(id ColumnID) bool {
	for _, pk := range t.PrimaryKey {
		if pk == id {
			return true
		}
	}
	return false
}

// Schema is the full reconstructed database schema: a case-insensitive
// name-to-identifier map plus the table schemas it indexes.
type Schema struct {
	namesLower map[string]TableID
	names      map[string]TableID // exact-case, tried first
	Tables     []*Table            // indexed by TableID
}

// NewSchema returns an empty schema ready for incremental table
// registration.
func NewSchema() *Schema {
	return &Schema{
		namesLower: make(map[string]TableID),
		names:      make(map[string]TableID),
	}
}

// AddTable registers a new table, assigning it the next insertion-order
// TableID. Returns false if a case-insensitively equal name already
// exists (spec invariant: no two tables share a case-insensitively
// equal name).
func (s *Schema) AddTable(t *Table) bool {
	if _, exists := s.Lookup(t.Name); exists {
		return false
	}
	t.ID = TableID(len(s.Tables))
	s.Tables = append(s.Tables, t)
	s.names[t.Name] = t.ID
	s.namesLower[strings.ToLower(t.Name)] = t.ID
	return true
}

// Lookup resolves a table name to its identifier, trying an exact match
// first and then a lowercase fold (spec §3).
func (s *Schema) Lookup(name string) (TableID, bool) {
	if id, ok := s.names[name]; ok {
		return id, true
	}
	id, ok := s.namesLower[strings.ToLower(name)]
	return id, ok
}

// Table returns the table schema for id, or nil if out of range.
func (s *Schema) Table(id TableID) *Table {
	if int(id) < 0 || int(id) >= len(s.Tables) {
		return nil
	}
	return s.Tables[id]
}

// TableByName resolves a name and returns its schema, or nil.
func (s *Schema) TableByName(name string) *Table {
	id, ok := s.Lookup(name)
	if !ok {
		return nil
	}
	return s.Table(id)
}

// ResolveForeignKeys runs the FK-resolution pass (spec §4.5): links
// each unresolved FK's referenced-table name to a table identifier, or
// leaves it unresolved. Must run once, after all CREATE/ALTER
// statements have been consumed.
func (s *Schema) ResolveForeignKeys() {
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			if id, ok := s.Lookup(fk.ReferencedTable); ok {
				fk.ReferencedTableID = id
				fk.ReferencedTableKnown = true
			}
		}
	}
}
