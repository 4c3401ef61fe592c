package shroud

import "fmt"

// ColumnKind is the inferred schema type of a column.
// Cells are always carried as strings; the kind is informational.
type ColumnKind string

const (
	KindString  ColumnKind = "string"
	KindInteger ColumnKind = "integer"
	KindFloat   ColumnKind = "float"
	KindBool    ColumnKind = "bool"
	KindTime    ColumnKind = "time"
)

// Column describes one column of a Table.
type Column struct {
	Name string     `json:"name" yaml:"name" msgpack:"name"`
	Kind ColumnKind `json:"kind,omitempty" yaml:"kind,omitempty" msgpack:"kind,omitempty"`
}

// Cell is a nullable string value. Valid is false for null.
type Cell struct {
	Value string `json:"value" yaml:"value" msgpack:"value"`
	Valid bool   `json:"valid" yaml:"valid" msgpack:"valid"`
}

// Str returns a non-null cell.
func Str(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Null returns a null cell.
func Null() Cell {
	return Cell{}
}

// Empty reports whether the cell is null or holds the empty string.
func (c Cell) Empty() bool {
	return !c.Valid || c.Value == ""
}

// Table is an in-memory tabular record set.
//
// Rows are positional: Rows[i][j] is the value of Columns[j] in row i.
// Privacy records the transforms that produced this representation.
type Table struct {
	Name    string          `json:"name" yaml:"name" msgpack:"name"`
	Columns []Column        `json:"columns" yaml:"columns" msgpack:"columns"`
	Rows    [][]Cell        `json:"rows" yaml:"rows" msgpack:"rows"`
	Privacy PrivacyMetadata `json:"privacy" yaml:"privacy" msgpack:"privacy"`
}

// NewTable creates a raw table with the given columns.
func NewTable(name string, columns ...Column) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Privacy: PrivacyMetadata{Mode: ModeRaw},
	}
}

// Append adds a row. The row length must match the column count.
func (t *Table) Append(cells ...Cell) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d cells, want %d", t.Name, len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, cells)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Mode returns the table's privacy mode, treating an unset mode as raw.
func (t *Table) Mode() PrivacyMode {
	if t.Privacy.Mode == "" {
		return ModeRaw
	}
	return t.Privacy.Mode
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Get returns the cell at row i in the named column.
func (t *Table) Get(i int, column string) (Cell, bool) {
	j := t.ColumnIndex(column)
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return Cell{}, false
	}
	return t.Rows[i][j], true
}

// Clone returns a deep copy where modifications to the clone
// do not affect the original.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	clone := &Table{
		Name:    t.Name,
		Columns: make([]Column, len(t.Columns)),
		Rows:    make([][]Cell, len(t.Rows)),
		Privacy: t.Privacy.Clone(),
	}
	copy(clone.Columns, t.Columns)
	for i, row := range t.Rows {
		clone.Rows[i] = make([]Cell, len(row))
		copy(clone.Rows[i], row)
	}
	return clone
}
