package dataset

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StorageType is the raw, pre-inference storage kind of a column. The string
// labels follow pandas dtype names so reports line up with familiar tooling.
type StorageType uint8

const (
	Object StorageType = iota
	Int64
	Float64
	Datetime
)

func (s StorageType) String() string {
	switch s {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Datetime:
		return "datetime64[ns]"
	}
	return "object"
}

// IsNumeric reports whether every present value is stored as a number.
func (s StorageType) IsNumeric() bool { return s == Int64 || s == Float64 }

func (s StorageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Column is a named sequence of values sharing one storage type.
type Column struct {
	Name    string
	Storage StorageType
	Values  []RawValue
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Values) }

// NullCount counts missing values.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsNull() {
			n++
		}
	}
	return n
}

// Present returns the non-null values in row order.
func (c *Column) Present() []RawValue {
	out := make([]RawValue, 0, len(c.Values))
	for _, v := range c.Values {
		if !v.IsNull() {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	vals := make([]RawValue, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Storage: c.Storage, Values: vals}
}

// Table is a rectangular, ordered collection of uniquely named columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// AddColumn appends a column. The first column fixes the row count; later
// columns must match it and must not reuse a name.
func (t *Table) AddColumn(c *Column) error {
	if _, ok := t.index[c.Name]; ok {
		return &SchemaMismatchError{Column: c.Name, Reason: "duplicate column name"}
	}
	if len(t.cols) > 0 && c.Len() != t.rows {
		return &SchemaMismatchError{Column: c.Name, Want: t.rows, Got: c.Len(), Reason: "column length differs from table row count"}
	}
	if len(t.cols) == 0 {
		t.rows = c.Len()
	}
	t.index[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.cols) }

// Columns returns the columns in insertion order. Callers must not mutate them.
func (t *Table) Columns() []*Column { return t.cols }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) []RawValue {
	row := make([]RawValue, len(t.cols))
	for j, c := range t.cols {
		row[j] = c.Values[i]
	}
	return row
}

// RowKey encodes the i-th row for whole-row equality checks.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for j, c := range t.cols {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		k := c.Values[i].Key()
		// length prefix keeps separators inside text values from colliding
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

// SelectRows builds a new table holding only the given rows, in the given
// order. Storage types are carried over unchanged.
func (t *Table) SelectRows(rows []int) *Table {
	out := NewTable()
	out.rows = len(rows)
	for _, c := range t.cols {
		vals := make([]RawValue, len(rows))
		for k, i := range rows {
			vals[k] = c.Values[i]
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Storage: c.Storage, Values: vals})
	}
	return out
}

// WithColumn returns a shallow copy of the table where the named column is
// replaced by c. The receiver is left untouched.
func (t *Table) WithColumn(c *Column) *Table {
	out := &Table{index: make(map[string]int, len(t.index)), rows: t.rows}
	for i, old := range t.cols {
		if old.Name == c.Name {
			out.cols = append(out.cols, c)
		} else {
			out.cols = append(out.cols, old)
		}
		out.index[old.Name] = i
	}
	return out
}
