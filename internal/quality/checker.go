// Package quality reports missing values, storage types and duplicate rows
// of a dataset.Table, and produces a cleaned copy of it.
package quality

import (
	"encoding/json"

	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/utils"
)

// Checker inspects a single table. It never modifies the table it wraps.
type Checker struct {
	t *dataset.Table
}

// New returns a Checker over t.
func New(t *dataset.Table) *Checker { return &Checker{t: t} }

// MissingReport maps each column to its null count.
func (c *Checker) MissingReport() map[string]int {
	out := make(map[string]int, c.t.NumColumns())
	for _, col := range c.t.Columns() {
		out[col.Name] = col.NullCount()
	}
	return out
}

// DtypeReport maps each column to its storage type label.
func (c *Checker) DtypeReport() map[string]string {
	out := make(map[string]string, c.t.NumColumns())
	for _, col := range c.t.Columns() {
		out[col.Name] = col.Storage.String()
	}
	return out
}

// DuplicateCount counts rows equal to some earlier row across all columns.
func (c *Checker) DuplicateCount() int {
	seen := make(map[string]struct{}, c.t.NumRows())
	dups := 0
	for i := 0; i < c.t.NumRows(); i++ {
		k := c.t.RowKey(i)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// FixData drops every row holding a null, then every row that repeats an
// earlier one. Surviving rows keep their relative order and columns keep
// their storage types.
func (c *Checker) FixData() *dataset.Table {
	cols := c.t.Columns()
	keep := make([]int, 0, c.t.NumRows())
	seen := make(map[string]struct{}, c.t.NumRows())
rows:
	for i := 0; i < c.t.NumRows(); i++ {
		for _, col := range cols {
			if col.Values[i].IsNull() {
				continue rows
			}
		}
		k := c.t.RowKey(i)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	return c.t.SelectRows(keep)
}

// Report gathers the three reports in one document.
func (c *Checker) Report() *Report {
	return &Report{
		Columns:       c.t.Names(),
		MissingValues: c.MissingReport(),
		DataTypes:     c.DtypeReport(),
		Duplicates:    c.DuplicateCount(),
	}
}

// Report is the quality summary of a table.
type Report struct {
	Columns       []string
	MissingValues map[string]int
	DataTypes     map[string]string
	Duplicates    int
}

// MarshalJSON keeps the per-column maps in column order.
func (r Report) MarshalJSON() ([]byte, error) {
	missing, err := utils.OrderedObject(r.Columns, func(k string) any { return r.MissingValues[k] })
	if err != nil {
		return nil, err
	}
	dtypes, err := utils.OrderedObject(r.Columns, func(k string) any { return r.DataTypes[k] })
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		MissingValues json.RawMessage `json:"missing_values"`
		DataTypes     json.RawMessage `json:"data_types"`
		Duplicates    int             `json:"duplicates"`
	}{missing, dtypes, r.Duplicates})
}
