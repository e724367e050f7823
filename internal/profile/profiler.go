// Package profile infers column types and computes per-type statistics for
// a dataset.Table.
//
// Everything here is pure: no I/O, no shared state. Callers may profile
// independent tables concurrently.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/utils"
)

// ColumnProfile is the analysis of one column. Stats holds exactly one of
// *NumericStats, *DatetimeStats or *CategoricalStats, selected by Type.
type ColumnProfile struct {
	Type    ColumnType
	Stats   any
	Missing int
}

// MarshalJSON emits {"type": ..., "stats": {..., "missing": n}}.
func (p ColumnProfile) MarshalJSON() ([]byte, error) {
	var stats any
	switch s := p.Stats.(type) {
	case *NumericStats:
		stats = struct {
			*NumericStats
			Missing int `json:"missing"`
		}{s, p.Missing}
	case *DatetimeStats:
		stats = struct {
			*DatetimeStats
			Missing int `json:"missing"`
		}{s, p.Missing}
	case *CategoricalStats:
		stats = struct {
			*CategoricalStats
			Missing int `json:"missing"`
		}{s, p.Missing}
	default:
		return nil, fmt.Errorf("profile: unexpected stats type %T", p.Stats)
	}
	return json.Marshal(struct {
		Type  ColumnType `json:"type"`
		Stats any        `json:"stats"`
	}{p.Type, stats})
}

// Overview describes the table as a whole.
type Overview struct {
	NumRows       int
	NumColumns    int
	Columns       []string
	MissingValues map[string]int
	DataTypes     map[string]string
}

func (o Overview) MarshalJSON() ([]byte, error) {
	missing, err := utils.OrderedObject(o.Columns, func(k string) any { return o.MissingValues[k] })
	if err != nil {
		return nil, err
	}
	dtypes, err := utils.OrderedObject(o.Columns, func(k string) any { return o.DataTypes[k] })
	if err != nil {
		return nil, err
	}
	cols := o.Columns
	if cols == nil {
		cols = []string{}
	}
	return json.Marshal(struct {
		NumRows       int             `json:"num_rows"`
		NumColumns    int             `json:"num_columns"`
		Columns       []string        `json:"columns"`
		MissingValues json.RawMessage `json:"missing_values"`
		DataTypes     json.RawMessage `json:"data_types"`
	}{o.NumRows, o.NumColumns, cols, missing, dtypes})
}

// DatasetProfile is the full profile document.
type DatasetProfile struct {
	Overview       Overview
	ColumnAnalysis map[string]ColumnProfile
}

func (d DatasetProfile) MarshalJSON() ([]byte, error) {
	analysis, err := utils.OrderedObject(d.Overview.Columns, func(k string) any { return d.ColumnAnalysis[k] })
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Overview       Overview        `json:"overview"`
		ColumnAnalysis json.RawMessage `json:"column_analysis"`
	}{d.Overview, analysis})
}

// ProfileColumn computes the statistics for col as the given type. The
// missing count does not depend on the type.
func ProfileColumn(col *dataset.Column, typ ColumnType) ColumnProfile {
	p := ColumnProfile{Type: typ, Missing: col.NullCount()}
	switch typ {
	case Numeric:
		p.Stats = numericStats(col)
	case DatetimeType:
		p.Stats = datetimeStats(col)
	default:
		p.Stats = categoricalStats(col)
	}
	return p
}

// ProfileTable runs the datetime pre-pass, inference and profiling over
// every column.
func ProfileTable(t *dataset.Table) *DatasetProfile {
	prepared := PreparePass(t)

	ov := Overview{
		NumRows:       prepared.NumRows(),
		NumColumns:    prepared.NumColumns(),
		Columns:       prepared.Names(),
		MissingValues: make(map[string]int, prepared.NumColumns()),
		DataTypes:     make(map[string]string, prepared.NumColumns()),
	}
	analysis := make(map[string]ColumnProfile, prepared.NumColumns())
	for _, c := range prepared.Columns() {
		ov.MissingValues[c.Name] = c.NullCount()
		ov.DataTypes[c.Name] = c.Storage.String()
		analysis[c.Name] = ProfileColumn(c, Infer(c))
	}
	return &DatasetProfile{Overview: ov, ColumnAnalysis: analysis}
}
