package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
)

// WriteCSV writes the table with a header row. Nulls become empty fields.
// Whole numbers in float64 columns keep a trailing ".0" so a reload yields
// the same storage type.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range cols {
			rec[j] = formatCell(c.Storage, c.Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(st StorageType, v RawValue) string {
	if v.IsNull() {
		return ""
	}
	if st == Float64 && v.Kind == Number && v.Num == math.Trunc(v.Num) && !math.IsInf(v.Num, 0) {
		return formatNumber(v.Num) + ".0"
	}
	return v.String()
}
