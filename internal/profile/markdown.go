package profile

import (
	"fmt"
	"strings"
)

// Markdown renders a compact report suitable for prompts or standalone docs.
func (d *DatasetProfile) Markdown(name string) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", d.Overview.NumRows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", d.Overview.NumColumns))

	b.WriteString("[SCHEMA]\n")
	for _, col := range d.Overview.Columns {
		cp := d.ColumnAnalysis[col]
		missPct := 0.0
		if d.Overview.NumRows > 0 {
			missPct = float64(cp.Missing) * 100.0 / float64(d.Overview.NumRows)
		}
		b.WriteString(fmt.Sprintf("- %s: %s [%s] (missing %d, %.1f%%)",
			safeName(col), cp.Type, d.Overview.DataTypes[col], cp.Missing, missPct))
		switch s := cp.Stats.(type) {
		case *NumericStats:
			b.WriteString(fmt.Sprintf("; min %s, max %s, mean %s, median %s, std %s",
				fmtFloat(s.Min), fmtFloat(s.Max), fmtFloat(s.Mean), fmtFloat(s.Median), fmtFloat(s.Std)))
		case *DatetimeStats:
			if s.Min != nil && s.Max != nil && s.RangeDays != nil {
				b.WriteString(fmt.Sprintf("; %s to %s (%d days)", *s.Min, *s.Max, *s.RangeDays))
			}
		case *CategoricalStats:
			if len(s.TopValues) > 0 {
				b.WriteString("; top: ")
				for i, kv := range s.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if s.UniqueCount > len(s.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", s.UniqueCount))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func fmtFloat(f Float) string {
	if !f.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", f.Value)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
