package profile

import (
	"strings"
	"time"

	"github.com/KaramelBytes/dataprof/internal/dataset"
)

// CategoricalThreshold is the distinct-value count at which a non-numeric,
// non-datetime column stops being categorical and becomes text.
const CategoricalThreshold = 20

// datetimeLayouts are tried in order against the first present value; the
// first layout that fits is then required for every other value.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Infer classifies a column. The order of checks matters: numeric storage
// wins over datetime storage, and only the remaining columns are split into
// categorical or text by distinct count.
func Infer(col *dataset.Column) ColumnType {
	if col.Storage.IsNumeric() {
		return Numeric
	}
	if col.Storage == dataset.Datetime {
		return DatetimeType
	}
	if distinctCount(col) < CategoricalThreshold {
		return Categorical
	}
	return TextType
}

// resolveLayout returns the first layout that parses s.
func resolveLayout(s string) (string, bool) {
	for _, l := range datetimeLayouts {
		if _, err := time.Parse(l, s); err == nil {
			return l, true
		}
	}
	return "", false
}

// ParseDatetimeColumn tries to reread an object column as timestamps using a
// single layout resolved from its first present value. It returns a new
// column with datetime storage when every present value parses, and
// (nil, false) otherwise. Nulls are carried over untouched; an object column
// with no present values (a header-only input) converts trivially.
func ParseDatetimeColumn(col *dataset.Column) (*dataset.Column, bool) {
	if col.Storage != dataset.Object {
		return nil, false
	}
	layout := ""
	out := make([]dataset.RawValue, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			continue
		}
		if v.Kind != dataset.Text {
			return nil, false
		}
		s := strings.TrimSpace(v.Str)
		if layout == "" {
			l, ok := resolveLayout(s)
			if !ok {
				return nil, false
			}
			layout = l
		}
		ts, err := time.Parse(layout, s)
		if err != nil {
			return nil, false
		}
		out[i] = dataset.TimeValue(ts)
	}
	return &dataset.Column{Name: col.Name, Storage: dataset.Datetime, Values: out}, true
}

// PreparePass returns a table where every object column that reads cleanly
// as timestamps is replaced by its datetime form. The input is not modified.
func PreparePass(t *dataset.Table) *dataset.Table {
	out := t
	for _, c := range t.Columns() {
		if parsed, ok := ParseDatetimeColumn(c); ok {
			out = out.WithColumn(parsed)
		}
	}
	return out
}

func distinctCount(col *dataset.Column) int {
	seen := make(map[string]struct{})
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		seen[v.Key()] = struct{}{}
	}
	return len(seen)
}
