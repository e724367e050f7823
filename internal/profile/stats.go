package profile

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/utils"
	"gonum.org/v1/gonum/stat"
)

const (
	topValuesLimit    = 10
	sampleValuesLimit = 5
)

// Float is a statistic that may be undefined (no present values, or a
// non-finite result). Undefined values encode as JSON null.
type Float struct {
	Value float64
	Valid bool
}

// Defined wraps v, marking NaN and infinities as undefined.
func Defined(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float{}
	}
	return Float{Value: v, Valid: true}
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Defined(v)
	return nil
}

// Percentiles holds the quartiles of a numeric column.
type Percentiles struct {
	P25 Float `json:"p25"`
	P50 Float `json:"p50"`
	P75 Float `json:"p75"`
}

// NumericStats summarizes a numeric column over its present values.
type NumericStats struct {
	Min         Float       `json:"min"`
	Max         Float       `json:"max"`
	Mean        Float       `json:"mean"`
	Median      Float       `json:"median"`
	Std         Float       `json:"std"`
	Percentiles Percentiles `json:"percentiles"`
}

// DatetimeStats summarizes a datetime column. Fields are nil when the column
// has no present values.
type DatetimeStats struct {
	Min       *string `json:"min"`
	Max       *string `json:"max"`
	RangeDays *int    `json:"range_days"`
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string
	Count int
}

// TopValues is a frequency table that encodes as a JSON object preserving
// its order (most frequent first).
type TopValues []ValueCount

func (tv TopValues) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(tv))
	counts := make(map[string]int, len(tv))
	for i, e := range tv {
		keys[i] = e.Value
		counts[e.Value] = e.Count
	}
	return utils.OrderedObject(keys, func(k string) any { return counts[k] })
}

// CategoricalStats summarizes categorical and text columns.
type CategoricalStats struct {
	UniqueCount  int       `json:"unique_count"`
	TopValues    TopValues `json:"top_values"`
	SampleValues []string  `json:"sample_values"`
}

func numericStats(col *dataset.Column) *NumericStats {
	vals := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if v.Kind == dataset.Number {
			vals = append(vals, v.Num)
		}
	}
	s := &NumericStats{}
	if len(vals) == 0 {
		return s
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	s.Min = Defined(sorted[0])
	s.Max = Defined(sorted[len(sorted)-1])
	s.Mean = Defined(stat.Mean(vals, nil))
	s.Median = Defined(quantile(sorted, 0.5))
	if len(vals) > 1 {
		s.Std = Defined(stat.StdDev(vals, nil))
	}
	s.Percentiles = Percentiles{
		P25: Defined(quantile(sorted, 0.25)),
		P50: s.Median,
		P75: Defined(quantile(sorted, 0.75)),
	}
	return s
}

// quantile interpolates linearly between the closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	v := sorted[lo] + (sorted[hi]-sorted[lo])*w
	// clamp rounding drift so quartiles never leave [sorted[lo], sorted[hi]]
	return math.Min(math.Max(v, sorted[lo]), sorted[hi])
}

func datetimeStats(col *dataset.Column) *DatetimeStats {
	var lo, hi time.Time
	found := false
	for _, v := range col.Values {
		if v.Kind != dataset.Timestamp {
			continue
		}
		if !found {
			lo, hi, found = v.Time, v.Time, true
			continue
		}
		if v.Time.Before(lo) {
			lo = v.Time
		}
		if v.Time.After(hi) {
			hi = v.Time
		}
	}
	if !found {
		return &DatetimeStats{}
	}
	minS := lo.Format("2006-01-02")
	maxS := hi.Format("2006-01-02")
	days := wholeDays(lo, hi)
	return &DatetimeStats{Min: &minS, Max: &maxS, RangeDays: &days}
}

// wholeDays returns the number of complete days from lo to hi. It works on
// Unix seconds so spans beyond time.Duration's range stay exact.
func wholeDays(lo, hi time.Time) int {
	secs := hi.Unix() - lo.Unix()
	if hi.Nanosecond() < lo.Nanosecond() {
		secs--
	}
	return int(secs / 86400)
}

func categoricalStats(col *dataset.Column) *CategoricalStats {
	counts := make(map[string]int)
	var order []dataset.RawValue
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		k := v.Key()
		if _, ok := counts[k]; !ok {
			order = append(order, v)
		}
		counts[k]++
	}

	ranked := make([]dataset.RawValue, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i].Key()] > counts[ranked[j].Key()]
	})
	if len(ranked) > topValuesLimit {
		ranked = ranked[:topValuesLimit]
	}
	top := make(TopValues, 0, len(ranked))
	for _, v := range ranked {
		top = append(top, ValueCount{Value: v.String(), Count: counts[v.Key()]})
	}

	samples := make([]string, 0, sampleValuesLimit)
	for _, v := range order {
		if len(samples) == sampleValuesLimit {
			break
		}
		samples = append(samples, v.String())
	}

	return &CategoricalStats{
		UniqueCount:  len(order),
		TopValues:    top,
		SampleValues: samples,
	}
}
