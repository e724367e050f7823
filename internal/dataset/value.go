package dataset

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind tags the variant held by a RawValue.
type Kind uint8

const (
	Null Kind = iota
	Number
	Timestamp
	Text
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Number:
		return "number"
	case Timestamp:
		return "timestamp"
	case Text:
		return "text"
	}
	return ""
}

// RawValue is a single cell. Exactly one of Num, Time or Str is meaningful,
// selected by Kind; a Null value carries nothing.
type RawValue struct {
	Kind Kind
	Num  float64
	Time time.Time
	Str  string
}

// NullValue returns the missing value.
func NullValue() RawValue { return RawValue{} }

// NumberValue wraps a float.
func NumberValue(f float64) RawValue { return RawValue{Kind: Number, Num: f} }

// TimeValue wraps a timestamp.
func TimeValue(t time.Time) RawValue { return RawValue{Kind: Timestamp, Time: t} }

// TextValue wraps a string.
func TextValue(s string) RawValue { return RawValue{Kind: Text, Str: s} }

// IsNull reports whether the value is missing.
func (v RawValue) IsNull() bool { return v.Kind == Null }

// String renders the value the way it appears in profile output.
// Timestamps use "2006-01-02 15:04:05" (date only when the clock is midnight).
func (v RawValue) String() string {
	switch v.Kind {
	case Number:
		return formatNumber(v.Num)
	case Timestamp:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format("2006-01-02 15:04:05")
	case Text:
		return v.Str
	}
	return ""
}

// Key returns a canonical encoding used for equality. Two values with equal
// keys are considered the same cell value.
func (v RawValue) Key() string {
	switch v.Kind {
	case Number:
		n := v.Num
		if n == 0 {
			n = 0 // -0 and +0 compare equal
		}
		return "n:" + strconv.FormatFloat(n, 'g', -1, 64)
	case Timestamp:
		return "t:" + v.Time.UTC().Format(time.RFC3339Nano)
	case Text:
		return "s:" + v.Str
	}
	return "_"
}

// MarshalJSON encodes the value as its natural JSON counterpart.
func (v RawValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Number:
		return json.Marshal(v.Num)
	case Timestamp:
		return json.Marshal(v.Time.Format(time.RFC3339Nano))
	case Text:
		return json.Marshal(v.Str)
	}
	return []byte("null"), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
