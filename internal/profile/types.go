package profile

import (
	"encoding/json"
	"strings"
)

const (
	Numeric ColumnType = iota
	DatetimeType
	Categorical
	TextType
)

// ColumnType is the inferred semantic category of a column. It selects the
// statistics computed for it.
type ColumnType uint8

func (c ColumnType) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case DatetimeType:
		return "datetime"
	case Categorical:
		return "categorical"
	case TextType:
		return "text"
	}
	return ""
}

func (c ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ColumnType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	var t ColumnType

	switch strings.ToLower(s) {
	case "numeric":
		t = Numeric
	case "datetime":
		t = DatetimeType
	case "categorical":
		t = Categorical
	default:
		t = TextType
	}

	*c = t

	return nil
}
