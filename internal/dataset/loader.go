package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadOptions controls CSV decoding.
type LoadOptions struct {
	// Delimiter for CSV. If 0, ',' is used.
	Delimiter rune
	// MaxRows rejects inputs with more data rows; 0 means unlimited.
	MaxRows int
}

// DefaultLoadOptions returns comma-delimited, unbounded loading.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Delimiter: ','}
}

// naTokens are the strings read as missing, on top of blank fields.
var naTokens = map[string]struct{}{
	"NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"NULL": {}, "null": {}, "None": {}, "<NA>": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {},
	"-1.#IND": {}, "-1.#QNAN": {}, "1.#IND": {}, "1.#QNAN": {},
}

// IsNAToken reports whether a raw field is read as a missing value. Only the
// exact empty string and the exact tokens count; " " stays a string value.
func IsNAToken(s string) bool {
	if s == "" {
		return true
	}
	_, ok := naTokens[s]
	return ok
}

// SniffDelimiter picks the delimiter from the file name.
func SniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}

// LoadCSV decodes a CSV payload into a Table. The first row is the header.
// Every data row must have exactly as many fields as the header.
func LoadCSV(r io.Reader, opt LoadOptions) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read input: %w", err)}
	}
	if !utf8.Valid(raw) {
		return nil, &ParseError{Err: ErrInvalidUTF8}
	}
	dec := transform.NewReader(bytes.NewReader(raw), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.Comma = opt.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ','
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: ErrNoColumns}
		}
		return nil, wrapCSVErr(err)
	}
	names, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	ncol := len(names)
	fields := make([][]string, ncol)
	rows := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, wrapCSVErr(err)
		}
		if len(rec) != ncol {
			line, _ := cr.FieldPos(0)
			return nil, &SchemaMismatchError{Line: line, Want: ncol, Got: len(rec)}
		}
		rows++
		if opt.MaxRows > 0 && rows > opt.MaxRows {
			return nil, fmt.Errorf("input exceeds %d rows", opt.MaxRows)
		}
		for j, f := range rec {
			fields[j] = append(fields[j], f)
		}
	}

	t := NewTable()
	for j, name := range names {
		col := buildColumn(name, fields[j], rows)
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func wrapCSVErr(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}

func normalizeHeader(header []string) ([]string, error) {
	if len(header) == 0 {
		return nil, &ParseError{Line: 1, Err: ErrNoColumns}
	}
	seen := make(map[string]struct{}, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if _, dup := seen[name]; dup {
			return nil, &SchemaMismatchError{Column: name, Reason: "duplicate column name"}
		}
		seen[name] = struct{}{}
		out[i] = name
	}
	return out, nil
}

// buildColumn coerces raw fields: all-integer columns become int64 (float64
// when nulls are present), all-numeric columns float64, anything else object.
func buildColumn(name string, raw []string, rows int) *Column {
	vals := make([]RawValue, rows)
	nulls := 0
	allInt, allNum := true, true
	for _, f := range raw {
		if IsNAToken(f) {
			nulls++
			continue
		}
		s := strings.TrimSpace(f)
		if allInt {
			if _, ok := ParseInt(s); !ok {
				allInt = false
			}
		}
		if allNum && !allInt {
			if _, ok := ParseFloat(s); !ok {
				allNum = false
			}
		}
	}

	storage := Object
	switch {
	case rows == 0:
		storage = Object
	case nulls == rows:
		storage = Float64
	case allInt && nulls == 0:
		storage = Int64
	case allInt || allNum:
		storage = Float64
	}

	for i, f := range raw {
		if IsNAToken(f) {
			continue
		}
		if storage == Object {
			vals[i] = TextValue(f)
			continue
		}
		s := strings.TrimSpace(f)
		if n, ok := ParseInt(s); ok {
			vals[i] = NumberValue(float64(n))
			continue
		}
		x, _ := ParseFloat(s)
		vals[i] = NumberValue(x)
	}
	return &Column{Name: name, Storage: storage, Values: vals}
}

// ParseInt parses a base-10 integer.
func ParseInt(s string) (int64, bool) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// ParseFloat parses a decimal float. Hex literals and digit separators are
// rejected since CSV producers never mean them as numbers.
func ParseFloat(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "_xXpP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
