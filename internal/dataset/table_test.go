package dataset

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTable_AddColumnEnforcesShape(t *testing.T) {
	tbl := NewTable()
	if err := tbl.AddColumn(&Column{Name: "a", Values: []RawValue{NumberValue(1), NullValue()}}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	err := tbl.AddColumn(&Column{Name: "b", Values: []RawValue{TextValue("x")}})
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	err = tbl.AddColumn(&Column{Name: "a", Values: []RawValue{NullValue(), NullValue()}})
	if !errors.As(err, &sm) {
		t.Fatalf("expected duplicate name mismatch, got %v", err)
	}
}

func TestTable_RowKeyDistinguishesKinds(t *testing.T) {
	tbl := NewTable()
	_ = tbl.AddColumn(&Column{Name: "a", Values: []RawValue{NumberValue(1), TextValue("1"), NumberValue(1)}})
	_ = tbl.AddColumn(&Column{Name: "b", Values: []RawValue{TextValue("x\x1fy"), TextValue("x\x1fy"), TextValue("x\x1fy")}})
	if tbl.RowKey(0) == tbl.RowKey(1) {
		t.Fatalf("number and text must not compare equal")
	}
	if tbl.RowKey(0) != tbl.RowKey(2) {
		t.Fatalf("identical rows must share a key")
	}
}

func TestTable_SelectRowsAndWithColumn(t *testing.T) {
	tbl := NewTable()
	_ = tbl.AddColumn(&Column{Name: "a", Storage: Int64, Values: []RawValue{NumberValue(1), NumberValue(2), NumberValue(3)}})
	_ = tbl.AddColumn(&Column{Name: "b", Values: []RawValue{TextValue("x"), TextValue("y"), TextValue("z")}})

	sub := tbl.SelectRows([]int{2, 0})
	if sub.NumRows() != 2 || sub.Row(0)[1].Str != "z" || sub.Row(1)[0].Num != 1 {
		t.Fatalf("unexpected selection: %+v %+v", sub.Row(0), sub.Row(1))
	}
	if c, _ := sub.Column("a"); c.Storage != Int64 {
		t.Fatalf("storage not preserved")
	}

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	repl := &Column{Name: "b", Storage: Datetime, Values: []RawValue{TimeValue(ts), TimeValue(ts), TimeValue(ts)}}
	next := tbl.WithColumn(repl)
	if c, _ := next.Column("b"); c.Storage != Datetime {
		t.Fatalf("column not replaced")
	}
	if c, _ := tbl.Column("b"); c.Storage != Object {
		t.Fatalf("original table mutated")
	}
}

func TestRawValue_String(t *testing.T) {
	cases := []struct {
		v    RawValue
		want string
	}{
		{NumberValue(10), "10"},
		{NumberValue(2.5), "2.5"},
		{TextValue("NY"), "NY"},
		{TimeValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), "2024-03-01"},
		{TimeValue(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)), "2024-03-01 08:30:00"},
		{NullValue(), ""},
	}
	for _, tc := range cases {
		if got := tc.v.String(); got != tc.want {
			t.Fatalf("String(%+v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestRawValue_KeySignedZero(t *testing.T) {
	if NumberValue(0).Key() != NumberValue(math.Copysign(0, -1)).Key() {
		t.Fatalf("+0 and -0 should share a key")
	}
	if NumberValue(1).Key() == NumberValue(-1).Key() {
		t.Fatalf("1 and -1 must differ")
	}
}
