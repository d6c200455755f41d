package api

import (
	"errors"
	"testing"

	"github.com/genbi/genbi/internal/query"
)

func TestRowDecoderOptInt(t *testing.T) {
	cases := []struct {
		raw  *string
		want *int64
		fail bool
	}{
		{raw: sp("42"), want: i64(42)},
		{raw: sp("42.0"), want: i64(42)},
		{raw: sp(" 7 "), want: i64(7)},
		{raw: sp(""), want: nil},
		{raw: nil, want: nil},
		{raw: sp("42.5"), fail: true},
		{raw: sp("old"), fail: true},
		{raw: sp("1e19"), fail: true},
		{raw: sp("-1e19"), fail: true},
		{raw: sp("Inf"), fail: true},
		{raw: sp("NaN"), fail: true},
		{raw: sp("1e18"), want: i64(1_000_000_000_000_000_000)},
	}
	for _, tc := range cases {
		d := &rowDecoder{row: query.Row{"age": tc.raw}}
		got := d.optInt("age")
		if tc.fail {
			var decodeErr *rowDecodeError
			if !errors.As(d.err, &decodeErr) || decodeErr.Column != "age" {
				t.Fatalf("%v: err = %v, want *rowDecodeError", tc.raw, d.err)
			}
			continue
		}
		if d.err != nil {
			t.Fatalf("%v: err = %v", tc.raw, d.err)
		}
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Fatalf("%v: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestDecodeRowsStopsAtFirstFailure(t *testing.T) {
	rows := []query.Row{
		{"n": sp("1")},
		{"n": sp("two")},
		{"n": sp("x")},
	}
	items, err := decodeRows(rows, func(d *rowDecoder) float64 { return d.float("n") })
	var decodeErr *rowDecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Value != "two" {
		t.Fatalf("err = %v", err)
	}
	if items != nil {
		t.Fatalf("items = %v", items)
	}
}

func TestDecodeRowsEmptyIsNotNil(t *testing.T) {
	items, err := decodeRows(nil, decodeAdvisor)
	if err != nil {
		t.Fatalf("decodeRows() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("items = %#v", items)
	}
}

func i64(value int64) *int64 {
	return &value
}
