package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/genbi/genbi/internal/query"
)

// rowDecodeError reports a column value that does not fit the response type.
type rowDecodeError struct {
	Column string
	Value  string
	Err    error
}

func (e *rowDecodeError) Error() string {
	return fmt.Sprintf("column %s: cannot decode %q: %v", e.Column, e.Value, e.Err)
}

func (e *rowDecodeError) Unwrap() error {
	return e.Err
}

// rowDecoder reads typed values out of a query row. The first failure is
// kept in err and later reads become no-ops.
type rowDecoder struct {
	row query.Row
	err error
}

func decodeRows[T any](rows []query.Row, decode func(*rowDecoder) T) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		d := &rowDecoder{row: row}
		item := decode(d)
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *rowDecoder) str(column string) string {
	if value := d.row[column]; value != nil {
		return *value
	}
	return ""
}

func (d *rowDecoder) optStr(column string) *string {
	value := d.row[column]
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func (d *rowDecoder) float(column string) float64 {
	if value := d.optFloat(column); value != nil {
		return *value
	}
	return 0
}

func (d *rowDecoder) optFloat(column string) *float64 {
	raw, ok := d.raw(column)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		d.fail(column, raw, err)
		return nil
	}
	return &parsed
}

func (d *rowDecoder) optInt(column string) *int64 {
	raw, ok := d.raw(column)
	if !ok {
		return nil
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &parsed
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil:
	case parsed != math.Trunc(parsed):
		err = fmt.Errorf("not a whole number")
	case parsed < math.MinInt64 || parsed >= -math.MinInt64:
		err = fmt.Errorf("out of int64 range")
	}
	if err != nil {
		d.fail(column, raw, err)
		return nil
	}
	whole := int64(parsed)
	return &whole
}

// raw returns the trimmed value of column. NULL and empty values are absent.
func (d *rowDecoder) raw(column string) (string, bool) {
	if d.err != nil {
		return "", false
	}
	value := d.row[column]
	if value == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(*value)
	return trimmed, trimmed != ""
}

func (d *rowDecoder) fail(column, value string, err error) {
	if d.err == nil {
		d.err = &rowDecodeError{Column: column, Value: value, Err: err}
	}
}
