// Package output decodes the structured stdout of a probe run into a single
// normalized shape.
//
// The CLI answers in one of two shapes: a summary object that reports its
// schema out-of-band in a "columns" field next to boolean capability flags,
// or a sequence of row records whose schema is inferred from the first row.
// Row sequences may arrive as a JSON array or as newline-delimited objects.
// Validators only ever see the normalized Result.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrInvalidFormat is returned for output that is not structured record data.
var ErrInvalidFormat = errors.New("invalid output format")

// Shape records which calling convention the output used.
type Shape string

const (
	ShapeSummary Shape = "summary"
	ShapeRows    Shape = "rows"
)

// Result is the normalized form of a probe's output.
type Result struct {
	Shape   Shape
	Columns []string
	Rows    []map[string]any
	Flags   map[string]bool
}

// Parse decodes stdout. Errors wrap ErrInvalidFormat.
func Parse(stdout []byte) (*Result, error) {
	values, err := decodeAll(stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidFormat)
	}

	// A single array is a row list.
	if len(values) == 1 {
		if rows, ok := values[0].([]any); ok {
			return fromRows(rows)
		}
		if obj, ok := values[0].(map[string]any); ok {
			if _, hasColumns := obj["columns"]; hasColumns {
				return fromSummary(obj)
			}
		}
	}

	// Otherwise every value must be a row object.
	return fromRows(values)
}

func decodeAll(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var values []any
	for {
		var v any
		err := dec.Decode(&v)
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}

func fromSummary(obj map[string]any) (*Result, error) {
	raw, ok := obj["columns"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: columns must be a list, got %T", ErrInvalidFormat, obj["columns"])
	}

	res := &Result{
		Shape:   ShapeSummary,
		Columns: make([]string, 0, len(raw)),
		Flags:   make(map[string]bool),
	}
	for i, c := range raw {
		name, ok := c.(string)
		if !ok {
			return nil, fmt.Errorf("%w: columns[%d] must be a string, got %T", ErrInvalidFormat, i, c)
		}
		res.Columns = append(res.Columns, name)
	}

	for k, v := range obj {
		if b, ok := v.(bool); ok {
			res.Flags[k] = b
		}
	}

	if rows, ok := obj["rows"].([]any); ok {
		for i, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: rows[%d] must be an object, got %T", ErrInvalidFormat, i, r)
			}
			res.Rows = append(res.Rows, row)
		}
	}

	return res, nil
}

// fromRows infers the schema from the first row. A boolean field counts as
// a raised flag if it is true in any row.
func fromRows(values []any) (*Result, error) {
	res := &Result{
		Shape: ShapeRows,
		Rows:  make([]map[string]any, 0, len(values)),
		Flags: make(map[string]bool),
	}
	for i, v := range values {
		row, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: record %d must be an object, got %T", ErrInvalidFormat, i, v)
		}
		res.Rows = append(res.Rows, row)
		for k, field := range row {
			if b, ok := field.(bool); ok {
				res.Flags[k] = res.Flags[k] || b
			}
		}
	}

	if len(res.Rows) > 0 {
		res.Columns = make([]string, 0, len(res.Rows[0]))
		for k := range res.Rows[0] {
			res.Columns = append(res.Columns, k)
		}
		sort.Strings(res.Columns)
	}
	return res, nil
}
