// Package decoder applies a resolved schema to tokenized lines: it checks the
// field count, fills defaults, enforces required columns, coerces raw text to
// the column types and splits the result into features and label.
//
// Decoding is a pure function of the schema and the fields, so one Decoder may
// serve any number of passes.
package decoder

import (
	"csvdataset/internal/csverr"
	"csvdataset/internal/schema"
)

// Decoder holds a per-column plan compiled from a schema.
type Decoder struct {
	width  int
	cols   []column
	fNames []string
	lNames []string
}

type column struct {
	spec  schema.ColumnSpec
	label bool
	// missing produces the value for an absent cell, or ok=false when the
	// cell is required.
	missing func() (any, bool)
}

// New compiles a Decoder for s.
func New(s *schema.Schema) *Decoder {
	d := &Decoder{width: s.Width, cols: make([]column, len(s.Columns))}
	for i, c := range s.Columns {
		d.cols[i] = column{spec: c, label: c.IsLabel, missing: missingFunc(c)}
		if c.IsLabel {
			d.lNames = append(d.lNames, c.Name)
		} else {
			d.fNames = append(d.fNames, c.Name)
		}
	}
	return d
}

func missingFunc(c schema.ColumnSpec) func() (any, bool) {
	switch {
	case c.Default != nil:
		def := c.Default
		return func() (any, bool) { return def, true }
	case c.Required:
		return func() (any, bool) { return nil, false }
	case c.DType == schema.String:
		return func() (any, bool) { return "", true }
	default:
		return func() (any, bool) { return nil, true }
	}
}

// Decode turns fields, read from logical line number line, into a Row. Errors
// are *csverr.MalformedRowError, *csverr.RequiredColumnError or
// *csverr.TypeCoercionError.
func (d *Decoder) Decode(fields []string, line int) (Row, error) {
	if len(fields) != d.width {
		return Row{}, &csverr.MalformedRowError{Line: line, Expected: d.width, Actual: len(fields), Err: csverr.ErrFieldCount}
	}
	fv := make([]any, 0, len(d.fNames))
	lv := make([]any, 0, len(d.lNames))
	for _, c := range d.cols {
		raw := fields[c.spec.Index]
		var v any
		if schema.Missing(c.spec.DType, raw) {
			var ok bool
			if v, ok = c.missing(); !ok {
				return Row{}, &csverr.RequiredColumnError{Line: line, Column: c.spec.Name, Value: raw}
			}
		} else {
			var err error
			if v, err = schema.Parse(c.spec.DType, raw); err != nil {
				return Row{}, &csverr.TypeCoercionError{
					Line: line, Column: c.spec.Name, Value: raw, Type: c.spec.DType.String(), Err: err,
				}
			}
		}
		if c.label {
			lv = append(lv, v)
		} else {
			fv = append(fv, v)
		}
	}
	return Row{
		Features: NewRecord(d.fNames, fv),
		Label:    NewRecord(d.lNames, lv),
		Line:     line,
	}, nil
}

// Decode is a one-shot convenience for New(s).Decode(fields, line).
func Decode(s *schema.Schema, fields []string, line int) (Row, error) {
	return New(s).Decode(fields, line)
}
