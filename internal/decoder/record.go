package decoder

import (
	"bytes"
	"encoding/json"
	"math"
)

// Record is an ordered mapping from column name to typed value. Values are
// int64, float64, bool, string or nil.
type Record struct {
	names  []string
	values []any
}

// NewRecord pairs names with values; both slices are kept, not copied.
func NewRecord(names []string, values []any) Record {
	return Record{names: names, values: values}
}

// Len returns the number of columns.
func (r Record) Len() int { return len(r.names) }

// Names returns the column names in order. The slice is shared.
func (r Record) Names() []string { return r.names }

// Values returns the values in column order. The slice belongs to the record.
func (r Record) Values() []any { return r.values }

// Get returns the value of the named column.
func (r Record) Get(name string) (any, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map copies the record into a plain map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i]
	}
	return m
}

// MarshalJSON encodes the record as an object with keys in column order.
// NaN and infinite floats, which JSON cannot represent, become null.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		val := r.values[i]
		if f, ok := val.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			val = nil
		}
		v, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Row is one decoded line split into feature and label columns, each in
// schema order. Label is empty when no column is marked as a label.
type Row struct {
	Features Record `json:"features"`
	Label    Record `json:"label"`
	// Line is the 1-based record number the row was decoded from.
	Line int `json:"-"`
}
