// Package schema resolves the column layout of a CSV dataset: names from the
// header or the configuration, per-column settings, and data types inferred
// from a bounded prefix of rows when they are not configured.
package schema

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	pcsv "csvdataset/internal/parser/csv"
)

// ColumnSpec describes one output column.
type ColumnSpec struct {
	Name     string
	Index    int // position of the field in a raw line
	Required bool
	DType    DType
	Default  any // nil, or a value of DType's Go type
	IsLabel  bool
	Inferred bool // DType was chosen by sampling
}

// Schema is the resolved, immutable column layout of a dataset.
type Schema struct {
	Columns         []ColumnSpec
	Delimiter       string
	DelimWhitespace bool
	HasHeader       bool
	// Width is the number of raw fields every data line must have. It can
	// exceed len(Columns) when only configured columns are kept.
	Width int
}

// Names returns the output column names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by name.
func (s *Schema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Dialect returns the tokenizer settings matching the schema.
func (s *Schema) Dialect() pcsv.Dialect {
	return pcsv.Dialect{Delimiter: s.Delimiter, Whitespace: s.DelimWhitespace}
}

// Fingerprint hashes the parts of the schema that determine the shape of a
// decoded row: names, types, label membership and order. Two schemas with the
// same fingerprint produce interchangeable rows.
func (s *Schema) Fingerprint() uint64 {
	h := xxh3.New()
	var n [8]byte
	for _, c := range s.Columns {
		binary.LittleEndian.PutUint64(n[:], uint64(len(c.Name)))
		h.Write(n[:])
		h.WriteString(c.Name)
		flags := byte(c.DType)
		if c.IsLabel {
			flags |= 0x80
		}
		h.Write([]byte{flags})
	}
	return h.Sum64()
}
