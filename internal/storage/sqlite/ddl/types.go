// Package ddl renders SQLite CREATE TABLE statements for resolved CSV
// schemas.
package ddl

import "csvdataset/internal/schema"

// MapType maps a column type to a SQLite column type. SQLite has no boolean
// type, so bools are stored as INTEGER 0/1.
func MapType(t schema.DType) string {
	switch t {
	case schema.Int, schema.Bool:
		return "INTEGER"
	case schema.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}
