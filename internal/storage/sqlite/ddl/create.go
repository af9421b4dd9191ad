package ddl

import (
	"fmt"
	"strings"

	"csvdataset/internal/schema"
)

// TableDef is a table to create.
type TableDef struct {
	// FQN is the table name; dotted names such as "main.rows" are quoted per
	// segment.
	FQN     string
	Columns []ColumnDef
}

// ColumnDef is one column of a TableDef.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// FromSchema derives a table definition from s. A column is NOT NULL when
// decoding can never produce nil for it: String columns, required columns and
// columns with a default.
func FromSchema(fqn string, s *schema.Schema) (TableDef, error) {
	if s == nil || len(s.Columns) == 0 {
		return TableDef{}, fmt.Errorf("sqlite ddl: schema has no columns")
	}
	td := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(s.Columns))}
	for i, c := range s.Columns {
		td.Columns[i] = ColumnDef{
			Name:     c.Name,
			SQLType:  MapType(c.DType),
			Nullable: c.DType != schema.String && !c.Required && c.Default == nil,
		}
	}
	return td, nil
}

// BuildCreateTableSQL returns a statement of the form
//
//	CREATE TABLE IF NOT EXISTS "table" (
//	  "col1" TYPE NOT NULL,
//	  "col2" TYPE
//	);
func BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("sqlite ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("sqlite ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return "", fmt.Errorf("sqlite ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("sqlite ddl: column %s missing SQLType", c.Name)
		}
		def := QuoteIdent(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes every non-empty dot-separated segment of fqn.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, QuoteIdent(p))
	}
	return strings.Join(out, ".")
}
