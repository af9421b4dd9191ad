package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"csvdataset/internal/decoder"
	pcsv "csvdataset/internal/parser/csv"
	"csvdataset/internal/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Columns: []schema.ColumnSpec{
			{Name: "id", Index: 0, DType: schema.Int, Required: true},
			{Name: "species", Index: 1, DType: schema.String, IsLabel: true},
			{Name: "width", Index: 2, DType: schema.Float},
			{Name: "ok", Index: 3, DType: schema.Bool},
		},
		Delimiter: ",",
		HasHeader: true,
		Width:     4,
	}
}

func decode(t *testing.T, s *schema.Schema, lines ...string) []decoder.Row {
	t.Helper()
	d := decoder.New(s)
	out := make([]decoder.Row, 0, len(lines))
	for i, l := range lines {
		fields, err := s.Dialect().Split(pcsv.Line{Text: l, Num: i + 2})
		if err != nil {
			t.Fatalf("split %q: %v", l, err)
		}
		r, err := d.Decode(fields, i+2)
		if err != nil {
			t.Fatalf("decode %q: %v", l, err)
		}
		out = append(out, r)
	}
	return out
}

func writeAll(t *testing.T, cfg Config, s *schema.Schema, rows []decoder.Row) *Sink {
	t.Helper()
	ctx := context.Background()
	sk, err := Open(ctx, cfg, s)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, r := range rows {
		if err := sk.Write(ctx, r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return sk
}

type stored struct {
	ID      int64
	Species string
	Width   sql.NullFloat64
	OK      sql.NullInt64
}

func readBack(t *testing.T, dsn, table string) []stored {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	rows, err := db.Query(`SELECT "id", "species", "width", "ok" FROM "` + table + `" ORDER BY "id"`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var out []stored
	for rows.Next() {
		var s stored
		if err := rows.Scan(&s.ID, &s.Species, &s.Width, &s.OK); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestSink_WritesRowsInSchemaOrder(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "rows.db")
	s := testSchema()
	rows := decode(t, s, "1,setosa,3.5,true", "2,virginica,,0", "3,\"a,b\",1,")

	sk := writeAll(t, Config{DSN: dsn, Table: "iris", BatchSize: 2}, s, rows)
	if sk.Written() != 3 {
		t.Fatalf("Written = %d, want 3", sk.Written())
	}

	want := []stored{
		{ID: 1, Species: "setosa", Width: sql.NullFloat64{Float64: 3.5, Valid: true}, OK: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 2, Species: "virginica", OK: sql.NullInt64{Int64: 0, Valid: true}},
		{ID: 3, Species: "a,b", Width: sql.NullFloat64{Float64: 1, Valid: true}},
	}
	if diff := cmp.Diff(want, readBack(t, dsn, "iris")); diff != "" {
		t.Fatalf("stored rows (-want +got):\n%s", diff)
	}
}

func TestSink_AppendsWithSameSchema(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "rows.db")
	s := testSchema()
	writeAll(t, Config{DSN: dsn, Table: "iris"}, s, decode(t, s, "1,a,1,1"))
	writeAll(t, Config{DSN: dsn, Table: "iris"}, s, decode(t, s, "2,b,2,0"))

	if got := len(readBack(t, dsn, "iris")); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
}

func TestSink_RejectsDifferentSchema(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "rows.db")
	s := testSchema()
	writeAll(t, Config{DSN: dsn, Table: "iris"}, s, decode(t, s, "1,a,1,1"))

	other := testSchema()
	other.Columns[2].DType = schema.String
	_, err := Open(context.Background(), Config{DSN: dsn, Table: "iris"}, other)
	if err == nil || !strings.Contains(err.Error(), "different schema") {
		t.Fatalf("expected schema mismatch error, got %v", err)
	}
}

func TestSink_AbortDiscardsPending(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "rows.db")
	s := testSchema()
	ctx := context.Background()
	sk, err := Open(ctx, Config{DSN: dsn, Table: "iris"}, s)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, r := range decode(t, s, "1,a,1,1", "2,b,2,0") {
		if err := sk.Write(ctx, r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sk.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if err := sk.Write(ctx, decoder.Row{}); err == nil {
		t.Fatalf("Write after Abort: expected error")
	}
	if got := len(readBack(t, dsn, "iris")); got != 0 {
		t.Fatalf("rows = %d, want 0", got)
	}
}

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cases := []Config{
		{Table: "t"},
		{DSN: ":memory:"},
	}
	for _, cfg := range cases {
		if _, err := Open(ctx, cfg, testSchema()); err == nil {
			t.Errorf("Open(%+v): expected error", cfg)
		}
	}
	if _, err := Open(ctx, Config{DSN: ":memory:", Table: "t"}, &schema.Schema{}); err == nil {
		t.Errorf("Open with empty schema: expected error")
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := insertSQL("main.t", []string{"a", `b"c`})
	want := `INSERT INTO "main"."t" ("a", "b""c") VALUES (?, ?)`
	if got != want {
		t.Fatalf("insertSQL = %s, want %s", got, want)
	}
}
