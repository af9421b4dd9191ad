package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"csvdataset/internal/config"
	"csvdataset/internal/csverr"
)

const irisCSV = "sepal,petal,species\n5.1,1.4,0\n4.9,x,0\n\n6.3,6.0,2\n"

func irisPipeline(t *testing.T, data string) config.Pipeline {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iris.csv")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return config.Pipeline{
		Job:    "iris",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: path}},
		CSV: config.CSV{ColumnConfigs: map[string]config.ColumnConfig{
			"petal":   {DType: "float"},
			"species": {IsLabel: true},
		}},
	}
}

func runPipeline(t *testing.T, p config.Pipeline, opts runOptions) (string, runStats, error) {
	t.Helper()
	src, err := buildSource(p.Source, p.CSV)
	if err != nil {
		t.Fatalf("buildSource: %v", err)
	}
	var out bytes.Buffer
	st, err := run(context.Background(), p, src, opts, &out)
	return out.String(), st, err
}

func TestRun_JSONLines(t *testing.T) {
	t.Parallel()

	out, st, err := runPipeline(t, irisPipeline(t, irisCSV), runOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := `{"features":{"sepal":5.1,"petal":1.4},"label":{"species":0}}` + "\n" +
		`{"features":{"sepal":6.3,"petal":6},"label":{"species":2}}` + "\n"
	if out != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out, want)
	}
	if st.Decoded != 2 || st.RowErrors != 1 {
		t.Fatalf("stats = %+v, want 2 decoded and 1 row error", st)
	}
}

func TestRun_Columns(t *testing.T) {
	t.Parallel()

	out, _, err := runPipeline(t, irisPipeline(t, irisCSV), runOptions{columns: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "sepal\npetal\nspecies\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestRun_Limit(t *testing.T) {
	t.Parallel()

	out, st, err := runPipeline(t, irisPipeline(t, irisCSV), runOptions{limit: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Count(out, "\n") != 1 || st.Decoded != 1 {
		t.Fatalf("limit 1: output %q, stats %+v", out, st)
	}
}

func TestRun_FailFast(t *testing.T) {
	t.Parallel()

	_, st, err := runPipeline(t, irisPipeline(t, irisCSV), runOptions{failFast: true})
	var tce *csverr.TypeCoercionError
	if !errors.As(err, &tce) {
		t.Fatalf("expected *TypeCoercionError, got %v", err)
	}
	if tce.Column != "petal" || tce.Line != 3 {
		t.Fatalf("got %+v", tce)
	}
	if st.Decoded != 1 {
		t.Fatalf("decoded = %d, want 1", st.Decoded)
	}
}

func TestRun_ConfigError(t *testing.T) {
	t.Parallel()

	p := irisPipeline(t, irisCSV)
	p.CSV.ColumnConfigs["missing"] = config.ColumnConfig{DType: "int"}
	_, _, err := runPipeline(t, p, runOptions{})
	if !csverr.IsConfigError(err) || !strings.Contains(err.Error(), "no such column") {
		t.Fatalf("expected no such column config error, got %v", err)
	}
}

// failingWriter rejects every write, like stdout closed by the reader.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRun_OutputWriteFailure(t *testing.T) {
	t.Parallel()

	for _, opts := range []runOptions{{}, {columns: true}} {
		p := irisPipeline(t, irisCSV)
		src, err := buildSource(p.Source, p.CSV)
		if err != nil {
			t.Fatalf("buildSource: %v", err)
		}
		_, err = run(context.Background(), p, src, opts, failingWriter{})
		if err == nil || !strings.Contains(err.Error(), "flush output") || !strings.Contains(err.Error(), "broken pipe") {
			t.Errorf("columns=%v: run = %v, want flush output error", opts.columns, err)
		}
	}
}

func TestRun_SQLite(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "out.db")
	out, st, err := runPipeline(t, irisPipeline(t, irisCSV), runOptions{sqlitePath: dbPath, table: "iris"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "" {
		t.Fatalf("stdout should be empty with -sqlite, got %q", out)
	}
	if st.Decoded != 2 {
		t.Fatalf("decoded = %d", st.Decoded)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	var sum float64
	if err := db.QueryRow(`SELECT COUNT(*), SUM("petal") FROM "iris"`).Scan(&n, &sum); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 2 || math.Abs(sum-7.4) > 1e-9 {
		t.Fatalf("count=%d sum=%v, want 2 and 7.4", n, sum)
	}
}

func TestBuildSource_HTTPGzipAuto(t *testing.T) {
	t.Parallel()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(irisCSV))
	_ = zw.Close()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-Token") != "t0k" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write(gz.Bytes())
	}))
	defer srv.Close()

	p := irisPipeline(t, "")
	p.Source = config.Source{
		Kind:        "http",
		HTTP:        config.SourceHTTP{URL: srv.URL + "/data/iris.csv.gz", Headers: map[string]string{"X-Token": "t0k"}},
		Compression: "auto",
	}
	out, st, err := runPipeline(t, p, runOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Decoded != 2 || !strings.Contains(out, `"sepal":6.3`) {
		t.Fatalf("stats %+v, output %q", st, out)
	}
	// One GET for the schema, one for the pass.
	if n := hits.Load(); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}
}

func TestBuildSource_Encoding(t *testing.T) {
	t.Parallel()

	// "město" in windows-1250.
	p := irisPipeline(t, "name\nm\xecsto\n")
	p.CSV = config.CSV{}
	p.Source.Encoding = "windows-1250"
	out, _, err := runPipeline(t, p, runOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := `{"features":{"name":"město"},"label":{}}` + "\n"; out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestBuildSource_Errors(t *testing.T) {
	t.Parallel()

	cases := []config.Source{
		{Kind: "ftp"},
		{Kind: "file", File: config.SourceFile{Path: "x.csv"}, Compression: "lz4"},
		{Kind: "file", File: config.SourceFile{Path: "x.csv"}, Encoding: "no-such-charset"},
		{Kind: "postgres"},
	}
	for _, s := range cases {
		if _, err := buildSource(s, config.CSV{}); err == nil {
			t.Errorf("buildSource(%+v): expected error", s)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	if got := firstNonEmpty("", "", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("got %q", got)
	}
}
