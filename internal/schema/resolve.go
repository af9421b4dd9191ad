package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"csvdataset/internal/config"
	"csvdataset/internal/csverr"
	"csvdataset/internal/datasource"
	pcsv "csvdataset/internal/parser/csv"
)

// Resolve reads the header and, when some column types are not configured, a
// bounded prefix of data lines from one pass of src, and builds the Schema.
//
// Rules:
//   - cfg.Validate runs first.
//   - With a header, its fields name the columns unless ColumnNames is set, in
//     which case ColumnNames wins and both must have the same width.
//   - Without a header, ColumnNames is required.
//   - Columns without a configured dtype are inferred from up to
//     InferenceRows non-blank data lines; lines that fail to tokenize or have
//     the wrong width are skipped. A configured default counts as one more
//     sample.
//   - Defaults are converted to the column type.
//
// Configuration problems are returned as *csverr.ConfigError. Source errors are
// returned wrapped.
func Resolve(ctx context.Context, src datasource.Source, cfg config.CSV) (*Schema, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := resolver{cfg: cfg, dialect: pcsv.Dialect{Delimiter: cfg.Delimiter, Whitespace: cfg.DelimWhitespace}}

	names := cfg.ColumnNames
	needsSource := cfg.HasHeaderOrDefault() || r.needsInference(names)
	if needsSource {
		if err := r.open(ctx, src); err != nil {
			return nil, err
		}
		defer r.close()
	}

	if cfg.HasHeaderOrDefault() {
		header, err := r.header()
		if err != nil {
			return nil, err
		}
		switch {
		case header == nil && len(names) == 0:
			return nil, csverr.Configf("has_header", "missing column names: the source has no header line")
		case header != nil && len(names) > 0 && len(header) != len(names):
			return nil, csverr.Configf("column_names", "conflicting config: %d column_names but the header has %d fields", len(names), len(header))
		case len(names) == 0:
			names = header
			if err := checkNames(names); err != nil {
				return nil, err
			}
		}
	}

	cols, err := r.columns(names)
	if err != nil {
		return nil, err
	}

	if needsSource && r.needsInference(names) {
		if err := r.infer(cols); err != nil {
			return nil, err
		}
	}
	for i := range cols {
		if err := r.finishDefault(&cols[i]); err != nil {
			return nil, err
		}
	}

	if cfg.ConfiguredColumnsOnly {
		kept := cols[:0]
		for _, c := range cols {
			if _, ok := cfg.ColumnConfigs[c.Name]; ok {
				kept = append(kept, c)
			}
		}
		cols = kept
	}

	s := &Schema{
		Columns:         cols,
		Delimiter:       cfg.DelimiterOrDefault(),
		DelimWhitespace: cfg.DelimWhitespace,
		HasHeader:       cfg.HasHeaderOrDefault(),
		Width:           len(names),
	}
	if cfg.DelimWhitespace {
		s.Delimiter = ""
	}
	log.Printf("schema: resolved %d columns (width=%d, inferred=%d, sampled=%d rows)",
		len(s.Columns), s.Width, r.inferred, r.sampled)
	return s, nil
}

type resolver struct {
	cfg     config.CSV
	dialect pcsv.Dialect

	chunks   *datasource.Chunks
	lines    *pcsv.Splitter
	sampled  int
	inferred int
}

func (r *resolver) open(ctx context.Context, src datasource.Source) error {
	if src == nil {
		return errors.New("schema: nil source")
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("schema: open source: %w", err)
	}
	r.chunks = datasource.NewChunks(ctx, rc, r.cfg.ChunkSizeOrDefault())
	r.lines = pcsv.NewSplitter(r.chunks, r.dialect)
	return nil
}

func (r *resolver) close() {
	if err := r.chunks.Close(); err != nil {
		log.Printf("schema: close source: %v", err)
	}
}

// nextLine returns the next non-blank line, or ok=false at the end.
func (r *resolver) nextLine() (pcsv.Line, bool, error) {
	for {
		l, err := r.lines.Next()
		if err == io.EOF {
			return pcsv.Line{}, false, nil
		}
		if err != nil {
			return pcsv.Line{}, false, fmt.Errorf("schema: read source: %w", err)
		}
		if !r.dialect.Blank(l.Text) {
			return l, true, nil
		}
	}
}

// header returns the tokenized first non-blank line, or nil for an empty
// source.
func (r *resolver) header() ([]string, error) {
	l, ok, err := r.nextLine()
	if err != nil || !ok {
		return nil, err
	}
	fields, err := r.dialect.Split(l)
	if err != nil {
		return nil, &csverr.ConfigError{Field: "has_header", Msg: "cannot tokenize header line", Err: err}
	}
	return fields, nil
}

func checkNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if n == "" {
			return csverr.Configf("has_header", "header field %d is empty; set column_names", i+1)
		}
		if _, dup := seen[n]; dup {
			return csverr.Configf("has_header", "duplicate column name %q in header", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// needsInference reports whether any named column lacks a configured dtype.
// With names unknown yet (header pending) it assumes yes unless every column
// must be configured anyway.
func (r *resolver) needsInference(names []string) bool {
	if r.cfg.InferenceRowsOrDefault() == 0 {
		return false
	}
	if names == nil {
		if !r.cfg.ConfiguredColumnsOnly {
			return true
		}
		for _, cc := range r.cfg.ColumnConfigs {
			if cc.DType == "" {
				return true
			}
		}
		return false
	}
	for _, n := range names {
		cc, ok := r.cfg.ColumnConfigs[n]
		if r.cfg.ConfiguredColumnsOnly && !ok {
			continue
		}
		if cc.DType == "" {
			return true
		}
	}
	return false
}

// columns merges ColumnConfigs over names.
func (r *resolver) columns(names []string) ([]ColumnSpec, error) {
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	var unknown []string
	for n := range r.cfg.ColumnConfigs {
		if _, ok := known[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, csverr.Configf("column_configs", "no such column: %s", strings.Join(unknown, ", "))
	}

	cols := make([]ColumnSpec, len(names))
	for i, n := range names {
		cc := r.cfg.ColumnConfigs[n]
		c := ColumnSpec{
			Name:     n,
			Index:    i,
			Required: cc.Required,
			Default:  cc.Default,
			IsLabel:  cc.IsLabel,
			Inferred: cc.DType == "" && r.cfg.InferenceRowsOrDefault() > 0,
		}
		// Untyped columns stay String when inference is disabled.
		if cc.DType != "" {
			t, err := ParseDType(cc.DType)
			if err != nil {
				return nil, csverr.Configf("column_configs."+n+".dtype", "%v", err)
			}
			c.DType = t
		}
		cols[i] = c
	}
	return cols, nil
}

// infer samples data lines and assigns a DType to every inferred column.
func (r *resolver) infer(cols []ColumnSpec) error {
	limit := r.cfg.InferenceRowsOrDefault()
	width := len(cols)
	samples := make([][]string, width)
	for i, c := range cols {
		if !c.Inferred || c.Default == nil {
			continue
		}
		s, ok := defaultSample(c.Default)
		if !ok {
			return csverr.Configf("column_configs."+c.Name+".default", "unsupported value %v (%T)", c.Default, c.Default)
		}
		samples[i] = append(samples[i], s)
	}

	for r.sampled < limit {
		l, ok, err := r.nextLine()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		r.sampled++
		fields, err := r.dialect.Split(l)
		if err == nil && len(fields) != width {
			err = &csverr.MalformedRowError{Line: l.Num, Expected: width, Actual: len(fields), Err: csverr.ErrFieldCount}
		}
		if err != nil {
			log.Printf("schema: skipping sample: %v", err)
			continue
		}
		for i, c := range cols {
			if c.Inferred {
				samples[i] = append(samples[i], fields[i])
			}
		}
	}

	for i := range cols {
		if cols[i].Inferred {
			cols[i].DType = Infer(samples[i])
			r.inferred++
		}
	}
	return nil
}

// finishDefault converts the configured default to the column type.
func (r *resolver) finishDefault(c *ColumnSpec) error {
	v, err := normalizeDefault(c.Default, c.DType)
	if err != nil {
		return &csverr.ConfigError{Field: "column_configs." + c.Name + ".default", Msg: "incompatible default", Err: err}
	}
	c.Default = v
	return nil
}
