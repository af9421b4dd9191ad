// Package config defines the configuration model for CSV datasets and the
// pipelines that drive them from the command line. Field names mirror the
// JSON/YAML structure of pipeline files:
//
//	{
//	  "job":    "iris",
//	  "source": { "kind": "http", "http": { "url": "https://.../iris.csv.gz" }, "compression": "auto" },
//	  "csv": {
//	    "has_header": true,
//	    "column_configs": { "species": { "is_label": true } }
//	  }
//	}
//
// Every recognized option is an explicit field. Optional booleans and ints
// whose zero value is meaningful are pointers; the *OrDefault accessors apply
// the documented defaults so callers never read the raw pointers.
package config

import (
	"strings"

	"csvdataset/internal/csverr"
)

// Defaults for CSV options.
const (
	DefaultDelimiter     = ","
	DefaultInferenceRows = 100
	DefaultChunkSize     = 64 * 1024
)

// Data type names accepted in column configs.
const (
	DTypeInt    = "int"
	DTypeFloat  = "float"
	DTypeBool   = "bool"
	DTypeString = "string"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run; used as the metrics job label.
	Job     string  `json:"job" yaml:"job"`
	Source  Source  `json:"source" yaml:"source"`
	CSV     CSV     `json:"csv" yaml:"csv"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// Source identifies where the CSV bytes come from.
type Source struct {
	// Kind selects the implementation: "file", "http" or "postgres".
	Kind     string         `json:"kind" yaml:"kind"`
	File     SourceFile     `json:"file" yaml:"file"`
	HTTP     SourceHTTP     `json:"http" yaml:"http"`
	Postgres SourcePostgres `json:"postgres" yaml:"postgres"`

	// Compression is "", "none", "auto", "gzip", "zstd" or "xz". "auto"
	// picks by file extension and falls back to magic-byte sniffing.
	Compression string `json:"compression" yaml:"compression"`

	// Encoding names the source charset (e.g. "windows-1250"). Empty means
	// UTF-8.
	Encoding string `json:"encoding" yaml:"encoding"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL                string            `json:"url" yaml:"url"`
	Headers            map[string]string `json:"headers" yaml:"headers"`
	TimeoutMS          int               `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetries         int               `json:"max_retries" yaml:"max_retries"`
	RateLimitRPS       float64           `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// SourcePostgres holds configuration for the "postgres" source kind, which
// streams the result of Query through COPY ... TO STDOUT as CSV.
type SourcePostgres struct {
	DSN   string `json:"dsn" yaml:"dsn"`
	Query string `json:"query" yaml:"query"`
}

// Metrics selects a metrics backend for the CLI.
type Metrics struct {
	// Backend is "", "none", "pushgateway" or "datadog".
	Backend        string   `json:"backend" yaml:"backend"`
	PushgatewayURL string   `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string   `json:"datadog_addr" yaml:"datadog_addr"`
	Namespace      string   `json:"namespace" yaml:"namespace"`
	Tags           []string `json:"tags" yaml:"tags"`
}

// CSV enumerates every option recognized by the CSV dataset.
type CSV struct {
	// HasHeader treats the first line as the header (default true).
	HasHeader *bool `json:"has_header,omitempty" yaml:"has_header,omitempty"`

	// ColumnNames overrides header-derived names. Required when HasHeader is
	// false. When a header is present too, the counts must match.
	ColumnNames []string `json:"column_names,omitempty" yaml:"column_names,omitempty"`

	// ColumnConfigs carries explicit per-column typing and label marking.
	ColumnConfigs map[string]ColumnConfig `json:"column_configs,omitempty" yaml:"column_configs,omitempty"`

	// ConfiguredColumnsOnly drops every column absent from ColumnConfigs.
	ConfiguredColumnsOnly bool `json:"configured_columns_only,omitempty" yaml:"configured_columns_only,omitempty"`

	// Delimiter separates fields (default ","). May be several bytes.
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// DelimWhitespace splits fields on runs of spaces and tabs instead of
	// Delimiter.
	DelimWhitespace bool `json:"delim_whitespace,omitempty" yaml:"delim_whitespace,omitempty"`

	// SkipBlankLines drops wholly-empty lines (default true).
	SkipBlankLines *bool `json:"skip_blank_lines,omitempty" yaml:"skip_blank_lines,omitempty"`

	// InferenceRows bounds the number of data lines sampled for type
	// inference (default 100). Zero disables inference: untyped columns
	// become strings.
	InferenceRows *int `json:"inference_rows,omitempty" yaml:"inference_rows,omitempty"`

	// ChunkSize is the maximum number of bytes pulled from the source per
	// chunk (default 64 KiB).
	ChunkSize int `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
}

// ColumnConfig is the explicit configuration of one column.
type ColumnConfig struct {
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// DType is one of "int", "float", "bool", "string"; empty means infer.
	DType string `json:"dtype,omitempty" yaml:"dtype,omitempty"`
	// Default replaces empty values. JSON numbers arrive as float64; the
	// schema resolver converts the value to the column type.
	Default any  `json:"default,omitempty" yaml:"default,omitempty"`
	IsLabel bool `json:"is_label,omitempty" yaml:"is_label,omitempty"`
}

// Bool returns a pointer to b, for building configs in code.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n, for building configs in code.
func Int(n int) *int { return &n }

// HasHeaderOrDefault returns HasHeader, defaulting to true.
func (c CSV) HasHeaderOrDefault() bool {
	if c.HasHeader == nil {
		return true
	}
	return *c.HasHeader
}

// SkipBlankLinesOrDefault returns SkipBlankLines, defaulting to true.
func (c CSV) SkipBlankLinesOrDefault() bool {
	if c.SkipBlankLines == nil {
		return true
	}
	return *c.SkipBlankLines
}

// InferenceRowsOrDefault returns InferenceRows, defaulting to
// DefaultInferenceRows.
func (c CSV) InferenceRowsOrDefault() int {
	if c.InferenceRows == nil {
		return DefaultInferenceRows
	}
	return *c.InferenceRows
}

// DelimiterOrDefault returns Delimiter, defaulting to ",".
func (c CSV) DelimiterOrDefault() string {
	if c.Delimiter == "" {
		return DefaultDelimiter
	}
	return c.Delimiter
}

// ChunkSizeOrDefault returns ChunkSize, defaulting to DefaultChunkSize.
func (c CSV) ChunkSizeOrDefault() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

// Validate checks the options that can be checked without reading the
// source. It returns the first problem as a *csverr.ConfigError.
func (c CSV) Validate() error {
	if c.DelimWhitespace && c.Delimiter != "" {
		return csverr.Configf("delimiter", "conflicting config: delimiter %q set together with delim_whitespace", c.Delimiter)
	}
	if d := c.Delimiter; d != "" && strings.ContainsAny(d, "\"\r\n") {
		return csverr.Configf("delimiter", "must not contain quotes or line breaks: %q", d)
	}
	if c.InferenceRows != nil && *c.InferenceRows < 0 {
		return csverr.Configf("inference_rows", "must not be negative, got %d", *c.InferenceRows)
	}
	if c.ChunkSize < 0 {
		return csverr.Configf("chunk_size", "must not be negative, got %d", c.ChunkSize)
	}
	if !c.HasHeaderOrDefault() && len(c.ColumnNames) == 0 {
		return csverr.Configf("column_names", "missing column names: has_header is false and no column_names given")
	}

	seen := make(map[string]struct{}, len(c.ColumnNames))
	for i, n := range c.ColumnNames {
		if n == "" {
			return csverr.Configf("column_names", "name at index %d is empty", i)
		}
		if _, dup := seen[n]; dup {
			return csverr.Configf("column_names", "duplicate column name %q", n)
		}
		seen[n] = struct{}{}
	}

	for name, cc := range c.ColumnConfigs {
		switch strings.ToLower(cc.DType) {
		case "", DTypeInt, DTypeFloat, DTypeBool, DTypeString:
		default:
			return csverr.Configf("column_configs."+name+".dtype", "unknown dtype %q", cc.DType)
		}
	}
	if c.ConfiguredColumnsOnly && len(c.ColumnConfigs) == 0 {
		return csverr.Configf("configured_columns_only", "conflicting config: no column_configs given, every column would be dropped")
	}
	return nil
}
