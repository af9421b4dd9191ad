package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"csvdataset/internal/csverr"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "source.http.url",
// "csv.column_names"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; metrics will be labeled with a generic job name",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateCSV(p.CSV)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		return append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	case "http":
		u, err := url.Parse(s.HTTP.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{SeverityError, "source.http.url", fmt.Sprintf("http source requires an absolute URL, got %q", s.HTTP.URL)})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.max_retries", "max_retries must not be negative"})
		}
		if s.HTTP.RateLimitRPS < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.rate_limit_rps", "rate_limit_rps must not be negative"})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{SeverityWarning, "source.http.insecure_skip_verify", "TLS verification is disabled"})
		}
	case "postgres":
		if strings.TrimSpace(s.Postgres.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "source.postgres.dsn", "postgres source requires a DSN"})
		}
		if strings.TrimSpace(s.Postgres.Query) == "" {
			issues = append(issues, Issue{SeverityError, "source.postgres.query", "postgres source requires a query"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q (want file, http or postgres)", s.Kind)})
	}

	switch strings.ToLower(s.Compression) {
	case "", "none", "auto", "gzip", "zstd", "xz":
	default:
		issues = append(issues, Issue{SeverityError, "source.compression", fmt.Sprintf("unknown compression %q", s.Compression)})
	}
	return issues
}

func validateCSV(c CSV) []Issue {
	var issues []Issue
	if err := c.Validate(); err != nil {
		path := "csv"
		var ce *csverr.ConfigError
		if errors.As(err, &ce) && ce.Field != "" {
			path = "csv." + ce.Field
		}
		issues = append(issues, Issue{SeverityError, path, err.Error()})
	}

	labels := 0
	for _, cc := range c.ColumnConfigs {
		if cc.IsLabel {
			labels++
		}
	}
	if len(c.ColumnConfigs) > 0 && labels == 0 {
		issues = append(issues, Issue{SeverityWarning, "csv.column_configs", "no column is marked is_label; rows will carry features only"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			return []Issue{{SeverityWarning, "metrics.pushgateway_url", "pushgateway_url is empty; the CLI flag or PUSHGATEWAY_URL must supply it"}}
		}
	case "datadog":
		if m.DatadogAddr == "" {
			return []Issue{{SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr"}}
		}
	default:
		return []Issue{{SeverityWarning, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)}}
	}
	return nil
}
