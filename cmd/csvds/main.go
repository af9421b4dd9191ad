// Command csvds decodes a CSV dataset described by a pipeline file and prints
// the rows as JSON lines or materializes them into a SQLite table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"csvdataset/internal/config"
	"csvdataset/internal/metrics"
	"csvdataset/internal/metrics/datadog"
	"csvdataset/internal/metrics/prompush"
)

func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		opts              runOptions
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "pipeline.json", "pipeline config path (.json, .yaml or .yml)")
	flag.IntVar(&opts.limit, "limit", 0, "stop after this many decoded rows (0 = all)")
	flag.StringVar(&opts.sqlitePath, "sqlite", "", "write rows into this SQLite database instead of stdout")
	flag.StringVar(&opts.table, "table", "", "SQLite table name (default: job name)")
	flag.BoolVar(&opts.columns, "columns", false, "print the resolved column names and exit")
	flag.BoolVar(&opts.failFast, "fail-fast", false, "abort on the first malformed or undecodable row")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides config and METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides config and PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
		opts.logEvery = 100000
	}

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid: %v", cfgPath)
	}
	if validate {
		fmt.Fprintf(os.Stderr, "configuration is valid: %v\n", cfgPath)
		return
	}

	if p.Job == "" {
		p.Job = "csvds"
	}
	if opts.sqlitePath != "" && opts.table == "" {
		opts.table = p.Job
	}

	flush := setupMetrics(p, metricsBackendFlg, pushGatewayURLFlg, *verbose)

	src, err := buildSource(p.Source, p.CSV)
	if err != nil {
		fatalf("source: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := run(ctx, p, src, opts, os.Stdout)
	flush()
	if err != nil {
		fatalf("%v", err)
	}
	if *verbose {
		log.Printf("completed: decoded=%d row_errors=%d in %s",
			st.Decoded, st.RowErrors, st.Elapsed.Truncate(time.Millisecond))
	}
}

// setupMetrics installs the selected backend and returns a function that
// flushes it. Backend choice: flag, then METRICS_BACKEND, then config.
func setupMetrics(p config.Pipeline, backendFlg, gwURLFlg string, verbose bool) func() {
	nop := func() {}

	backendName := backendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = p.Metrics.Backend
	}

	var b metrics.Backend
	switch backendName {
	case "pushgateway":
		gwURL := firstNonEmpty(gwURLFlg, os.Getenv("PUSHGATEWAY_URL"), p.Metrics.PushgatewayURL, "http://localhost:9091")
		pb, err := prompush.NewBackend(p.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, p.Job)
		b = pb

	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.DatadogAddr,
			Namespace:  p.Metrics.Namespace,
			GlobalTags: p.Metrics.Tags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: addr=%v, backend=%v", p.Metrics.DatadogAddr, backendName)
		b = db

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return nop

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return nop
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
