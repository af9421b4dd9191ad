package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"csvdataset/internal/config"
	"csvdataset/internal/csverr"
	"csvdataset/internal/dataset"
	"csvdataset/internal/datasource"
	"csvdataset/internal/storage/sqlite"
)

// runOptions carries the CLI flags that shape a run.
type runOptions struct {
	limit      int  // stop after this many decoded rows; 0 means all
	columns    bool // print the resolved column names and exit
	failFast   bool // abort on the first row error
	sqlitePath string
	table      string
	logEvery   int
}

// runStats summarizes a finished run.
type runStats struct {
	Decoded   int64
	RowErrors int64
	Elapsed   time.Duration
}

// run decodes the dataset described by p. Rows go to the SQLite table when
// opts.sqlitePath is set, otherwise to out as JSON lines. Output already
// buffered is flushed on every return; a failed flush fails the run.
func run(ctx context.Context, p config.Pipeline, src datasource.Source, opts runOptions, out io.Writer) (st runStats, err error) {
	start := time.Now()

	ds := dataset.New(src, p.CSV, dataset.WithJob(p.Job), dataset.WithLogEvery(opts.logEvery))

	bw := bufio.NewWriterSize(out, 64*1024)
	defer func() {
		if ferr := bw.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush output: %w", ferr)
		}
	}()

	if opts.columns {
		names, err := ds.ColumnNames(ctx)
		if err != nil {
			return st, err
		}
		for _, n := range names {
			fmt.Fprintln(bw, n)
		}
		return st, nil
	}

	var sink *sqlite.Sink
	if opts.sqlitePath != "" {
		s, err := ds.Schema(ctx)
		if err != nil {
			return st, err
		}
		table := opts.table
		if table == "" {
			table = p.Job
		}
		sink, err = sqlite.Open(ctx, sqlite.Config{DSN: opts.sqlitePath, Table: table}, s)
		if err != nil {
			return st, err
		}
	}

	rows, err := ds.Iterator(ctx)
	if err != nil {
		abort(sink)
		return st, err
	}
	defer rows.Close()

	enc := json.NewEncoder(bw)
	for opts.limit <= 0 || st.Decoded < int64(opts.limit) {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if csverr.IsRowError(err) {
			st.RowErrors++
			if opts.failFast {
				abort(sink)
				return st, err
			}
			log.Printf("skip: %v", err)
			continue
		}
		if err != nil {
			abort(sink)
			return st, err
		}

		if sink != nil {
			err = sink.Write(ctx, row)
		} else {
			err = enc.Encode(row)
		}
		if err != nil {
			abort(sink)
			return st, fmt.Errorf("write row at line %d: %w", row.Line, err)
		}
		st.Decoded++
	}

	if sink != nil {
		if err := sink.Close(); err != nil {
			return st, err
		}
	}
	st.Elapsed = time.Since(start)
	return st, nil
}

func abort(sink *sqlite.Sink) {
	if sink == nil {
		return
	}
	if err := sink.Abort(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("sqlite: abort: %v", err)
	}
}
