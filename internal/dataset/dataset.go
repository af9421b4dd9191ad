// Package dataset exposes a CSV source as a restartable, lazily decoded
// sequence of rows.
//
// A Dataset resolves its schema once (on the first ColumnNames, Schema or
// Iterator call) and then serves any number of independent passes. Each pass
// reopens the source and pulls chunks on demand; nothing beyond the current
// chunk and the unterminated tail of a record is held in memory.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"csvdataset/internal/config"
	"csvdataset/internal/csverr"
	"csvdataset/internal/datasource"
	"csvdataset/internal/decoder"
	"csvdataset/internal/metrics"
	"csvdataset/internal/schema"
)

// Dataset is safe for concurrent use. Each Rows it returns is not.
type Dataset struct {
	src      datasource.Source
	cfg      config.CSV
	job      string
	logEvery int

	group singleflight.Group
	mu    sync.Mutex
	sch   *schema.Schema
	dec   *decoder.Decoder
}

// Option customizes a Dataset.
type Option func(*Dataset)

// WithJob sets the job label attached to metrics (default "csvds").
func WithJob(job string) Option {
	return func(d *Dataset) {
		if job != "" {
			d.job = job
		}
	}
}

// WithLogEvery logs a progress line every n records of a pass. Zero, the
// default, disables progress logging.
func WithLogEvery(n int) Option {
	return func(d *Dataset) { d.logEvery = n }
}

// New returns a Dataset over src. No I/O happens until the schema is needed.
func New(src datasource.Source, cfg config.CSV, opts ...Option) *Dataset {
	d := &Dataset{src: src, cfg: cfg, job: "csvds"}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the options the Dataset was built with.
func (d *Dataset) Config() config.CSV { return d.cfg }

// ColumnNames returns the names of the kept columns in source order.
func (d *Dataset) ColumnNames(ctx context.Context) ([]string, error) {
	s, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return s.Names(), nil
}

// Schema resolves the schema on first use and returns the cached value
// afterwards. Concurrent first callers share one resolution. A failed
// resolution is returned to every waiter and is not cached.
func (d *Dataset) Schema(ctx context.Context) (*schema.Schema, error) {
	s, _, err := d.resolved(ctx)
	return s, err
}

func (d *Dataset) resolved(ctx context.Context) (*schema.Schema, *decoder.Decoder, error) {
	d.mu.Lock()
	s, dec := d.sch, d.dec
	d.mu.Unlock()
	if s != nil {
		return s, dec, nil
	}

	_, err, _ := d.group.Do("schema", func() (any, error) {
		d.mu.Lock()
		done := d.sch != nil
		d.mu.Unlock()
		if done {
			return nil, nil
		}

		start := time.Now()
		s, err := schema.Resolve(ctx, d.src, d.cfg)
		metrics.RecordStep(d.job, "resolve_schema", err, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("dataset: resolve schema: %w", err)
		}
		dec := decoder.New(s)

		d.mu.Lock()
		d.sch, d.dec = s, dec
		d.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sch, d.dec, nil
}

// Iterator starts a new pass over the source. The caller must Close the
// returned Rows.
func (d *Dataset) Iterator(ctx context.Context) (*Rows, error) {
	s, dec, err := d.resolved(ctx)
	if err != nil {
		return nil, err
	}
	if d.src == nil {
		return nil, errors.New("dataset: nil source")
	}
	rc, err := d.src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: open source: %w", err)
	}
	metrics.RecordPass(d.job)
	return newRows(ctx, rc, s, dec, d.cfg, d.job, d.logEvery), nil
}

// All returns a single-use sequence over one pass. Row errors are yielded
// with a zero Row and iteration continues; a terminal error is yielded once
// and ends the sequence. Breaking out of the loop closes the pass.
func (d *Dataset) All(ctx context.Context) iter.Seq2[decoder.Row, error] {
	return func(yield func(decoder.Row, error) bool) {
		rows, err := d.Iterator(ctx)
		if err != nil {
			yield(decoder.Row{}, err)
			return
		}
		defer rows.Close()
		for {
			row, err := rows.Next()
			if err == io.EOF {
				return
			}
			if !yield(row, err) {
				return
			}
			if err != nil && !csverr.IsRowError(err) {
				return
			}
		}
	}
}
