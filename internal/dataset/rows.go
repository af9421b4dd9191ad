package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"csvdataset/internal/config"
	"csvdataset/internal/datasource"
	"csvdataset/internal/decoder"
	"csvdataset/internal/metrics"
	pcsv "csvdataset/internal/parser/csv"
	"csvdataset/internal/schema"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("dataset: rows closed")

// Rows is one pass over the source.
//
//	rows, err := ds.Iterator(ctx)
//	...
//	defer rows.Close()
//	for {
//		row, err := rows.Next()
//		if err == io.EOF {
//			break
//		}
//		if csverr.IsRowError(err) {
//			continue // bad record; the pass goes on
//		}
//		if err != nil {
//			return err
//		}
//		...
//	}
type Rows struct {
	chunks  *datasource.Chunks
	lines   *pcsv.Splitter
	dialect pcsv.Dialect
	dec     *decoder.Decoder

	skipBlank bool
	header    bool // header line not consumed yet
	line      int
	err       error
	closed    bool

	job      string
	logEvery int
	decoded  int64
	rowErrs  int64
	blanks   int64
}

func newRows(ctx context.Context, rc io.ReadCloser, s *schema.Schema, dec *decoder.Decoder, cfg config.CSV, job string, logEvery int) *Rows {
	chunks := datasource.NewChunks(ctx, rc, cfg.ChunkSizeOrDefault())
	d := s.Dialect()
	return &Rows{
		chunks:    chunks,
		lines:     pcsv.NewSplitter(chunks, d),
		dialect:   d,
		dec:       dec,
		skipBlank: cfg.SkipBlankLinesOrDefault(),
		header:    s.HasHeader,
		job:       job,
		logEvery:  logEvery,
	}
}

// Next returns the next decoded row, or io.EOF after the last one.
//
// A record that cannot be tokenized or decoded yields an error for which
// csverr.IsRowError reports true; the pass stays usable and the following
// call moves on to the next record. Any other error ends the pass and is
// returned again by every later call.
func (r *Rows) Next() (decoder.Row, error) {
	if r.err != nil {
		return decoder.Row{}, r.err
	}
	for {
		l, err := r.lines.Next()
		if err == io.EOF {
			r.finish(io.EOF)
			return decoder.Row{}, io.EOF
		}
		if err != nil {
			err = fmt.Errorf("dataset: read source: %w", err)
			r.finish(err)
			return decoder.Row{}, err
		}
		r.line = l.Num
		r.progress()

		blank := r.dialect.Blank(l.Text)
		if r.header {
			// The header is the first non-blank line, as during resolution.
			if !blank {
				r.header = false
			}
			continue
		}
		if blank && r.skipBlank {
			r.blanks++
			continue
		}

		fields, err := r.dialect.Split(l)
		if err != nil {
			r.rowErrs++
			return decoder.Row{}, err
		}
		row, err := r.dec.Decode(fields, l.Num)
		if err != nil {
			r.rowErrs++
			return decoder.Row{}, err
		}
		r.decoded++
		return row, nil
	}
}

// Line returns the number of the record most recently read, counting the
// header and blank lines. It is 0 before the first call to Next.
func (r *Rows) Line() int { return r.line }

// Err returns the terminal error of the pass, or nil if the pass ended
// cleanly or is still running.
func (r *Rows) Err() error {
	if r.err == io.EOF || r.err == ErrClosed {
		return nil
	}
	return r.err
}

// Close releases the source. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.err == nil {
		r.err = ErrClosed
		r.flushCounts()
	}
	return r.chunks.Close()
}

func (r *Rows) finish(err error) {
	r.err = err
	if err == io.EOF {
		log.Printf("dataset: pass done lines=%d decoded=%d row_errors=%d skipped_blank=%d",
			r.line, r.decoded, r.rowErrs, r.blanks)
	} else {
		log.Printf("dataset: pass aborted at line %d: %v", r.line, err)
	}
	r.flushCounts()
}

// flushCounts reports this pass's counters once.
func (r *Rows) flushCounts() {
	metrics.RecordRow(r.job, metrics.KindDecoded, r.decoded)
	metrics.RecordRow(r.job, metrics.KindRowErrors, r.rowErrs)
	metrics.RecordRow(r.job, metrics.KindSkippedBlank, r.blanks)
	r.decoded, r.rowErrs, r.blanks = 0, 0, 0
}

func (r *Rows) progress() {
	if r.logEvery > 0 && r.line%r.logEvery == 0 {
		log.Printf("dataset: line=%d decoded=%d row_errors=%d", r.line, r.decoded, r.rowErrs)
	}
}
