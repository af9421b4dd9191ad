// Package pgcopy implements a byte source that streams the result of a
// Postgres query as CSV using COPY ... TO STDOUT. Each Open runs the query on
// a fresh connection, so every pass sees the data from the start.
package pgcopy

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Config holds the connection string and the query whose rows are exported.
type Config struct {
	DSN   string // passed to pgx.Connect
	Query string // a SELECT (or any query COPY accepts in parentheses)

	// Header makes COPY emit the column names as the first line. It should
	// match the dataset's has_header setting.
	Header bool
}

// Source is a restartable Postgres COPY source.
type Source struct {
	cfg Config
}

// NewSource validates cfg and returns a Source. No connection is made until
// Open.
func NewSource(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("pgcopy: dsn must not be empty")
	}
	if _, err := copyStatement(cfg.Query, cfg.Header); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg}, nil
}

// copyStatement wraps q in a COPY that emits CSV, with a header line when
// header is set.
func copyStatement(q string, header bool) (string, error) {
	q = strings.TrimSpace(q)
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if q == "" {
		return "", fmt.Errorf("pgcopy: query must not be empty")
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("pgcopy: query must be a single statement")
	}
	return fmt.Sprintf("COPY (%s) TO STDOUT WITH (FORMAT csv, HEADER %t)", q, header), nil
}

// Open connects, starts the COPY and returns a reader over its output. Close
// on the returned reader cancels the COPY if it is still running and closes
// the connection.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	stmt, err := copyStatement(s.cfg.Query, s.cfg.Header)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, s.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgcopy: connect: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		tag, err := conn.PgConn().CopyTo(cctx, pw, stmt)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("pgcopy: copy: %w", err))
			return
		}
		log.Printf("pgcopy: exported %d rows", tag.RowsAffected())
		pw.Close()
	}()

	return &copyReader{
		PipeReader: pr,
		closeFn: func() error {
			cancel()
			pr.Close()
			<-done
			return conn.Close(context.Background())
		},
	}, nil
}

type copyReader struct {
	*io.PipeReader
	closeFn func() error
	closed  bool
}

func (r *copyReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeFn()
}
