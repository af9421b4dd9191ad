// Package sqlite materializes decoded rows into a SQLite table using
// database/sql. The table is created from the resolved schema; rows are
// inserted in batches, one transaction per batch, through a prepared INSERT.
//
// A metadata table records the fingerprint of the schema each table was
// created for, so appending rows decoded under a different schema fails
// instead of silently mixing layouts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"csvdataset/internal/decoder"
	"csvdataset/internal/schema"
	sqliteddl "csvdataset/internal/storage/sqlite/ddl"
)

const metaTable = "csvds_schema"

// Sink writes rows of one schema into one table. It is not safe for
// concurrent use.
type Sink struct {
	db   *sql.DB
	cfg  Config
	cols []slot

	insertSQL string
	tx        *sql.Tx
	stmt      *sql.Stmt
	pending   int
	written   int64
	closed    bool
}

// slot locates a schema column inside a decoded Row.
type slot struct {
	label bool
	pos   int
}

// Open connects to cfg.DSN, creates the table for s if needed and checks
// that an existing table was created for the same schema.
func Open(ctx context.Context, cfg Config, s *schema.Schema) (*Sink, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("sqlite: table must not be empty")
	}
	td, err := sqliteddl.FromSchema(cfg.Table, s)
	if err != nil {
		return nil, err
	}
	createSQL, err := sqliteddl.BuildCreateTableSQL(td)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	sk := &Sink{db: db, cfg: cfg, cols: slots(s), insertSQL: insertSQL(cfg.Table, s.Names())}
	if err := sk.ensureTable(ctx, createSQL, s.Fingerprint()); err != nil {
		db.Close()
		return nil, err
	}
	return sk, nil
}

func slots(s *schema.Schema) []slot {
	out := make([]slot, len(s.Columns))
	var f, l int
	for i, c := range s.Columns {
		if c.IsLabel {
			out[i] = slot{label: true, pos: l}
			l++
		} else {
			out[i] = slot{pos: f}
			f++
		}
	}
	return out
}

func insertSQL(table string, names []string) string {
	cols := make([]string, len(names))
	ph := make([]string, len(names))
	for i, n := range names {
		cols[i] = sqliteddl.QuoteIdent(n)
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteddl.QuoteFQN(table), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func (s *Sink) ensureTable(ctx context.Context, createSQL string, fp uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (table_name TEXT PRIMARY KEY, fingerprint TEXT NOT NULL)`,
		sqliteddl.QuoteIdent(metaTable))); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", metaTable, err)
	}

	want := fmt.Sprintf("%016x", fp)
	var have string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT fingerprint FROM %s WHERE table_name = ?`, sqliteddl.QuoteIdent(metaTable)),
		s.cfg.Table).Scan(&have)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("sqlite: create table %s: %w", s.cfg.Table, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (table_name, fingerprint) VALUES (?, ?)`, sqliteddl.QuoteIdent(metaTable)),
			s.cfg.Table, want); err != nil {
			return fmt.Errorf("sqlite: record fingerprint: %w", err)
		}
		log.Printf("sqlite: created table %s (fingerprint %s)", s.cfg.Table, want)
	case err != nil:
		return fmt.Errorf("sqlite: read fingerprint: %w", err)
	case have != want:
		return fmt.Errorf("sqlite: table %s was created for a different schema (fingerprint %s, have %s)",
			s.cfg.Table, have, want)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Write queues row for insertion, committing whenever a batch fills up.
func (s *Sink) Write(ctx context.Context, row decoder.Row) error {
	if s.closed {
		return fmt.Errorf("sqlite: write on closed sink")
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin tx: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, s.insertSQL)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: prepare insert: %w", err)
		}
		s.tx, s.stmt = tx, stmt
	}

	args, err := s.args(row)
	if err != nil {
		return err
	}
	if _, err := s.stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("sqlite: insert line %d: %w", row.Line, err)
	}
	s.pending++
	if s.pending >= s.cfg.batchSize() {
		return s.commit()
	}
	return nil
}

func (s *Sink) args(row decoder.Row) ([]any, error) {
	fv, lv := row.Features.Values(), row.Label.Values()
	args := make([]any, len(s.cols))
	for i, c := range s.cols {
		vals := fv
		if c.label {
			vals = lv
		}
		if c.pos >= len(vals) {
			return nil, fmt.Errorf("sqlite: row at line %d does not match the table schema", row.Line)
		}
		v := vals[c.pos]
		if b, ok := v.(bool); ok {
			if b {
				v = int64(1)
			} else {
				v = int64(0)
			}
		}
		args[i] = v
	}
	return args, nil
}

func (s *Sink) commit() error {
	if s.tx == nil {
		return nil
	}
	_ = s.stmt.Close()
	err := s.tx.Commit()
	s.tx, s.stmt = nil, nil
	if err != nil {
		s.pending = 0
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	s.written += int64(s.pending)
	s.pending = 0
	return nil
}

// Written returns the number of committed rows.
func (s *Sink) Written() int64 { return s.written }

// Close commits pending rows and closes the database.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.commit()
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("sqlite: close: %w", cerr)
	}
	log.Printf("sqlite: wrote %d rows to %s", s.written, s.cfg.Table)
	return err
}

// Abort rolls back pending rows and closes the database.
func (s *Sink) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil {
		_ = s.stmt.Close()
		_ = s.tx.Rollback()
		s.tx, s.stmt, s.pending = nil, nil, 0
	}
	return s.db.Close()
}
