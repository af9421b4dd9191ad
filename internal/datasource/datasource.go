// Package datasource defines the byte-source abstraction consumed by the CSV
// dataset and the pull iterator that turns one opened pass into a lazy
// sequence of byte chunks.
//
// A Source must be restartable: every Open returns a fresh reader positioned
// at the start of the data. The dataset opens the source once for schema
// resolution and once per iteration pass.
package datasource

import (
	"bytes"
	"context"
	"io"
)

// Source produces fresh, ordered byte streams.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f(ctx).
func (f SourceFunc) Open(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// Bytes returns a Source that replays b on every Open.
func Bytes(b []byte) Source {
	return SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(b)), nil
	})
}

// Chunks pulls byte chunks of at most size bytes from an opened pass. The
// slice returned by Next is only valid until the following call.
type Chunks struct {
	ctx  context.Context
	rc   io.ReadCloser
	buf  []byte
	err  error
	done bool
}

// NewChunks wraps rc. A non-positive size selects 64 KiB.
func NewChunks(ctx context.Context, rc io.ReadCloser, size int) *Chunks {
	if size <= 0 {
		size = 64 * 1024
	}
	return &Chunks{ctx: ctx, rc: rc, buf: make([]byte, size)}
}

// Next returns the next non-empty chunk, or io.EOF once the stream is
// exhausted. Any other error is sticky.
func (c *Chunks) Next() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	for {
		if err := c.ctx.Err(); err != nil {
			c.err = err
			return nil, err
		}
		n, err := c.rc.Read(c.buf)
		if n > 0 {
			if err != nil && err != io.EOF {
				c.err = err
			} else if err == io.EOF {
				c.err = io.EOF
			}
			return c.buf[:n], nil
		}
		if err != nil {
			c.err = err
			return nil, err
		}
	}
}

// Close closes the underlying reader. It is safe to call more than once.
func (c *Chunks) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	return c.rc.Close()
}

// ReadCloser pairs a Reader with an independent Closer; Close runs every
// closer in order and returns the first error.
type ReadCloser struct {
	io.Reader
	Closers []io.Closer
}

// Close closes all wrapped closers.
func (r *ReadCloser) Close() error {
	var first error
	for _, c := range r.Closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
