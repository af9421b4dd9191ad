package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Transcode wraps src so that every pass is decoded from the named charset
// (any WHATWG label such as "windows-1250", "iso-8859-2", "utf-16le") into
// UTF-8. An empty name or a UTF-8 label returns src unchanged.
func Transcode(src Source, charset string) (Source, error) {
	charset = strings.TrimSpace(charset)
	if charset == "" {
		return src, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("datasource: unknown encoding %q: %w", charset, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return src, nil
	}

	return SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		rc, err := src.Open(ctx)
		if err != nil {
			return nil, err
		}
		return &ReadCloser{
			Reader:  transform.NewReader(rc, enc.NewDecoder()),
			Closers: []io.Closer{rc},
		}, nil
	}), nil
}
