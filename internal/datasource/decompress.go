package datasource

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression kinds understood by Decompress.
const (
	CompressionNone = "none"
	CompressionAuto = "auto"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionXZ   = "xz"
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXZ   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Decompress wraps src so that every pass is decompressed on the fly.
//
// kind is one of the Compression* constants ("" means none). With "auto",
// the extension of name (a path or URL) decides; when it is inconclusive the
// first bytes of each pass are sniffed for gzip, zstd and xz magic numbers.
func Decompress(src Source, kind, name string) (Source, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case "", CompressionNone:
		return src, nil
	case CompressionAuto:
		if k := compressionFromName(name); k != "" {
			kind = k
		}
	case CompressionGzip, CompressionZstd, CompressionXZ:
	default:
		return nil, fmt.Errorf("datasource: unknown compression %q", kind)
	}

	return SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		rc, err := src.Open(ctx)
		if err != nil {
			return nil, err
		}
		out, err := decompressReader(rc, kind)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return out, nil
	}), nil
}

// compressionFromName maps a file extension to a compression kind.
func compressionFromName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	case ".xz":
		return CompressionXZ
	}
	return ""
}

func decompressReader(rc io.ReadCloser, kind string) (io.ReadCloser, error) {
	var r io.Reader = rc
	if kind == CompressionAuto {
		br := bufio.NewReader(rc)
		head, _ := br.Peek(len(magicXZ))
		switch {
		case bytes.HasPrefix(head, magicGzip):
			kind = CompressionGzip
		case bytes.HasPrefix(head, magicZstd):
			kind = CompressionZstd
		case bytes.HasPrefix(head, magicXZ):
			kind = CompressionXZ
		default:
			kind = CompressionNone
		}
		r = br
	}

	switch kind {
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("datasource: gzip reader: %w", err)
		}
		return &ReadCloser{Reader: gz, Closers: []io.Closer{gz, rc}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("datasource: zstd reader: %w", err)
		}
		return &ReadCloser{Reader: zr, Closers: []io.Closer{closerFunc(func() error { zr.Close(); return nil }), rc}}, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("datasource: xz reader: %w", err)
		}
		return &ReadCloser{Reader: xr, Closers: []io.Closer{rc}}, nil
	default:
		return &ReadCloser{Reader: r, Closers: []io.Closer{rc}}, nil
	}
}
