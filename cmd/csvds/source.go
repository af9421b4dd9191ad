package main

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"csvdataset/internal/config"
	"csvdataset/internal/datasource"
	"csvdataset/internal/datasource/file"
	"csvdataset/internal/datasource/httpds"
	"csvdataset/internal/datasource/pgcopy"
)

// buildSource turns the source section of a pipeline into a restartable
// Source: the raw transport first, then decompression, then charset
// decoding. c supplies the settings a generated source has to agree with.
func buildSource(s config.Source, c config.CSV) (datasource.Source, error) {
	var (
		raw  datasource.Source
		name string
	)
	switch s.Kind {
	case "file":
		raw, name = file.NewLocal(s.File.Path), s.File.Path
	case "http":
		h := make(http.Header, len(s.HTTP.Headers))
		for k, v := range s.HTTP.Headers {
			h.Set(k, v)
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(s.HTTP.TimeoutMS) * time.Millisecond,
			MaxRetries:         s.HTTP.MaxRetries,
			RateLimitRPS:       s.HTTP.RateLimitRPS,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
		})
		raw = httpds.NewSource(client, s.HTTP.URL, h)
		name = s.HTTP.URL
		if u, err := url.Parse(s.HTTP.URL); err == nil {
			name = u.Path
		}
	case "postgres":
		src, err := pgcopy.NewSource(pgcopy.Config{
			DSN:    s.Postgres.DSN,
			Query:  s.Postgres.Query,
			Header: c.HasHeaderOrDefault(),
		})
		if err != nil {
			return nil, err
		}
		raw = src
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Kind)
	}

	src, err := datasource.Decompress(raw, s.Compression, name)
	if err != nil {
		return nil, err
	}
	return datasource.Transcode(src, s.Encoding)
}
