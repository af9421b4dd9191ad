package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Source is a restartable byte source backed by an HTTP GET. Each Open
// fetches the URL again from the start.
type Source struct {
	client  *Client
	url     string
	headers http.Header
}

// NewSource binds client to url. headers are sent with every request.
func NewSource(client *Client, url string, headers http.Header) *Source {
	return &Source{client: client, url: url, headers: headers}
}

// URL returns the fetched URL.
func (s *Source) URL() string { return s.url }

// Open fetches the URL and returns the response body. Any status outside 2xx
// is an error; 206 is rejected too because a partial body would silently
// truncate the dataset.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return nil, fmt.Errorf("httpds: GET %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.StatusCode == http.StatusPartialContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("httpds: GET %s: unexpected status %d: %q", s.url, resp.StatusCode, snippet)
	}
	return resp.Body, nil
}
