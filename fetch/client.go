package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the net/http-backed Fetcher used in production.
type Client struct {
	http *http.Client
}

// NewClient creates a Client with the given per-request timeout. A zero or
// negative timeout falls back to the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var payload io.Reader
	if len(req.Body) > 0 {
		payload = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, payload)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", req.Method, req.URL, err)
	}
	for name, value := range req.Header {
		httpReq.Header.Set(name, value)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", req.Method, req.URL, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s %s: %w", req.Method, req.URL, err)
	}

	header := make(map[string]string, len(httpResp.Header))
	for name := range httpResp.Header {
		header[name] = httpResp.Header.Get(name)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: header,
		Body:   body,
		Source: SourceNetwork,
	}, nil
}
