// Package fetch abstracts the upstream network behind a small client
// interface so the strategy router can be exercised without a real network.
package fetch

import (
	"context"
	"maps"
	"net/http"
)

// Source tags where a response came from. It is diagnostic only; callers may
// surface it (e.g. in a response header) but nothing depends on it.
type Source string

const (
	SourceNetwork  Source = "network"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Request describes an upstream request: method, absolute URL, headers, and
// the payload for methods that carry one. Bodies are held as bytes so a
// request can be retried without re-reading a stream.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// IsGET reports whether the request is cacheable by method. Only GET
// requests ever touch a cache partition.
func (r Request) IsGET() bool {
	return r.Method == http.MethodGet
}

// Response is the materialized result of a fetch: status, headers, and the
// full body. Bodies are read eagerly so responses can be stored and replayed
// byte-for-byte.
type Response struct {
	Status int
	Header map[string]string
	Body   []byte
	Source Source
}

// OK reports whether the response is cacheable: HTTP 200 exactly.
func (r *Response) OK() bool {
	return r.Status == http.StatusOK
}

// Clone returns a deep copy so stored responses are never aliased by
// callers.
func (r *Response) Clone() *Response {
	clone := *r
	clone.Header = maps.Clone(r.Header)
	clone.Body = append([]byte(nil), r.Body...)
	return &clone
}

// Fetcher performs an upstream fetch. Implementations must honor ctx
// cancellation and return an error only for transport-level failures;
// non-2xx statuses are responses, not errors.
type Fetcher interface {
	Do(ctx context.Context, req Request) (*Response, error)
}
