package router

import (
	"net/http"

	"github.com/offlinekit/edgecache/fetch"
)

const offlineBody = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>This content is not available right now. It will load once the connection is back.</p>
</body>
</html>
`

// Fallback produces the offline response returned when neither cache nor
// network can satisfy a request.
type Fallback struct {
	status int
	header map[string]string
	body   []byte
}

// NewFallback creates a Fallback serving the given status and body.
func NewFallback(status int, contentType string, body []byte) *Fallback {
	return &Fallback{
		status: status,
		header: map[string]string{"Content-Type": contentType},
		body:   body,
	}
}

// DefaultFallback returns the built-in offline page: a 503 HTML document.
func DefaultFallback() *Fallback {
	return NewFallback(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlineBody))
}

// Response materializes a fresh offline response. Each call returns an
// independent copy so callers can never corrupt the canned payload.
func (f *Fallback) Response() *fetch.Response {
	resp := &fetch.Response{
		Status: f.status,
		Header: f.header,
		Body:   f.body,
		Source: fetch.SourceFallback,
	}
	return resp.Clone()
}
