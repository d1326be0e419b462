package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/offlinekit/edgecache/fetch"
)

// storedResponse is the persisted form of a cached response.
type storedResponse struct {
	Status   int               `json:"status"`
	Header   map[string]string `json:"header,omitempty"`
	Body     []byte            `json:"body"`
	StoredAt time.Time         `json:"stored_at"`
}

func encodeResponse(resp *fetch.Response) ([]byte, error) {
	stored := storedResponse{
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
		StoredAt: time.Now(),
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

func decodeResponse(data []byte) (*fetch.Response, error) {
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &fetch.Response{
		Status: stored.Status,
		Header: stored.Header,
		Body:   stored.Body,
		Source: fetch.SourceCache,
	}, nil
}
