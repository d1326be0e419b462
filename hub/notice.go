// Package hub broadcasts gateway notices to subscribed clients: strategy
// changes, cache clears, and partition rollovers. Each subscriber gets a
// buffered channel; a slow subscriber drops notices rather than blocking the
// gateway.
package hub

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// NoticeKind tags the control event a notice reports.
type NoticeKind string

const (
	NoticeStrategyChanged     NoticeKind = "strategy-changed"
	NoticeCachesCleared       NoticeKind = "caches-cleared"
	NoticePartitionsActivated NoticeKind = "partitions-activated"
)

// Notice is a broadcast message delivered to every subscriber.
type Notice struct {
	ID        string         `json:"id"`
	Kind      NoticeKind     `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewNotice builds a Notice with a fresh UUIDv7 id and the current time.
func NewNotice(kind NoticeKind, data map[string]any) Notice {
	return Notice{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Clone returns a copy whose Data map is independent of the original.
func (n Notice) Clone() Notice {
	clone := n
	clone.Data = maps.Clone(n.Data)
	return clone
}

func (n Notice) String() string {
	return fmt.Sprintf("Notice{ID: %s, Kind: %s}", n.ID, n.Kind)
}
