package observability

import (
	"context"
	"log/slog"
	"strings"
)

// Request keys embed full URLs; cap them so one hot page with a huge query
// string cannot flood the log stream.
const maxKeyAttrLen = 200

// Fields surfaced ahead of the rest of the payload, in this order, so cache
// traffic can be filtered by partition or strategy without parsing messages.
var wellKnownFields = []string{"key", "partition", "strategy", "status"}

// SlogObserver emits events to a slog.Logger. The event type becomes the log
// message and its prefix (router, hub, control) is broken out as a component
// attribute; well-known cache-traffic fields come before the remaining
// payload.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that emits to the given logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+2)
	if component, _, ok := strings.Cut(string(event.Type), "."); ok {
		attrs = append(attrs, slog.String("component", component))
	}
	attrs = append(attrs, slog.String("source", event.Source))

	for _, name := range wellKnownFields {
		if value, ok := event.Data[name]; ok {
			attrs = append(attrs, eventAttr(name, value))
		}
	}
	for name, value := range event.Data {
		if isWellKnown(name) {
			continue
		}
		attrs = append(attrs, eventAttr(name, value))
	}

	o.logger.LogAttrs(ctx, event.Level.SlogLevel(), string(event.Type), attrs...)
}

func isWellKnown(name string) bool {
	for _, known := range wellKnownFields {
		if name == known {
			return true
		}
	}
	return false
}

func eventAttr(name string, value any) slog.Attr {
	if s, ok := value.(string); ok && name == "key" && len(s) > maxKeyAttrLen {
		return slog.String(name, s[:maxKeyAttrLen]+"...")
	}
	return slog.Any(name, value)
}
