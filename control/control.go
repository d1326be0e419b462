// Package control implements the gateway's side-channel command plane:
// strategy changes, cache clears, and partition rollover, dispatched by tag
// and announced to subscribed clients through the hub.
package control

import (
	"context"
	"fmt"

	"github.com/offlinekit/edgecache/hub"
	"github.com/offlinekit/edgecache/observability"
	"github.com/offlinekit/edgecache/router"
)

// Kind tags a control command.
type Kind string

const (
	KindSetStrategy Kind = "set-strategy"
	KindClearCaches Kind = "clear-caches"
	KindActivate    Kind = "activate"
	KindStats       Kind = "stats"
)

// Command is an incoming control message. Only the fields relevant to its
// Kind are read.
type Command struct {
	Kind       Kind     `json:"kind"`
	Strategy   string   `json:"strategy,omitempty"`   // set-strategy
	Partitions []string `json:"partitions,omitempty"` // activate: the current known set
}

// Result reports the outcome of a dispatched command.
type Result struct {
	Strategy   string               `json:"strategy,omitempty"`
	Partitions []string             `json:"partitions,omitempty"`
	Removed    []string             `json:"removed,omitempty"`
	Hub        *hub.MetricsSnapshot `json:"hub,omitempty"`
}

// Dispatch event type.
const EventDispatch observability.EventType = "control.dispatch"

// Dispatcher applies control commands to the router and broadcasts the
// resulting notices. Dispatch is synchronous; the broadcast itself never
// blocks.
type Dispatcher struct {
	router   *router.Router
	hub      *hub.Hub
	observer observability.Observer
}

// NewDispatcher creates a Dispatcher. A nil observer discards events.
func NewDispatcher(rt *router.Router, h *hub.Hub, observer observability.Observer) *Dispatcher {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Dispatcher{router: rt, hub: h, observer: observer}
}

// Dispatch routes a command to its handler by Kind.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	d.observer.OnEvent(ctx, observability.NewEvent(
		EventDispatch, observability.LevelInfo, "control.Dispatch",
		map[string]any{"kind": string(cmd.Kind)},
	))

	switch cmd.Kind {
	case KindSetStrategy:
		return d.setStrategy(ctx, cmd.Strategy)
	case KindClearCaches:
		return d.clearCaches(ctx)
	case KindActivate:
		return d.activate(ctx, cmd.Partitions)
	case KindStats:
		return d.stats(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
}

func (d *Dispatcher) setStrategy(ctx context.Context, name string) (*Result, error) {
	effective := d.router.SetStrategy(ctx, name)

	d.hub.Broadcast(ctx, hub.NewNotice(hub.NoticeStrategyChanged, map[string]any{
		"strategy": effective.String(),
	}))

	return &Result{Strategy: effective.String()}, nil
}

func (d *Dispatcher) clearCaches(ctx context.Context) (*Result, error) {
	if err := d.router.Partitions().Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear caches: %w", err)
	}

	d.hub.Broadcast(ctx, hub.NewNotice(hub.NoticeCachesCleared, nil))

	return &Result{Strategy: d.router.Strategy().String()}, nil
}

func (d *Dispatcher) activate(ctx context.Context, keep []string) (*Result, error) {
	removed, err := d.router.Partitions().Activate(ctx, keep...)
	if err != nil {
		return nil, fmt.Errorf("activate partitions: %w", err)
	}

	d.hub.Broadcast(ctx, hub.NewNotice(hub.NoticePartitionsActivated, map[string]any{
		"kept":    keep,
		"removed": removed,
	}))

	return &Result{Partitions: keep, Removed: removed}, nil
}

func (d *Dispatcher) stats() *Result {
	metrics := d.hub.Metrics()
	return &Result{
		Strategy:   d.router.Strategy().String(),
		Partitions: d.router.Partitions().Names(),
		Hub:        &metrics,
	}
}
