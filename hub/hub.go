package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 16

// Config holds hub initialization parameters.
type Config struct {
	BufferSize int `yaml:"buffer_size" env:"EDGECACHE_HUB_BUFFER"` // per-subscriber notice buffer
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{BufferSize: defaultBufferSize}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.BufferSize > 0 {
		c.BufferSize = source.BufferSize
	}
}

type subscriber struct {
	id      string
	channel *channel[Notice]
	since   time.Time
}

// Subscription is a live feed of notices for one client.
type Subscription struct {
	id  string
	hub *Hub
	ch  *channel[Notice]
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// Receive blocks until the next notice, ctx cancellation, or hub shutdown.
func (s *Subscription) Receive(ctx context.Context) (Notice, error) {
	return s.ch.Receive(ctx)
}

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub fans notices out to all subscribers.
type Hub struct {
	subscribers map[string]*subscriber
	mu          sync.RWMutex

	bufferSize int
	logger     *slog.Logger
	metrics    *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Hub. The hub stops delivering once ctx is cancelled or
// Shutdown is called.
func New(ctx context.Context, cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		subscribers: make(map[string]*subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
		metrics:     NewMetrics(),
		ctx:         hubCtx,
		cancel:      cancel,
	}
}

// Subscribe registers a client and returns its notice feed.
// Returns an error when the id is already subscribed.
func (h *Hub) Subscribe(id string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.subscribers[id]; exists {
		return nil, fmt.Errorf("already subscribed: %s", id)
	}

	ch := newChannel[Notice](h.ctx, h.bufferSize)
	h.subscribers[id] = &subscriber{id: id, channel: ch, since: time.Now()}
	h.metrics.RecordSubscriber(1)

	h.logger.DebugContext(h.ctx, "client subscribed", slog.String("client_id", id))

	return &Subscription{id: id, hub: h, ch: ch}, nil
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	sub, exists := h.subscribers[id]
	if exists {
		delete(h.subscribers, id)
		sub.channel.Close()
	}
	h.mu.Unlock()

	if exists {
		h.metrics.RecordSubscriber(-1)
		h.logger.DebugContext(h.ctx, "client unsubscribed", slog.String("client_id", id))
	}
}

// Broadcast delivers the notice to every subscriber. Subscribers whose
// buffer is full are skipped; delivery is best-effort and never blocks.
func (h *Hub) Broadcast(ctx context.Context, notice Notice) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.channel.TrySend(notice.Clone()) {
			h.metrics.RecordDelivered(1)
		} else {
			h.metrics.RecordDropped(1)
			h.logger.WarnContext(ctx, "notice dropped",
				slog.String("client_id", sub.id),
				slog.String("kind", string(notice.Kind)),
			)
		}
	}
}

// Metrics returns a snapshot of delivery counters.
func (h *Hub) Metrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// Shutdown stops delivery and disconnects every subscriber.
func (h *Hub) Shutdown() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		sub.channel.Close()
		delete(h.subscribers, id)
	}
}
