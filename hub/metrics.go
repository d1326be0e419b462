package hub

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the hub counters.
type MetricsSnapshot struct {
	Subscribers      int64
	NoticesDelivered int64
	NoticesDropped   int64
}

// Metrics tracks hub delivery counters with atomics.
type Metrics struct {
	subscribers      atomic.Int64
	noticesDelivered atomic.Int64
	noticesDropped   atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordSubscriber(delta int) {
	m.subscribers.Add(int64(delta))
}

func (m *Metrics) RecordDelivered(delta int) {
	m.noticesDelivered.Add(int64(delta))
}

func (m *Metrics) RecordDropped(delta int) {
	m.noticesDropped.Add(int64(delta))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Subscribers:      m.subscribers.Load(),
		NoticesDelivered: m.noticesDelivered.Load(),
		NoticesDropped:   m.noticesDropped.Load(),
	}
}
