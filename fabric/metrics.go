package fabric

import "sync/atomic"

type MetricsSnapshot struct {
	Endpoints         int64
	MessagesDelivered int64
	MessagesForwarded int64
	MessagesDropped   int64
}

type Metrics struct {
	endpoints         atomic.Int64
	messagesDelivered atomic.Int64
	messagesForwarded atomic.Int64
	messagesDropped   atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordEndpoint(delta int) {
	m.endpoints.Add(int64(delta))
}

func (m *Metrics) RecordDelivered(delta int) {
	m.messagesDelivered.Add(int64(delta))
}

func (m *Metrics) RecordForwarded(delta int) {
	m.messagesForwarded.Add(int64(delta))
}

func (m *Metrics) RecordDropped(delta int) {
	m.messagesDropped.Add(int64(delta))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Endpoints:         m.endpoints.Load(),
		MessagesDelivered: m.messagesDelivered.Load(),
		MessagesForwarded: m.messagesForwarded.Load(),
		MessagesDropped:   m.messagesDropped.Load(),
	}
}
