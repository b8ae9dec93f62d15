// Package observability aggregates relay runtime counters for logs and the
// debug inspector.
package observability

import (
	"sync"
	"sync/atomic"
)

// RelayStats is a point-in-time snapshot of the relay counters.
type RelayStats struct {
	ActiveConnections  int64   `json:"active_connections"`
	ForwardedEvents    uint64  `json:"forwarded_events"`
	DroppedOffline     uint64  `json:"dropped_offline"`
	RejectedHandshakes uint64  `json:"rejected_handshakes"`
	MalformedPayloads  uint64  `json:"malformed_payloads"`
	RssBytes           uint64  `json:"rss_bytes"`
	CPUPercent         float64 `json:"cpu_percent"`
}

// RelayMonitor tracks relay activity with atomic counters. Process stats
// are pushed in by the heartbeat worker.
type RelayMonitor struct {
	mu sync.RWMutex

	active     int64
	forwarded  uint64
	dropped    uint64
	rejected   uint64
	malformed  uint64
	rssBytes   uint64
	cpuPercent float64
}

func NewRelayMonitor() *RelayMonitor {
	return &RelayMonitor{}
}

func (m *RelayMonitor) ConnOpened()    { atomic.AddInt64(&m.active, 1) }
func (m *RelayMonitor) ConnClosed()    { atomic.AddInt64(&m.active, -1) }
func (m *RelayMonitor) IncrForwarded() { atomic.AddUint64(&m.forwarded, 1) }
func (m *RelayMonitor) IncrDropped()   { atomic.AddUint64(&m.dropped, 1) }
func (m *RelayMonitor) IncrRejected()  { atomic.AddUint64(&m.rejected, 1) }
func (m *RelayMonitor) IncrMalformed() { atomic.AddUint64(&m.malformed, 1) }

func (m *RelayMonitor) UpdateProcessStats(rssBytes uint64, cpuPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssBytes = rssBytes
	m.cpuPercent = cpuPercent
}

func (m *RelayMonitor) Snapshot() RelayStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return RelayStats{
		ActiveConnections:  atomic.LoadInt64(&m.active),
		ForwardedEvents:    atomic.LoadUint64(&m.forwarded),
		DroppedOffline:     atomic.LoadUint64(&m.dropped),
		RejectedHandshakes: atomic.LoadUint64(&m.rejected),
		MalformedPayloads:  atomic.LoadUint64(&m.malformed),
		RssBytes:           m.rssBytes,
		CPUPercent:         m.cpuPercent,
	}
}

// StatsProvider adapts the snapshot for the debug inspector dashboard.
func (m *RelayMonitor) StatsProvider() map[string]any {
	s := m.Snapshot()
	return map[string]any{
		"Active connections": s.ActiveConnections,
		"Forwarded events":   s.ForwardedEvents,
		"Dropped (offline)":  s.DroppedOffline,
		"Rejected auth":      s.RejectedHandshakes,
		"Malformed payloads": s.MalformedPayloads,
		"RSS (MB)":           s.RssBytes / 1024 / 1024,
		"CPU (%)":            s.CPUPercent,
	}
}
