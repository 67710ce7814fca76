package mgo

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// metrics tracks round-trip latency per replica so operators can see pool
// health without attaching a profiler. It keeps a bounded ring of recent
// samples per replica and computes percentiles on demand.
type metrics struct {
	mu      sync.Mutex
	samples map[string][]float64
}

const metricsWindow = 512

func newMetrics() *metrics {
	return &metrics{samples: make(map[string][]float64)}
}

func (m *metrics) observe(replica Replica, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d) / float64(time.Millisecond)
	key := replica.Addr()

	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.samples[key]
	buf = append(buf, ms)
	if len(buf) > metricsWindow {
		buf = buf[len(buf)-metricsWindow:]
	}
	m.samples[key] = buf
}

// Snapshot is a point-in-time latency summary for one replica.
type Snapshot struct {
	Replica string
	Count   int
	P50     float64
	P95     float64
	P99     float64
}

// snapshot reports p50/p95/p99 round-trip latency, in milliseconds, for
// every replica this pool has talked to. Percentiles are computed with
// montanaflynn/stats rather than hand-rolled, matching how the rest of this
// module leans on the corpus for numeric primitives instead of stdlib math.
func (m *metrics) snapshot() []Snapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.samples))
	for replica, buf := range m.samples {
		if len(buf) == 0 {
			continue
		}
		cp := make([]float64, len(buf))
		copy(cp, buf)
		p50, _ := stats.Percentile(cp, 50)
		p95, _ := stats.Percentile(cp, 95)
		p99, _ := stats.Percentile(cp, 99)
		out = append(out, Snapshot{
			Replica: replica,
			Count:   len(cp),
			P50:     p50,
			P95:     p95,
			P99:     p99,
		})
	}
	return out
}

// Metrics returns a latency snapshot across every replica in the session's
// pool, for callers that want to expose pool health on a status endpoint.
func (s *Session) Metrics() []Snapshot {
	return s.pool.metrics.snapshot()
}
