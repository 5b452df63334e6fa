package reliability

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultMaxSamples = 256
	defaultMaxErrors  = 64
)

type ErrorRecord struct {
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

type OpSnapshot struct {
	Calls        int64   `json:"calls"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	P95LatencyMS float64 `json:"p95_latency_ms"`
}

type opStats struct {
	calls     int64
	successes int64
	failures  int64
	samples   []time.Duration
	next      int
	filled    bool
}

// Metrics keeps per-operation counters, a bounded ring of latency samples and
// a bounded log of recent errors. Shared process-wide, safe for concurrent use.
type Metrics struct {
	mu         sync.RWMutex
	ops        map[string]*opStats
	errors     []ErrorRecord
	maxSamples int
	maxErrors  int
}

func NewMetrics() *Metrics {
	return &Metrics{
		ops:        make(map[string]*opStats),
		maxSamples: defaultMaxSamples,
		maxErrors:  defaultMaxErrors,
	}
}

func (m *Metrics) Record(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.ops[operation]
	if !ok {
		stats = &opStats{samples: make([]time.Duration, m.maxSamples)}
		m.ops[operation] = stats
	}

	stats.calls++
	if err != nil {
		stats.failures++
		m.errors = append(m.errors, ErrorRecord{Operation: operation, Error: err.Error(), At: time.Now()})
		if len(m.errors) > m.maxErrors {
			m.errors = m.errors[len(m.errors)-m.maxErrors:]
		}
	} else {
		stats.successes++
	}

	stats.samples[stats.next] = duration
	stats.next++
	if stats.next == len(stats.samples) {
		stats.next = 0
		stats.filled = true
	}
}

func (m *Metrics) Snapshot() map[string]OpSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]OpSnapshot, len(m.ops))
	for name, stats := range m.ops {
		result[name] = OpSnapshot{
			Calls:        stats.calls,
			Successes:    stats.successes,
			Failures:     stats.failures,
			AvgLatencyMS: average(stats.current()),
			P95LatencyMS: percentile(stats.current(), 0.95),
		}
	}
	return result
}

func (m *Metrics) RecentErrors() []ErrorRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ErrorRecord, len(m.errors))
	copy(result, m.errors)
	return result
}

func (s *opStats) current() []time.Duration {
	if s.filled {
		return s.samples
	}
	return s.samples[:s.next]
}

func average(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return float64(sum.Milliseconds()) / float64(len(samples))
}

func percentile(samples []time.Duration, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Milliseconds())
}
