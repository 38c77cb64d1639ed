package middleware

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gossip-lsp/lexis/jsonrpc"
)

// Metrics counts requests and their latency per method.
type Metrics struct {
	mu       sync.RWMutex
	methods  map[string]*methodMetrics
	inFlight atomic.Int64
}

type methodMetrics struct {
	count   atomic.Int64
	errors  atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{methods: make(map[string]*methodMetrics)}
}

func (m *Metrics) getOrCreate(method string) *methodMetrics {
	m.mu.RLock()
	mm, ok := m.methods[method]
	m.mu.RUnlock()
	if ok {
		return mm
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if mm, ok := m.methods[method]; ok {
		return mm
	}
	mm = &methodMetrics{}
	m.methods[method] = mm
	return mm
}

func (mm *methodMetrics) observe(d time.Duration, failed bool) {
	mm.count.Add(1)
	mm.totalNs.Add(int64(d))
	if failed {
		mm.errors.Add(1)
	}
	for {
		cur := mm.maxNs.Load()
		if int64(d) <= cur || mm.maxNs.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

// MethodStats is a point-in-time view of one method.
type MethodStats struct {
	Method string        `json:"method"`
	Count  int64         `json:"count"`
	Errors int64         `json:"errors"`
	Mean   time.Duration `json:"meanNs"`
	Max    time.Duration `json:"maxNs"`
}

// Snapshot returns the stats of every method seen, sorted by method, and
// the number of requests currently running.
func (m *Metrics) Snapshot() (methods []MethodStats, inFlight int64) {
	m.mu.RLock()
	for name, mm := range m.methods {
		s := MethodStats{
			Method: name,
			Count:  mm.count.Load(),
			Errors: mm.errors.Load(),
			Max:    time.Duration(mm.maxNs.Load()),
		}
		if s.Count > 0 {
			s.Mean = time.Duration(mm.totalNs.Load() / s.Count)
		}
		methods = append(methods, s)
	}
	m.mu.RUnlock()
	sort.Slice(methods, func(i, j int) bool { return methods[i].Method < methods[j].Method })
	return methods, m.inFlight.Load()
}

// Telemetry records every dispatch in metrics.
func Telemetry(metrics *Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
			mm := metrics.getOrCreate(method)
			metrics.inFlight.Add(1)
			defer metrics.inFlight.Add(-1)

			start := time.Now()
			result, err := next(ctx, method, params)
			mm.observe(time.Since(start), err != nil)
			return result, err
		}
	}
}
