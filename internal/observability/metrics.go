package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	requestLatency    map[string]time.Duration
	errorCount        map[string]int64
	cacheHits         int64
	cacheMisses       int64
	searchRequests    int64
	searchUnavailable int64
	searchFallbacks   int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests          map[string]int64   `json:"requests"`
	AvgLatencyMillis  map[string]float64 `json:"avg_latency_ms"`
	Errors            map[string]int64   `json:"errors"`
	CacheHits         int64              `json:"cache_hits"`
	CacheMisses       int64              `json:"cache_misses"`
	SearchRequests    int64              `json:"search_requests"`
	SearchUnavailable int64              `json:"search_unavailable"`
	SearchFallbacks   int64              `json:"search_fallbacks"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		requestLatency: make(map[string]time.Duration),
		errorCount:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordCache counts a dashboard cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

// RecordSearch counts a search and how it degraded, if at all.
func (m *Metrics) RecordSearch(unavailable, fallback bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchRequests++
	if unavailable {
		m.searchUnavailable++
	}
	if fallback {
		m.searchFallbacks++
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Requests:         map[string]int64{},
		AvgLatencyMillis: map[string]float64{},
		Errors:           map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		snap.AvgLatencyMillis[k] = float64(m.requestLatency[k].Microseconds()) / 1000 / float64(v)
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	snap.CacheHits = m.cacheHits
	snap.CacheMisses = m.cacheMisses
	snap.SearchRequests = m.searchRequests
	snap.SearchUnavailable = m.searchUnavailable
	snap.SearchFallbacks = m.searchFallbacks
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
