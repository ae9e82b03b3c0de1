// Package fetch retrieves remote project files and assets over HTTP(S).
package fetch

import (
	"slices"
	"sync"
	"time"
)

type observation struct {
	at     time.Time
	millis int64
	failed bool
}

// StatsSnapshot aggregates the fetches observed within the stats window.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// LatencyStats keeps a rolling window of fetch durations.
type LatencyStats struct {
	mu     sync.Mutex
	window time.Duration
	obs    []observation
}

func NewLatencyStats(window time.Duration) *LatencyStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LatencyStats{window: window, obs: make([]observation, 0, 256)}
}

// Record adds one fetch. Negative durations are clamped to zero.
func (s *LatencyStats) Record(millis int64, failed bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(now)
	s.obs = append(s.obs, observation{at: now, millis: max(millis, 0), failed: failed})
}

// Snapshot summarizes the current window.
func (s *LatencyStats) Snapshot() StatsSnapshot {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(now)

	var snap StatsSnapshot
	if len(s.obs) == 0 {
		return snap
	}
	durations := make([]int64, len(s.obs))
	var total int64
	for i, o := range s.obs {
		durations[i] = o.millis
		total += o.millis
		if o.failed {
			snap.Failures++
		}
	}
	slices.Sort(durations)

	snap.Count = len(durations)
	snap.MinMs = durations[0]
	snap.MaxMs = durations[len(durations)-1]
	snap.AvgMs = float64(total) / float64(len(durations))
	snap.P50Ms = interpolate(durations, 50)
	snap.P95Ms = interpolate(durations, 95)
	snap.P99Ms = interpolate(durations, 99)
	return snap
}

func (s *LatencyStats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.obs = slices.DeleteFunc(s.obs, func(o observation) bool { return o.at.Before(cutoff) })
}

// interpolate returns the pct-th percentile of sorted values using linear
// interpolation between closest ranks.
func interpolate(sorted []int64, pct float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[n-1])
	}
	rank := float64(n-1) * pct / 100
	lo := int(rank)
	if lo+1 >= n {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*frac
}
