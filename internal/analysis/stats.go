package analysis

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationUs int64
}

// StatsSnapshot aggregates the analysis latencies inside the window.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinUs int64   `json:"min_us"`
	MaxUs int64   `json:"max_us"`
	AvgUs float64 `json:"avg_us"`
	P50Us float64 `json:"p50_us"`
	P95Us float64 `json:"p95_us"`
	P99Us float64 `json:"p99_us"`
	Nodes int     `json:"nodes"` // Tree nodes across the window
}

// Stats tracks recent analysis latencies within a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	nodes   []int
	maxAge  time.Duration
	now     func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		nodes:   make([]int, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one analysis of d that produced nodes tree nodes.
func (s *Stats) Record(d time.Duration, nodes int) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, durationUs: us})
	s.nodes = append(s.nodes, nodes)
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationUs)
		sum += sm.durationUs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	nodes := 0
	for _, n := range s.nodes {
		nodes += n
	}

	return StatsSnapshot{
		Count: len(values),
		MinUs: values[0],
		MaxUs: values[len(values)-1],
		AvgUs: float64(sum) / float64(len(values)),
		P50Us: percentile(values, 50),
		P95Us: percentile(values, 95),
		P99Us: percentile(values, 99),
		Nodes: nodes,
	}
}

// pruneLocked drops samples older than the window. Samples are appended in
// time order so the expired ones form a prefix.
func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	drop := 0
	for drop < len(s.samples) && s.samples[drop].at.Before(cutoff) {
		drop++
	}
	if drop == 0 {
		return
	}
	s.samples = append(s.samples[:0], s.samples[drop:]...)
	s.nodes = append(s.nodes[:0], s.nodes[drop:]...)
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}

	rank := float64(len(sorted)-1) * pct / 100
	lower := int(rank)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(rank-float64(lower))
}
