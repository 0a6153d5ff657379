// Package telemetry tracks per-mode, per-source observation counters
// for the Control API's per_source_counts field. Adapted from the
// teacher's analyzer.getTopPaths/getTopIPs/getTopUserAgents helper (sort
// a map[string]int by count descending) — the counting/sorting shape
// survives even though the stddev-based anomaly model it backed in the
// teacher does not (see DESIGN.md).
package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// SourceCount is one entry in a sorted per-source breakdown.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// Counters tracks LIVE and SIM totals independently — spec §3's
// invariant that "LIVE counters never advance from SIM observations and
// vice versa" is enforced structurally here via two disjoint maps, never
// a shared one keyed by mode.
type Counters struct {
	liveTotal int64
	simTotal  int64

	mu          sync.Mutex
	livePerSrc  map[string]*int64
	simPerSrc   map[string]*int64
}

// New creates an empty Counters.
func New() *Counters {
	return &Counters{
		livePerSrc: make(map[string]*int64),
		simPerSrc:  make(map[string]*int64),
	}
}

// RecordTracked increments the mode-appropriate total and per-source
// counter for one TRACKED observation.
func (c *Counters) RecordTracked(obs models.Observation) {
	switch obs.Mode {
	case models.ModeSim:
		atomic.AddInt64(&c.simTotal, 1)
		c.bump(c.simPerSrc, obs.Source)
	default:
		atomic.AddInt64(&c.liveTotal, 1)
		c.bump(c.livePerSrc, obs.Source)
	}
}

func (c *Counters) bump(m map[string]*int64, source string) {
	c.mu.Lock()
	counter, ok := m[source]
	if !ok {
		var v int64
		counter = &v
		m[source] = counter
	}
	c.mu.Unlock()
	atomic.AddInt64(counter, 1)
}

// Total returns the running total for mode.
func (c *Counters) Total(mode models.Mode) int64 {
	if mode == models.ModeSim {
		return atomic.LoadInt64(&c.simTotal)
	}
	return atomic.LoadInt64(&c.liveTotal)
}

// PerSource returns every source's count for mode, sorted by count
// descending (ties broken by source name for determinism).
func (c *Counters) PerSource(mode models.Mode) []SourceCount {
	m := c.livePerSrc
	if mode == models.ModeSim {
		m = c.simPerSrc
	}

	c.mu.Lock()
	snapshot := make([]SourceCount, 0, len(m))
	for src, counter := range m {
		snapshot = append(snapshot, SourceCount{Source: src, Count: atomic.LoadInt64(counter)})
	}
	c.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].Count != snapshot[j].Count {
			return snapshot[i].Count > snapshot[j].Count
		}
		return snapshot[i].Source < snapshot[j].Source
	})
	return snapshot
}
