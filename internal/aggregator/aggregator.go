// Package aggregator implements C2, the window aggregator: it groups
// TRACKED observations into fixed-size tumbling windows, one independent
// stream per (mode, source) pair. Adapted from the teacher's
// analyzer.MetricsCollector (one mutex guarding one in-flight
// accumulator, swapped for a fresh one on seal) into a sharded map of
// per-key accumulators, since spec §4.2 requires independent streams per
// source rather than one shared window.
package aggregator

import (
	"sync"
	"time"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

type streamKey struct {
	mode   models.Mode
	source string
}

// stream is the mutable, in-flight accumulator for one (mode, source).
type stream struct {
	mu       sync.Mutex
	nextID   int64
	openedAt time.Time
	buf      []models.Observation
}

// Aggregator owns every (mode, source) window stream. Safe for
// concurrent use by many producers; each stream serializes independently
// (spec §4.2's "per-key lock or single-owner actor").
type Aggregator struct {
	size int

	mu      sync.RWMutex
	streams map[streamKey]*stream
}

// New creates an Aggregator sealing windows of exactly size observations.
func New(size int) *Aggregator {
	if size <= 0 {
		size = 10
	}
	return &Aggregator{
		size:    size,
		streams: make(map[streamKey]*stream),
	}
}

func (a *Aggregator) streamFor(key streamKey) *stream {
	a.mu.RLock()
	s, ok := a.streams[key]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok = a.streams[key]; ok {
		return s
	}
	s = &stream{openedAt: time.Now(), buf: make([]models.Observation, 0, a.size)}
	a.streams[key] = s
	return s
}

// Push appends obs to its stream's open window. When the window reaches
// the configured size, it is sealed, returned, and a fresh window opens
// for the (N+1)th observation. Push never fails (spec §4.2).
func (a *Aggregator) Push(obs models.Observation) (*models.Window, bool) {
	key := streamKey{mode: obs.Mode, source: obs.Source}
	s := a.streamFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		s.openedAt = time.Now()
	}
	s.buf = append(s.buf, obs)

	if len(s.buf) < a.size {
		return nil, false
	}

	win := &models.Window{
		ID:           s.nextID,
		Mode:         obs.Mode,
		Source:       obs.Source,
		OpenedAt:     s.openedAt,
		ClosedAt:     time.Now(),
		Observations: append([]models.Observation(nil), s.buf...),
	}
	s.nextID++
	s.buf = s.buf[:0]

	return win, true
}

// Snapshot reports telemetry for one (mode, source): observations
// currently sitting in the open window, and the count of windows sealed
// so far for that stream.
func (a *Aggregator) Snapshot(mode models.Mode, source string) (openCount int, sealedTotal int64) {
	key := streamKey{mode: mode, source: source}
	a.mu.RLock()
	s, ok := a.streams[key]
	a.mu.RUnlock()
	if !ok {
		return 0, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf), s.nextID
}

// Sources lists every (mode, source) stream currently tracked, for
// telemetry fan-out across all sources in a mode.
func (a *Aggregator) Sources(mode models.Mode) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, 0)
	for k := range a.streams {
		if k.mode == mode {
			out = append(out, k.source)
		}
	}
	return out
}
