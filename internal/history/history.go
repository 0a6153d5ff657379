// Package history implements C10: the bounded, simulation-only journal
// of Detections, its recomputed emergency ranking, and its accuracy
// counters. Sibling to the teacher's analyzer.MetricsCollector ring
// (append, evict-oldest, bounded size) but re-derives sort order on
// every append instead of just truncating, per spec §4.10.
package history

import (
	"sort"
	"sync"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// injectedToRootCauses is the ground-truth-to-root-cause mapping spec
// §4.10 defines for the accuracy identity.
var injectedToRootCauses = map[models.SimPattern][]models.RootCause{
	models.PatternRateSpike:       {models.RootCauseTrafficSurge},
	models.PatternErrorBurst:      {models.RootCauseBackendInstability},
	models.PatternPayloadAbuse:    {models.RootCauseLatencyBottleneck, models.RootCauseSystemOverload},
	models.PatternParamRepetition: {models.RootCauseAbuseOrBot},
	models.PatternEndpointFlood:   {models.RootCauseTrafficSurge, models.RootCauseAbuseOrBot},
}

// Store holds the last capacity Detections plus their current rank order
// and running accuracy counters. Mutex-protected; contention is low
// (only on scoring completion), per spec §5.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  []models.Detection // insertion order, oldest first
	ranked   []models.Detection // risk-ordered view, rank 1 first

	total, correct, falsePos, falseNeg int
}

// New creates a Store bounded to capacity entries.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{capacity: capacity}
}

// Append pushes the newest Detection, evicting the oldest if full, then
// recomputes ranks and updates the running accuracy counters. Only
// meaningful for SIM-mode Detections, per spec §4.10; the orchestrator is
// responsible for only calling Append in simulation mode. Returns the
// freshly-computed 1-based rank of d and whether it counted as a correct
// detection, so the caller can stamp Detection.EmergencyRank and
// Detection.IsCorrectlyDetected before persisting/broadcasting it.
func (s *Store) Append(d models.Detection) (rank int, correct bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, d)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}

	s.recomputeRanksLocked()
	correct = s.updateAccuracyLocked(d)

	for i, entry := range s.ranked {
		if entry.ID == d.ID {
			return i + 1, correct
		}
	}
	return len(s.ranked), correct
}

// recomputeRanksLocked stable-sorts by risk_score descending, ties
// broken by newer timestamp first, then assigns 1-based ranks. O(K log K)
// on every append, acceptable at K<=1000 per spec §4.10.
func (s *Store) recomputeRanksLocked() {
	ranked := append([]models.Detection(nil), s.entries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RiskScore != ranked[j].RiskScore {
			return ranked[i].RiskScore > ranked[j].RiskScore
		}
		return ranked[i].Timestamp.After(ranked[j].Timestamp)
	})
	s.ranked = ranked
}

func (s *Store) updateAccuracyLocked(d models.Detection) bool {
	s.total++

	if d.InjectedLabel == models.PatternNormal {
		if d.IsAnomaly {
			s.falsePos++
			return false
		}
		s.correct++
		return true
	}

	if !d.IsAnomaly {
		s.falseNeg++
		return false
	}

	for _, rc := range injectedToRootCauses[d.InjectedLabel] {
		if rc == d.RootCause {
			s.correct++
			return true
		}
	}
	// Detected as anomalous but mapped to a different root cause than
	// the injected label predicts: neither a clean correct nor a false
	// negative, so it is counted in neither bucket — spec §8 P6 allows
	// for an "other-miscategorized" remainder outside {correct, fp, fn}.
	return false
}

// Ranked returns a copy of the current rank-ordered view.
func (s *Store) Ranked() []models.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Detection, len(s.ranked))
	copy(out, s.ranked)
	return out
}

// TopEmergencies returns the top-n EmergencyRanking entries, rank 1
// first.
func (s *Store) TopEmergencies(n int) []models.EmergencyRanking {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.ranked) {
		n = len(s.ranked)
	}
	out := make([]models.EmergencyRanking, n)
	for i := 0; i < n; i++ {
		out[i] = models.EmergencyRanking{Rank: i + 1, Detection: s.ranked[i]}
	}
	return out
}

// Accuracy returns the current confusion-matrix summary.
func (s *Store) Accuracy() models.AccuracyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := 0.0
	if s.total > 0 {
		acc = float64(s.correct) / float64(s.total)
	}
	return models.AccuracyStats{
		Total:    s.total,
		Correct:  s.correct,
		FalsePos: s.falsePos,
		FalseNeg: s.falseNeg,
		Accuracy: acc,
	}
}

// Clear drops the ring and zeros counters (R3: clear() followed by zero
// observations yields accuracy.total == 0 and top_emergencies == []).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.ranked = nil
	s.total, s.correct, s.falsePos, s.falseNeg = 0, 0, 0, 0
}
