package history

import (
	"testing"
	"time"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func detectionAt(id string, risk float64, ts time.Time, label models.SimPattern, isAnomaly bool, rootCause models.RootCause) models.Detection {
	return models.Detection{
		ID: id, RiskScore: risk, Timestamp: ts,
		InjectedLabel: label, IsAnomaly: isAnomaly, RootCause: rootCause,
	}
}

func TestAppendRanksByRiskDescending(t *testing.T) {
	s := New(10)
	now := time.Now()

	s.Append(detectionAt("low", 0.2, now, models.PatternNormal, false, models.RootCauseNone))
	s.Append(detectionAt("high", 0.9, now.Add(time.Second), models.PatternNormal, false, models.RootCauseNone))
	s.Append(detectionAt("mid", 0.5, now.Add(2*time.Second), models.PatternNormal, false, models.RootCauseNone))

	ranked := s.Ranked()
	if len(ranked) != 3 {
		t.Fatalf("len(ranked) = %d, want 3", len(ranked))
	}
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d].ID = %q, want %q", i, ranked[i].ID, id)
		}
	}
}

func TestAppendTieBreaksByNewerTimestampFirst(t *testing.T) {
	s := New(10)
	now := time.Now()
	s.Append(detectionAt("older", 0.5, now, models.PatternNormal, false, models.RootCauseNone))
	s.Append(detectionAt("newer", 0.5, now.Add(time.Second), models.PatternNormal, false, models.RootCauseNone))

	ranked := s.Ranked()
	if ranked[0].ID != "newer" {
		t.Errorf("ranked[0].ID = %q, want %q (newer wins equal risk ties)", ranked[0].ID, "newer")
	}
}

func TestAppendEvictsOldestPastCapacity(t *testing.T) {
	s := New(2)
	now := time.Now()
	s.Append(detectionAt("a", 0.1, now, models.PatternNormal, false, models.RootCauseNone))
	s.Append(detectionAt("b", 0.2, now.Add(time.Second), models.PatternNormal, false, models.RootCauseNone))
	s.Append(detectionAt("c", 0.3, now.Add(2*time.Second), models.PatternNormal, false, models.RootCauseNone))

	ranked := s.Ranked()
	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d, want 2 (capacity)", len(ranked))
	}
	for _, d := range ranked {
		if d.ID == "a" {
			t.Error("oldest entry should have been evicted")
		}
	}
}

func TestAppendReturnsOneBasedRank(t *testing.T) {
	s := New(10)
	now := time.Now()
	s.Append(detectionAt("first", 0.9, now, models.PatternNormal, false, models.RootCauseNone))
	rank, _ := s.Append(detectionAt("second", 0.1, now.Add(time.Second), models.PatternNormal, false, models.RootCauseNone))
	if rank != 2 {
		t.Errorf("rank = %d, want 2", rank)
	}
}

func TestUpdateAccuracyNormalTrafficCorrectlyIgnored(t *testing.T) {
	s := New(10)
	_, correct := s.Append(detectionAt("d1", 0.1, time.Now(), models.PatternNormal, false, models.RootCauseNone))
	if !correct {
		t.Error("expected normal traffic correctly not flagged as anomaly to count as correct")
	}
}

func TestUpdateAccuracyNormalTrafficFalsePositive(t *testing.T) {
	s := New(10)
	_, correct := s.Append(detectionAt("d1", 0.9, time.Now(), models.PatternNormal, true, models.RootCauseSystemOverload))
	if correct {
		t.Error("expected false positive to not count as correct")
	}
	acc := s.Accuracy()
	if acc.FalsePos != 1 {
		t.Errorf("FalsePos = %d, want 1", acc.FalsePos)
	}
}

func TestUpdateAccuracyInjectedPatternMissedIsFalseNegative(t *testing.T) {
	s := New(10)
	_, correct := s.Append(detectionAt("d1", 0.1, time.Now(), models.PatternRateSpike, false, models.RootCauseNone))
	if correct {
		t.Error("expected a missed injected anomaly to not count as correct")
	}
	acc := s.Accuracy()
	if acc.FalseNeg != 1 {
		t.Errorf("FalseNeg = %d, want 1", acc.FalseNeg)
	}
}

func TestUpdateAccuracyInjectedPatternMatchingRootCauseIsCorrect(t *testing.T) {
	s := New(10)
	_, correct := s.Append(detectionAt("d1", 0.9, time.Now(), models.PatternRateSpike, true, models.RootCauseTrafficSurge))
	if !correct {
		t.Error("expected a detected traffic surge matching its injected label's root cause to count as correct")
	}
}

func TestUpdateAccuracyInjectedPatternWrongRootCauseIsNeitherBucket(t *testing.T) {
	s := New(10)
	_, correct := s.Append(detectionAt("d1", 0.9, time.Now(), models.PatternRateSpike, true, models.RootCauseAbuseOrBot))
	if correct {
		t.Error("expected a mismatched root cause to not count as correct")
	}
	acc := s.Accuracy()
	if acc.FalsePos != 0 || acc.FalseNeg != 0 {
		t.Errorf("expected neither false positive nor false negative to be incremented, got fp=%d fn=%d", acc.FalsePos, acc.FalseNeg)
	}
	if acc.Total != 1 || acc.Correct != 0 {
		t.Errorf("total=%d correct=%d, want total=1 correct=0", acc.Total, acc.Correct)
	}
}

func TestTopEmergenciesClampsToAvailableCount(t *testing.T) {
	s := New(10)
	s.Append(detectionAt("only", 0.5, time.Now(), models.PatternNormal, false, models.RootCauseNone))
	top := s.TopEmergencies(5)
	if len(top) != 1 {
		t.Fatalf("len(top) = %d, want 1", len(top))
	}
	if top[0].Rank != 1 {
		t.Errorf("top[0].Rank = %d, want 1", top[0].Rank)
	}
}

func TestClearResetsEverything(t *testing.T) {
	s := New(10)
	s.Append(detectionAt("d1", 0.9, time.Now(), models.PatternRateSpike, true, models.RootCauseTrafficSurge))
	s.Clear()

	if len(s.Ranked()) != 0 {
		t.Error("expected empty ranked list after Clear")
	}
	if len(s.TopEmergencies(10)) != 0 {
		t.Error("expected empty top emergencies after Clear")
	}
	acc := s.Accuracy()
	if acc.Total != 0 {
		t.Errorf("Total = %d, want 0 after Clear", acc.Total)
	}
}
