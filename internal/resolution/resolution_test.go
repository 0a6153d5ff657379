package resolution

import (
	"testing"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func TestGenerateReturnsBaseListSortedByPriority(t *testing.T) {
	out := Generate(models.RootCauseLatencyBottleneck, models.PriorityHigh, nil)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	for i := 1; i < len(out); i++ {
		if priorityRank(out[i].Priority) < priorityRank(out[i-1].Priority) {
			t.Errorf("items not sorted by priority: %+v", out)
		}
	}
}

func TestGenerateUnknownRootCauseYieldsEmptyList(t *testing.T) {
	out := Generate(models.RootCauseNone, models.PriorityLow, nil)
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0 for NONE root cause", len(out))
	}
}

func TestGenerateSystemOverloadMergesContributingBucketsDeduped(t *testing.T) {
	out := Generate(models.RootCauseSystemOverload, models.PriorityCritical,
		[]string{"traffic_surge", "abuse_or_bot"})

	// 4 overload items + 4 traffic_surge + 4 abuse_or_bot, minus any
	// accidental category+action collisions (none expected in the fixed table).
	if len(out) != 12 {
		t.Fatalf("len(out) = %d, want 12 merged items", len(out))
	}

	seen := make(map[string]bool)
	for _, r := range out {
		key := r.Category + "|" + r.Action
		if seen[key] {
			t.Errorf("duplicate resolution %s not deduplicated", key)
		}
		seen[key] = true
	}
}

func TestGenerateSystemOverloadDedupesRepeatedCategoryAction(t *testing.T) {
	// Both traffic_surge and itself requested twice should not duplicate entries.
	out := Generate(models.RootCauseSystemOverload, models.PriorityCritical,
		[]string{"traffic_surge", "traffic_surge"})

	seen := make(map[string]int)
	for _, r := range out {
		seen[r.Category+"|"+r.Action]++
	}
	for key, count := range seen {
		if count > 1 {
			t.Errorf("resolution %s appeared %d times, want at most once", key, count)
		}
	}
}

func TestGenerateDoesNotMutateCatalogue(t *testing.T) {
	before := Generate(models.RootCauseAbuseOrBot, models.PriorityHigh, nil)
	_ = Generate(models.RootCauseSystemOverload, models.PriorityCritical, []string{"abuse_or_bot"})
	after := Generate(models.RootCauseAbuseOrBot, models.PriorityHigh, nil)

	if len(before) != len(after) {
		t.Fatalf("catalogue mutated: before=%d after=%d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("catalogue entry %d changed: before=%+v after=%+v", i, before[i], after[i])
		}
	}
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityCritical:
		return 0
	case models.PriorityHigh:
		return 1
	case models.PriorityMedium:
		return 2
	default:
		return 3
	}
}
