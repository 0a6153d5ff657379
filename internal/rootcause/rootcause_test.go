package rootcause

import (
	"testing"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func TestClassifyNoConditionsYieldsNone(t *testing.T) {
	got := Classify(models.FeatureVector{}, models.ModelScores{})
	if got.RootCause != models.RootCauseNone {
		t.Errorf("RootCause = %v, want NONE", got.RootCause)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}
}

func TestClassifySingleCondition(t *testing.T) {
	cases := []struct {
		name string
		f    models.FeatureVector
		ms   models.ModelScores
		want models.RootCause
	}{
		{"latency bottleneck", models.FeatureVector{AvgResponseTime: 900, ErrorRate: 0.1}, models.ModelScores{}, models.RootCauseLatencyBottleneck},
		{"backend instability", models.FeatureVector{ErrorRate: 0.5}, models.ModelScores{}, models.RootCauseBackendInstability},
		{"traffic surge", models.FeatureVector{RequestRate: 15}, models.ModelScores{}, models.RootCauseTrafficSurge},
		{"abuse or bot via repeated params", models.FeatureVector{RepeatedParameterRatio: 0.8}, models.ModelScores{}, models.RootCauseAbuseOrBot},
		{"abuse or bot via cluster", models.FeatureVector{}, models.ModelScores{ClusterID: 2}, models.RootCauseAbuseOrBot},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.f, tc.ms)
			if got.RootCause != tc.want {
				t.Errorf("RootCause = %v, want %v", got.RootCause, tc.want)
			}
			if len(got.ContributingConditions) != 1 {
				t.Errorf("ContributingConditions = %v, want exactly one", got.ContributingConditions)
			}
			if got.Confidence < 0.88 || got.Confidence > 0.92 {
				t.Errorf("Confidence = %v, want within the single-condition band [0.88, 0.92]", got.Confidence)
			}
		})
	}
}

func TestClassifyMultipleConditionsYieldsSystemOverload(t *testing.T) {
	f := models.FeatureVector{ErrorRate: 0.5, RequestRate: 15}
	got := Classify(f, models.ModelScores{})

	if got.RootCause != models.RootCauseSystemOverload {
		t.Errorf("RootCause = %v, want SYSTEM_OVERLOAD", got.RootCause)
	}
	if len(got.ContributingConditions) != 2 {
		t.Errorf("ContributingConditions = %v, want 2", got.ContributingConditions)
	}
	if got.Confidence != 0.90 {
		t.Errorf("Confidence = %v, want 0.90 for exactly two conditions", got.Confidence)
	}
}

func TestClassifyThreeConditionsYieldsHighestConfidence(t *testing.T) {
	// ErrorRate stays under 0.3 so latency_bottleneck is eligible alongside
	// traffic_surge and abuse_or_bot, giving three simultaneous conditions.
	f := models.FeatureVector{AvgResponseTime: 900, ErrorRate: 0.29, RequestRate: 15, RepeatedParameterRatio: 0.8}
	got := Classify(f, models.ModelScores{})
	if got.RootCause != models.RootCauseSystemOverload {
		t.Fatalf("RootCause = %v, want SYSTEM_OVERLOAD", got.RootCause)
	}
	if len(got.ContributingConditions) != 3 {
		t.Errorf("ContributingConditions = %v, want 3", got.ContributingConditions)
	}
	if got.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95 for three or more conditions", got.Confidence)
	}
}
