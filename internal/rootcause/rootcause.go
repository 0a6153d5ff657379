// Package rootcause implements C7: a deterministic mapping from a
// scored window's features and model scores to one primary root-cause
// tag, its contributing conditions, and a confidence score. Grounded on
// original_source/.../root_cause_analyzer.py, which confirms this is a
// fixed table with no model calls — pure, order-evaluated rules.
package rootcause

import "github.com/justin4957/logflow-anomaly-detector/pkg/models"

// Condition names one of the four §4.7 contributing conditions.
type Condition string

const (
	LatencyBottleneck  Condition = "latency_bottleneck"
	BackendInstability Condition = "backend_instability"
	TrafficSurge       Condition = "traffic_surge"
	AbuseOrBot         Condition = "abuse_or_bot"
)

// Result is C7's output: the primary tag, every condition that matched,
// and a confidence in [0,1].
type Result struct {
	RootCause              models.RootCause
	ContributingConditions []string
	Confidence             float64
}

// rateSurgeBaseline is the §4.7 traffic_surge baseline (5 req/s); the
// rule fires at 2x baseline, i.e. request_rate >= 10 over the window.
const rateSurgeBaseline = 5.0

// Classify evaluates the four conditions in order and derives the
// primary tag per spec §4.7's rule: the first rule whose sole condition
// holds wins; SYSTEM_OVERLOAD when two or more conditions hold; NONE
// when none hold.
func Classify(f models.FeatureVector, ms models.ModelScores) Result {
	conditions := make([]Condition, 0, 4)

	if f.AvgResponseTime > 800 && f.ErrorRate < 0.3 {
		conditions = append(conditions, LatencyBottleneck)
	}
	if f.ErrorRate >= 0.3 {
		conditions = append(conditions, BackendInstability)
	}
	if f.RequestRate >= 2*rateSurgeBaseline {
		conditions = append(conditions, TrafficSurge)
	}
	if f.RepeatedParameterRatio > 0.7 || ms.ClusterID == 2 {
		conditions = append(conditions, AbuseOrBot)
	}

	tags := make([]string, len(conditions))
	for i, c := range conditions {
		tags[i] = string(c)
	}

	switch len(conditions) {
	case 0:
		return Result{RootCause: models.RootCauseNone, ContributingConditions: tags, Confidence: 0}
	case 1:
		return Result{
			RootCause:              primaryFor(conditions[0]),
			ContributingConditions: tags,
			Confidence:             singleConditionConfidence(conditions[0]),
		}
	case 2:
		return Result{RootCause: models.RootCauseSystemOverload, ContributingConditions: tags, Confidence: 0.90}
	default:
		return Result{RootCause: models.RootCauseSystemOverload, ContributingConditions: tags, Confidence: 0.95}
	}
}

func primaryFor(c Condition) models.RootCause {
	switch c {
	case LatencyBottleneck:
		return models.RootCauseLatencyBottleneck
	case BackendInstability:
		return models.RootCauseBackendInstability
	case TrafficSurge:
		return models.RootCauseTrafficSurge
	case AbuseOrBot:
		return models.RootCauseAbuseOrBot
	default:
		return models.RootCauseNone
	}
}

// singleConditionConfidence fills the 0.88-0.92 single-condition band of
// spec §4.7's fixed table; each condition gets a distinct, stable value
// within the band so the table is deterministic rule-by-rule, not a
// single flat constant.
func singleConditionConfidence(c Condition) float64 {
	switch c {
	case LatencyBottleneck:
		return 0.88
	case BackendInstability:
		return 0.92
	case TrafficSurge:
		return 0.90
	case AbuseOrBot:
		return 0.91
	default:
		return 0.88
	}
}
