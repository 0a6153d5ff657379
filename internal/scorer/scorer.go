// Package scorer implements C6, the hybrid scorer: it ensembles the
// rule score with the three model-holder outputs into a single risk
// score and priority bucket, per spec §4.6.
package scorer

import (
	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// term is one weighted input to the ensemble; unavailable terms are
// dropped and the remaining weights renormalized to sum to 1, per
// spec §4.6.
type term struct {
	weight      float64
	value       float64
	unavailable bool
}

// Score combines alerts and model outputs into a risk score and
// priority, and derives is_anomaly.
func Score(alerts models.RuleAlertSet, ms models.ModelScores, w config.ScoreWeights, bands config.PriorityBands) (riskScore float64, priority models.Priority, isAnomaly bool) {
	terms := []term{
		{weight: w.Rule, value: alerts.RuleScore},
		{weight: w.Anomaly, value: ms.AnomalyScore, unavailable: ms.AnomalyUnavailable},
		{weight: w.Failure, value: ms.FailureProbability, unavailable: ms.FailureUnavailable},
		{weight: w.NextWindowFailure, value: ms.NextWindowFailureProbability, unavailable: ms.NextWindowUnavailable},
	}

	totalWeight := 0.0
	for _, t := range terms {
		if !t.unavailable {
			totalWeight += t.weight
		}
	}
	if totalWeight <= 0 {
		// No available term carries weight (every model term unavailable
		// and a zero rule weight): nothing to score on. Defined as zero
		// risk rather than a division by zero.
		return 0, models.PriorityLow, len(alerts.Alerts) >= 1
	}

	risk := 0.0
	for _, t := range terms {
		if t.unavailable {
			continue
		}
		risk += (t.weight / totalWeight) * t.value
	}
	if risk < 0 {
		risk = 0
	}
	if risk > 1 {
		risk = 1
	}

	priority = bandPriority(risk, bands)
	isAnomaly = priority != models.PriorityLow || len(alerts.Alerts) >= 1

	return risk, priority, isAnomaly
}

// bandPriority maps risk onto the four priority bands, closed on the low
// side: a boundary value belongs to the higher band (spec §4.6).
func bandPriority(risk float64, bands config.PriorityBands) models.Priority {
	switch {
	case risk >= bands.Critical:
		return models.PriorityCritical
	case risk >= bands.High:
		return models.PriorityHigh
	case risk >= bands.Medium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}
