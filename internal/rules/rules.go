// Package rules implements C5, the deterministic rule engine of spec
// §4.5: pure threshold checks over a FeatureVector, order-independent.
package rules

import (
	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Evaluate runs every threshold rule against f and returns the fired
// alert set plus rule_score = min(1, 0.2 * |alerts fired|).
func Evaluate(f models.FeatureVector, t config.RuleThresholds) models.RuleAlertSet {
	var alerts []models.RuleAlert

	if f.RequestRate > t.RateSpikeReqPerSec {
		alerts = append(alerts, models.AlertRateSpike)
	}
	if f.ErrorRate > t.ErrorBurstRate {
		alerts = append(alerts, models.AlertErrorBurst)
	}
	if f.UserAgentEntropy < t.BotEntropyMax && f.RepeatedParameterRatio > t.BotRepeatRatioMin {
		alerts = append(alerts, models.AlertBotPattern)
	}
	if f.AvgPayloadSize > t.LargePayloadBytes {
		alerts = append(alerts, models.AlertLargePayload)
	}
	if f.UniqueEndpoints > t.EndpointScanUnique {
		alerts = append(alerts, models.AlertEndpointScan)
	}

	score := 0.2 * float64(len(alerts))
	if score > 1 {
		score = 1
	}

	return models.RuleAlertSet{Alerts: alerts, RuleScore: score}
}
