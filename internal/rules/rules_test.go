package rules

import (
	"testing"

	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func defaultThresholds() config.RuleThresholds {
	return config.DefaultConfig().Detector.RuleThresholds
}

func TestEvaluateFiresNoAlertsOnNormalTraffic(t *testing.T) {
	f := models.FeatureVector{
		RequestRate: 5, ErrorRate: 0.05, UserAgentEntropy: 1.5,
		RepeatedParameterRatio: 0.1, AvgPayloadSize: 500, UniqueEndpoints: 2,
	}
	got := Evaluate(f, defaultThresholds())
	if len(got.Alerts) != 0 {
		t.Errorf("Alerts = %v, want none", got.Alerts)
	}
	if got.RuleScore != 0 {
		t.Errorf("RuleScore = %v, want 0", got.RuleScore)
	}
}

func TestEvaluateRateSpike(t *testing.T) {
	f := models.FeatureVector{RequestRate: 100}
	got := Evaluate(f, defaultThresholds())
	if !got.Has(models.AlertRateSpike) {
		t.Errorf("expected RATE_SPIKE alert, got %v", got.Alerts)
	}
}

func TestEvaluateBotPatternRequiresBothConditions(t *testing.T) {
	t_ := defaultThresholds()

	lowEntropyOnly := models.FeatureVector{UserAgentEntropy: 0.1, RepeatedParameterRatio: 0.1}
	if Evaluate(lowEntropyOnly, t_).Has(models.AlertBotPattern) {
		t.Error("BOT_PATTERN should not fire on low entropy alone")
	}

	both := models.FeatureVector{UserAgentEntropy: 0.1, RepeatedParameterRatio: 0.9}
	if !Evaluate(both, t_).Has(models.AlertBotPattern) {
		t.Error("BOT_PATTERN should fire when both entropy and repeat ratio cross thresholds")
	}
}

func TestEvaluateScoreCapsAtOne(t *testing.T) {
	f := models.FeatureVector{
		RequestRate:            1000,
		ErrorRate:              1,
		UserAgentEntropy:       0,
		RepeatedParameterRatio: 1,
		AvgPayloadSize:         1_000_000,
		UniqueEndpoints:        1000,
	}
	got := Evaluate(f, defaultThresholds())
	if len(got.Alerts) != 5 {
		t.Fatalf("expected all 5 alerts to fire, got %v", got.Alerts)
	}
	if got.RuleScore != 1.0 {
		t.Errorf("RuleScore = %v, want 1.0 (capped)", got.RuleScore)
	}
}
