package models

import "time"

// Detection is the scored, classified, and remediated result produced
// from exactly one completed Window. Immutable once constructed.
type Detection struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Mode      Mode      `json:"mode"`
	Source    string    `json:"source"`
	WindowID  int64     `json:"window_id"`

	Features FeatureVector `json:"features"`

	RuleAlerts  []RuleAlert `json:"rule_alerts"`
	RuleScore   float64     `json:"rule_score"`
	ModelScores ModelScores `json:"model_scores"`

	RiskScore float64  `json:"risk_score"`
	Priority  Priority `json:"priority"`
	IsAnomaly bool     `json:"is_anomaly"`

	RootCause              RootCause   `json:"root_cause"`
	ContributingConditions []string    `json:"contributing_conditions"`
	Confidence             float64     `json:"confidence"`
	Resolutions            []Resolution `json:"resolutions"`

	DetectionLatencyMS float64 `json:"detection_latency_ms"`

	// Simulation-only fields; zero-valued and omitted for LIVE.
	InjectedLabel        SimPattern `json:"injected_label,omitempty"`
	EmergencyRank        int        `json:"emergency_rank,omitempty"`
	IsCorrectlyDetected  *bool      `json:"is_correctly_detected,omitempty"`
}

// Key identifies the (mode, source, window_id) triple a Detection must be
// unique for, per the exactly-once invariant (spec §3, P2).
type DetectionKey struct {
	Mode     Mode
	Source   string
	WindowID int64
}

func (d Detection) Key() DetectionKey {
	return DetectionKey{Mode: d.Mode, Source: d.Source, WindowID: d.WindowID}
}
