package models

import "time"

// LogEntry is the wire shape produced by internal/parser when the
// detector is fed from a tailed access log rather than in-process
// instrumentation. It is an ingestion-time intermediate only; once
// converted to an Observation it is discarded — raw parameter strings
// are not retained past feature extraction either way (spec §9).
type LogEntry struct {
	Timestamp    time.Time              `json:"timestamp"`
	Level        string                 `json:"level"`
	Message      string                 `json:"message"`
	Source       string                 `json:"source"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	StatusCode   int                    `json:"status_code,omitempty"`
	ResponseTime float64                `json:"response_time,omitempty"`
	Method       string                 `json:"method,omitempty"`
	Path         string                 `json:"path,omitempty"`
	PayloadSize  int                    `json:"payload_size,omitempty"`
	Params       map[string]string      `json:"params,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// ToObservation converts a parsed log line into a LIVE Observation, the
// shape the observation filter (C1) expects as input.
func (e LogEntry) ToObservation() Observation {
	params := make([]Param, 0, len(e.Params))
	for name, value := range e.Params {
		params = append(params, Param{Name: name, Value: value})
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Observation{
		Monotonic:   ts.UnixNano(),
		WallClock:   ts,
		Source:      e.Path,
		Route:       e.Path,
		Method:      e.Method,
		StatusCode:  e.StatusCode,
		LatencyMS:   e.ResponseTime,
		PayloadSize: e.PayloadSize,
		UserAgent:   e.UserAgent,
		Params:      params,
		Mode:        ModeLive,
	}
}
