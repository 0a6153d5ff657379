// Package parser turns raw log lines from internal/stream's tailer into
// the ingestion-time models.LogEntry shape. cmd/detector's default
// configuration (and every deployment this detector actually ships for)
// feeds JSON-shaped access logs, so the teacher's Apache/Common Log
// Format branches — dead weight nothing in this module exercises — were
// dropped in favor of a single JSONParser that reports its failures the
// way the rest of the detector does: a zap warning plus a Prometheus
// counter instead of a silently swallowed *models.LogEntry(nil).
package parser

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/internal/metrics"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// LogParser interface for parsing log lines into LogEntry records.
type LogParser interface {
	Parse(line string) (*models.LogEntry, error)
}

// NewParser returns the detector's line parser for format. Only "json"
// is wired end to end; any other value is logged once and falls back to
// JSON rather than silently mis-parsing every line.
func NewParser(format string, log *zap.Logger) LogParser {
	if format != "" && format != "json" && log != nil {
		log.Warn("unsupported log_format, falling back to json", zap.String("requested", format))
	}
	return &JSONParser{}
}

// JSONParser parses JSON-formatted logs.
type JSONParser struct{}

func (p *JSONParser) Parse(line string) (*models.LogEntry, error) {
	var entry models.LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		metrics.ParseErrorsTotal.Inc()
		return nil, fmt.Errorf("failed to parse JSON log: %w", err)
	}
	return &entry, nil
}
