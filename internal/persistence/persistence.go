// Package persistence implements C11: idempotent durable writes of
// Observations and Detections, tagged by mode, with mode-filtered reads.
// Grounded on
// vellankikoti-kubilitics-os-emergent/kubilitics-backend/internal/repository/sqlite.go
// (sqlx.Connect + ExecContext/SelectContext over a SQLite DSN) and
// leitfader-RFGuard/internal/storage/sqlite.go (pure-Go modernc.org/sqlite
// driver, CREATE TABLE IF NOT EXISTS schema setup, batched inserts inside
// one transaction).
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Gateway owns the detector's two append-only tables.
type Gateway struct {
	db  *sqlx.DB
	log *zap.Logger

	observationCh chan models.Observation
}

// Open connects to dsn (a modernc.org/sqlite DSN, e.g.
// "file:detector.db?_pragma=busy_timeout(5000)") and ensures the schema
// exists.
func Open(dsn string, log *zap.Logger) (*Gateway, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	g := &Gateway{db: db, log: log, observationCh: make(chan models.Observation, 1024)}
	if err := g.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode TEXT NOT NULL,
			source TEXT NOT NULL,
			route TEXT NOT NULL,
			method TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			latency_ms REAL NOT NULL,
			payload_size INTEGER NOT NULL,
			wall_clock TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_mode ON observations(mode)`,
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			source TEXT NOT NULL,
			window_id INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			risk_score REAL NOT NULL,
			priority TEXT NOT NULL,
			root_cause TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			UNIQUE(mode, source, window_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_mode ON detections(mode, timestamp DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := g.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// StartObservationWriter launches the single batched persistence writer
// for observations: a bounded channel of depth P (spec §5) funnels
// best-effort, fire-and-forget writes off the hot path. Overflow drops
// the oldest queued write without ever blocking the producer — that is
// WriteObservation's job, so the writer itself just drains.
func (g *Gateway) StartObservationWriter(ctx context.Context) {
	const batchWindow = 250 * time.Millisecond
	ticker := time.NewTicker(batchWindow)
	defer ticker.Stop()

	batch := make([]models.Observation, 0, 256)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := g.writeObservationBatch(batch); err != nil {
			g.log.Warn("observation batch write failed", zap.Error(err), zap.Int("count", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case obs := <-g.observationCh:
			batch = append(batch, obs)
			if len(batch) >= 256 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// WriteObservation enqueues obs for the batched writer. Best-effort: on
// a full channel the oldest queued observation is dropped to make room
// (never detections, per spec §5) and the caller's hot path is never
// blocked.
func (g *Gateway) WriteObservation(obs models.Observation) {
	select {
	case g.observationCh <- obs:
		return
	default:
	}

	select {
	case <-g.observationCh:
		g.log.Debug("observation write channel full, dropping oldest", zap.String("source", obs.Source))
	default:
	}
	select {
	case g.observationCh <- obs:
	default:
	}
}

func (g *Gateway) writeObservationBatch(batch []models.Observation) error {
	tx, err := g.db.Beginx()
	if err != nil {
		return err
	}
	stmt, err := tx.Preparex(
		`INSERT INTO observations (mode, source, route, method, status_code, latency_ms, payload_size, wall_clock)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range batch {
		if _, err := stmt.Exec(o.Mode, o.Source, o.Route, o.Method, o.StatusCode, o.LatencyMS, o.PayloadSize, o.WallClock.UTC()); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// WriteDetection performs the exactly-once-per-(mode,source,window_id)
// durable write, enforced via the unique index. A write failure is
// logged and counted; it never blocks scoring or broadcasting (spec
// §4.11, §7).
func (g *Gateway) WriteDetection(ctx context.Context, d models.Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	_, err = g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO detections (id, mode, source, window_id, timestamp, risk_score, priority, root_cause, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Mode, d.Source, d.WindowID, d.Timestamp.UTC(), d.RiskScore, d.Priority, d.RootCause, string(payload),
	)
	if err != nil {
		g.log.Warn("detection write failed", zap.Error(err), zap.String("detection_id", d.ID))
	}
	return err
}

// ListDetections returns up to limit persisted Detections for mode,
// newest first.
func (g *Gateway) ListDetections(ctx context.Context, mode models.Mode, limit int) ([]models.Detection, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	var rows []struct {
		PayloadJSON string `db:"payload_json"`
	}
	err := g.db.SelectContext(ctx, &rows,
		`SELECT payload_json FROM detections WHERE mode = ? ORDER BY timestamp DESC LIMIT ?`,
		mode, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.Detection, 0, len(rows))
	for _, r := range rows {
		var d models.Detection
		if err := json.Unmarshal([]byte(r.PayloadJSON), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}
