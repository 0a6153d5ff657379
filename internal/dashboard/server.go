// Package dashboard exposes the three stable external contracts of
// spec §6: the Control API (HTTP/JSON), the Detection wire format, and
// the event-bus transport. Adapted from the teacher's dashboard.Server:
// kept the single http.ServeMux composition and the gorilla/websocket
// upgrade path, replaced the teacher's ad hoc /api/metrics stub and
// anomaly-feed HTML page with the Control API's endpoint table and a
// Prometheus /metrics handler, grounded on the pack's promhttp usage in
// netobserv-flowlogs-pipeline and kubilitics-ai/backend.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/internal/orchestrator"
	"github.com/justin4957/logflow-anomaly-detector/internal/simulation"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Server hosts the Control API, the event-bus WebSocket transport, and
// the Prometheus metrics endpoint over one http.ServeMux, mirroring the
// teacher's single-mux composition in dashboard.Server.Start.
type Server struct {
	log    *zap.Logger
	cfg    config.DashboardConfig
	orch   *orchestrator.Orchestrator
	upgrader websocket.Upgrader
}

// NewServer wires the dashboard over an Orchestrator.
func NewServer(log *zap.Logger, cfg config.DashboardConfig, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		log:  log,
		cfg:  cfg,
		orch: orch,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start serves the Control API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/live/stats", s.handleLiveStats)
	mux.HandleFunc("/sim/stats", s.handleSimStats)
	mux.HandleFunc("/sim/start", s.handleSimStart)
	mux.HandleFunc("/sim/stop", s.handleSimStop)
	mux.HandleFunc("/sim/clear", s.handleSimClear)
	mux.HandleFunc("/detections", s.handleDetections)
	mux.HandleFunc("/sim/emergencies", s.handleEmergencies)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]string{"error": kind})
}

// handleLiveStats implements GET /live/stats.
func (s *Server) handleLiveStats(w http.ResponseWriter, r *http.Request) {
	total := s.orch.Counters().Total(models.ModeLive)
	status := "idle"
	if total > 0 {
		status = "active"
	}

	openCount := 0
	windowsProcessed := int64(0)
	for _, src := range s.orch.Aggregator().Sources(models.ModeLive) {
		o, sealed := s.orch.Aggregator().Snapshot(models.ModeLive, src)
		openCount += o
		windowsProcessed += sealed
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":                "LIVE",
		"total_requests":      total,
		"current_window_count": openCount,
		"windows_processed":   windowsProcessed,
		"status":              status,
		"per_source_counts":   s.orch.Counters().PerSource(models.ModeLive),
	})
}

// handleSimStats implements GET /sim/stats.
func (s *Server) handleSimStats(w http.ResponseWriter, r *http.Request) {
	stat := s.orch.Simulation().Status()
	acc := s.orch.History().Accuracy()

	openCount := 0
	windowsProcessed := int64(0)
	for _, src := range s.orch.Aggregator().Sources(models.ModeSim) {
		o, sealed := s.orch.Aggregator().Snapshot(models.ModeSim, src)
		openCount += o
		windowsProcessed += sealed
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":               "SIM",
		"active":             stat.Active,
		"injected_target":    stat.Target,
		"pattern":            stat.Pattern,
		"total_requests":     s.orch.Counters().Total(models.ModeSim),
		"windows_processed":  windowsProcessed,
		"accuracy":           acc,
		"current_window_count": openCount,
	})
}

// handleSimStart implements POST /sim/start.
func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("virtual_source")
	pattern := models.SimPattern(q.Get("pattern"))
	duration := atoiOr(q.Get("duration_s"), 10)
	batch := atoiOr(q.Get("batch_size"), 100)

	runID, err := s.orch.StartSimulation(source, pattern, duration, batch)
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "started",
			"run_id":         runID,
			"virtual_source": source,
			"pattern":        pattern,
			"duration_s":     duration,
			"batch_size":     batch,
		})
	case simulation.ErrInvalidTarget:
		writeError(w, http.StatusBadRequest, "InvalidTarget")
	case simulation.ErrInvalidPattern:
		writeError(w, http.StatusBadRequest, "InvalidPattern")
	case simulation.ErrAlreadyActive:
		writeError(w, http.StatusConflict, "AlreadyActive")
	default:
		writeError(w, http.StatusInternalServerError, "Internal")
	}
}

// handleSimStop implements POST /sim/stop.
func (s *Server) handleSimStop(w http.ResponseWriter, r *http.Request) {
	final, err := s.orch.StopSimulation()
	if err == simulation.ErrNotActive {
		writeError(w, http.StatusConflict, "NotActive")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "stopped",
		"final_stats": map[string]any{
			"run_id":        final.RunID,
			"target":        final.Target,
			"pattern":       final.Pattern,
			"total_emitted": final.TotalEmitted,
			"accuracy":      s.orch.History().Accuracy(),
		},
	})
}

// handleSimClear implements POST /sim/clear.
func (s *Server) handleSimClear(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.ClearSimulation(); err != nil {
		writeError(w, http.StatusConflict, "AlreadyActive")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDetections implements GET /detections?mode&limit.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := models.Mode(q.Get("mode"))
	if mode != models.ModeLive && mode != models.ModeSim {
		writeError(w, http.StatusBadRequest, "InvalidMode")
		return
	}
	limit := atoiOr(q.Get("limit"), 100)
	if limit > 1000 {
		limit = 1000
	}

	gw := s.orch.Persistence()
	if gw == nil {
		writeJSON(w, http.StatusOK, []models.Detection{})
		return
	}

	list, err := gw.ListDetections(r.Context(), mode, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleEmergencies implements GET /sim/emergencies?limit.
func (s *Server) handleEmergencies(w http.ResponseWriter, r *http.Request) {
	limit := atoiOr(r.URL.Query().Get("limit"), 10)
	writeJSON(w, http.StatusOK, s.orch.History().TopEmergencies(limit))
}

// handleWebSocket upgrades to the bidirectional framed stream of spec
// §6's event-bus transport: {"type":"detection","data":<Detection>}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.orch.Bus().Subscribe()
	defer s.orch.Bus().Unsubscribe(sub.ID)

	// The detector does not depend on subscriber liveness: a slow reader
	// just falls behind its own queue, never the producer (spec §6).
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for d := range sub.C {
		if err := conn.WriteJSON(map[string]any{"type": "detection", "data": d}); err != nil {
			return
		}
	}
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
