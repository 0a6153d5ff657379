// Package orchestrator implements C13: it drives observe() -> score()
// end to end, owns mode lifecycle, and is the one place spec §9's
// "cyclic middleware touches global state" note becomes a one-way
// dependency — instrumentation calls Orchestrator.Observe(obs) and
// nothing else; the orchestrator owns all state from there.
package orchestrator

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/internal/aggregator"
	"github.com/justin4957/logflow-anomaly-detector/internal/bus"
	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/internal/features"
	"github.com/justin4957/logflow-anomaly-detector/internal/filter"
	"github.com/justin4957/logflow-anomaly-detector/internal/history"
	"github.com/justin4957/logflow-anomaly-detector/internal/metrics"
	"github.com/justin4957/logflow-anomaly-detector/internal/modelholder"
	"github.com/justin4957/logflow-anomaly-detector/internal/persistence"
	"github.com/justin4957/logflow-anomaly-detector/internal/resolution"
	"github.com/justin4957/logflow-anomaly-detector/internal/rootcause"
	"github.com/justin4957/logflow-anomaly-detector/internal/rules"
	"github.com/justin4957/logflow-anomaly-detector/internal/scorer"
	"github.com/justin4957/logflow-anomaly-detector/internal/simulation"
	"github.com/justin4957/logflow-anomaly-detector/internal/telemetry"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Orchestrator is the detector's composition root for the live pipeline.
// Global mutable counters become typed fields here instead of
// module-level dictionaries (spec §9), scoped per-mode via
// internal/telemetry so the isolation invariant (P1) is checkable by
// inspection.
type Orchestrator struct {
	log    *zap.Logger
	store  *config.Store
	routes *filter.RouteSet

	agg     *aggregator.Aggregator
	models  *modelholder.Holder
	history *history.Store
	persist *persistence.Gateway
	bus     *bus.Bus
	counts  *telemetry.Counters
	sim     *simulation.Engine

	workerSem chan struct{}
	streams   sync.Map // streamKey -> *streamActor
}

// streamKey mirrors aggregator's internal key shape for the per-source
// scoring actor.
type streamKey struct {
	mode   models.Mode
	source string
}

// streamActor is the single consistently-assigned worker for one
// (mode,source) stream (spec §5, P4: "achieved by routing scoring tasks
// for the same source through the same worker"). queue is drained by
// exactly one goroutine, started lazily on the stream's first sealed
// window, so scoring (and the publish/persist that follows it) happens
// in the exact order windows are enqueued — a naked mutex can't promise
// that, since sync.Mutex never guarantees FIFO acquisition under
// contention.
type streamActor struct {
	mu    sync.Mutex // guards enqueue order: Push-then-send is atomic
	queue chan models.Window
	once  sync.Once
}

// streamQueueDepth bounds how far a single hot source can get ahead of
// its own scoring worker before Observe starts feeling backpressure from
// it; it does not gate unrelated sources, which each get their own
// actor and queue.
const streamQueueDepth = 64

// New wires every component per spec §2's data flow. persist may be nil
// (detector still runs, just without durable writes — C11's failure
// semantics are "logged and counted", and a disabled gateway degrades
// the same way).
func New(log *zap.Logger, store *config.Store, mh *modelholder.Holder, persist *persistence.Gateway) *Orchestrator {
	cfg := store.Get()
	o := &Orchestrator{
		log:     log,
		store:   store,
		routes:  filter.NewRouteSet(cfg.Detector),
		agg:     aggregator.New(cfg.Detector.WindowSize),
		models:  mh,
		history: history.New(cfg.Detector.HistoryCapacity),
		persist: persist,
		bus:     bus.New(cfg.Detector.SubscriberQueueDepth),
		counts:  telemetry.New(),

		workerSem: make(chan struct{}, workerPoolSize()),
	}
	o.sim = simulation.New(log, o, cfg.Detector.SimVirtualRoutes, cfg.Detector.SimulationTargetRPS)
	return o
}

// workerPoolSize sizes the scoring worker pool to roughly the CPU
// count, per spec §5's recommended shape.
func workerPoolSize() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	return n
}

// Bus exposes the event bus so HTTP handlers can Subscribe/Unsubscribe.
func (o *Orchestrator) Bus() *bus.Bus { return o.bus }

// History exposes the SIM journal for the Control API's
// /sim/emergencies and accuracy fields.
func (o *Orchestrator) History() *history.Store { return o.history }

// Simulation exposes C9's control surface for the Control API.
func (o *Orchestrator) Simulation() *simulation.Engine { return o.sim }

// Counters exposes per-mode totals for the Control API's stats
// endpoints.
func (o *Orchestrator) Counters() *telemetry.Counters { return o.counts }

// Aggregator exposes C2's telemetry for current_window_count.
func (o *Orchestrator) Aggregator() *aggregator.Aggregator { return o.agg }

// Persistence exposes C11 for the Control API's /detections.
func (o *Orchestrator) Persistence() *persistence.Gateway { return o.persist }

// Observe is the only entrypoint instrumentation (or C9) ever calls:
// C1 classifies, C2 aggregates, and a sealed window schedules an async
// scoring task. Satisfies simulation.Emitter.
func (o *Orchestrator) Observe(obs models.Observation) {
	verdict := filter.Classify(obs, o.routes)
	metrics.ObservationsTotal.WithLabelValues(string(obs.Mode), string(verdict)).Inc()

	if verdict != filter.Tracked {
		return
	}
	o.counts.RecordTracked(obs)

	if o.persist != nil {
		o.persist.WriteObservation(obs)
	}

	sealed := o.pushOrdered(obs)
	if sealed {
		metrics.WindowsSealedTotal.WithLabelValues(string(obs.Mode)).Inc()
	}
}

// pushOrdered pushes obs into C2 and, if that push seals a window,
// enqueues it onto that (mode,source) stream's actor under the same
// critical section that performed the push. That's what makes enqueue
// order match seal order exactly: two producer goroutines racing to seal
// consecutive windows for the same source can't have their enqueues
// reordered relative to each other, because only one of them can hold
// st.mu at a time and each holder fully enqueues before releasing it.
func (o *Orchestrator) pushOrdered(obs models.Observation) bool {
	key := streamKey{mode: obs.Mode, source: obs.Source}
	actorAny, _ := o.streams.LoadOrStore(key, &streamActor{queue: make(chan models.Window, streamQueueDepth)})
	st := actorAny.(*streamActor)

	st.mu.Lock()
	defer st.mu.Unlock()

	win, sealed := o.agg.Push(obs)
	if !sealed {
		return false
	}

	st.once.Do(func() { go o.runStreamActor(st) })
	st.queue <- *win
	return true
}

// runStreamActor is the single worker for one stream: it drains queue
// strictly in send order, one window at a time, so a given source's
// Detections are scored (and therefore published and persisted) in
// strictly increasing window_id order even though runs for different
// sources proceed fully in parallel. The semaphore acquire happens here,
// never in Observe's caller, so Observe itself never blocks on worker
// availability (spec §5) beyond the bounded per-stream queue above.
func (o *Orchestrator) runStreamActor(st *streamActor) {
	for win := range st.queue {
		o.workerSem <- struct{}{}
		o.score(win)
		<-o.workerSem
	}
}

// score runs C3 -> {C4, C5} -> C6 -> C7 -> C8, assembles the Detection,
// then fans it out to C10 (SIM only), C11, and C12.
func (o *Orchestrator) score(win models.Window) {
	start := time.Now()
	cfg := o.store.Get().Detector

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ScoringDeadline())
	defer cancel()

	f := features.Extract(win)
	arr := f.Array()

	ms := o.runModels(ctx, arr)
	alerts := rules.Evaluate(f, cfg.RuleThresholds)
	risk, priority, isAnomaly := scorer.Score(alerts, ms, cfg.ScoreWeights, cfg.PriorityBands)
	rc := rootcause.Classify(f, ms)
	resolutions := resolution.Generate(rc.RootCause, priority, rc.ContributingConditions)

	det := models.Detection{
		ID:                     models.NewDetectionID(),
		Timestamp:              time.Now(),
		Mode:                   win.Mode,
		Source:                 win.Source,
		WindowID:                win.ID,
		Features:               f,
		RuleAlerts:              alerts.Alerts,
		RuleScore:               alerts.RuleScore,
		ModelScores:             ms,
		RiskScore:               risk,
		Priority:                priority,
		IsAnomaly:               isAnomaly,
		RootCause:               rc.RootCause,
		ContributingConditions:  rc.ContributingConditions,
		Confidence:              rc.Confidence,
		Resolutions:             resolutions,
		DetectionLatencyMS:      float64(time.Since(start).Microseconds()) / 1000.0,
	}

	if win.Mode == models.ModeSim {
		det.InjectedLabel = majorityLabel(win)
		rank, correct := o.history.Append(det)
		det.EmergencyRank = rank
		det.IsCorrectlyDetected = &correct
	}

	metrics.DetectionsTotal.WithLabelValues(string(det.Mode), string(det.Priority)).Inc()
	metrics.ScoringLatencySeconds.WithLabelValues(string(det.Mode)).Observe(time.Since(start).Seconds())

	if o.persist != nil {
		if err := o.persist.WriteDetection(ctx, det); err != nil {
			metrics.PersistenceWriteFailuresTotal.WithLabelValues("detections").Inc()
		}
	}

	o.bus.Publish(det)
}

// runModels calls the four C4 operations one after another on a single
// goroutine, honoring the per-window soft deadline in ctx: if the four
// calls have not all finished by the deadline, all four terms are
// marked unavailable rather than blocking the pipeline. Results of calls
// that finished before the deadline are not kept in that case; there is
// no per-submodel deadline.
func (o *Orchestrator) runModels(ctx context.Context, x [9]float64) models.ModelScores {
	var ms models.ModelScores

	type result struct {
		anomalyScore   float64
		failureProb    float64
		clusterID      int
		clusterDist    float64
		nextFailure    float64
		anomalyErr     error
		failureErr     error
		clusterErr     error
		nextFailureErr error
	}

	done := make(chan result, 1)
	go func() {
		var r result
		r.anomalyScore, r.anomalyErr = o.models.PredictIF(x)
		r.failureProb, r.failureErr = o.models.PredictFailure(x)
		r.clusterID, r.clusterDist, r.clusterErr = o.models.AssignCluster(x)
		r.nextFailure, r.nextFailureErr = o.models.PredictNextFailure(x)
		done <- r
	}()

	select {
	case r := <-done:
		ms.AnomalyScore, ms.AnomalyUnavailable = unavailableIf(r.anomalyScore, r.anomalyErr)
		ms.FailureProbability, ms.FailureUnavailable = unavailableIf(r.failureProb, r.failureErr)
		ms.ClusterID, ms.ClusterUnavailable = r.clusterID, r.clusterErr != nil
		ms.ClusterDistance = r.clusterDist
		ms.NextWindowFailureProbability, ms.NextWindowUnavailable = unavailableIf(r.nextFailure, r.nextFailureErr)
	case <-ctx.Done():
		// Deadline exceeded: every term is abandoned and marked
		// unavailable; the hybrid scorer renormalizes around rule_score
		// alone if need be (spec §5, B3).
		ms.AnomalyUnavailable = true
		ms.FailureUnavailable = true
		ms.ClusterUnavailable = true
		ms.NextWindowUnavailable = true
	}

	for name, unavailable := range map[string]bool{
		"anomaly": ms.AnomalyUnavailable, "failure": ms.FailureUnavailable,
		"cluster": ms.ClusterUnavailable, "next_window_failure": ms.NextWindowUnavailable,
	} {
		if unavailable {
			metrics.SubmodelUnavailableTotal.WithLabelValues(name).Inc()
		}
	}

	return ms
}

func unavailableIf(v float64, err error) (float64, bool) {
	if err != nil {
		return 0, true
	}
	return v, false
}

// majorityLabel derives one per-window ground-truth label from the ten
// observations' individually-stamped InjectedLabel (MIXED samples a
// different sub-pattern per emission, so a window can contain more than
// one label; the most frequent one wins, ties broken toward the first
// label encountered).
func majorityLabel(win models.Window) models.SimPattern {
	counts := make(map[models.SimPattern]int, 4)
	order := make([]models.SimPattern, 0, 4)
	for _, o := range win.Observations {
		if _, seen := counts[o.InjectedLabel]; !seen {
			order = append(order, o.InjectedLabel)
		}
		counts[o.InjectedLabel]++
	}

	best, bestCount := models.SimPattern(""), 0
	for _, label := range order {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	return best
}

// StartSimulation forwards to C9.
func (o *Orchestrator) StartSimulation(virtualSource string, pattern models.SimPattern, durationSec, batchSize int) (string, error) {
	return o.sim.Start(virtualSource, pattern, durationSec, batchSize)
}

// StopSimulation forwards to C9.
func (o *Orchestrator) StopSimulation() (simulation.Stats, error) {
	return o.sim.Stop()
}

// ClearSimulation clears C10's journal; fails if a simulation is active
// (spec §6 /sim/clear).
func (o *Orchestrator) ClearSimulation() error {
	if o.sim.Status().Active {
		return ErrSimulationActive
	}
	o.history.Clear()
	return nil
}
