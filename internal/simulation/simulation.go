// Package simulation implements C9, the simulation engine: it generates
// labeled synthetic Observations targeting exactly one virtual source
// with exactly one anomaly pattern, at a controlled rate, for a bounded
// duration, without ever touching the LIVE pipeline. Grounded on
// original_source/.../simulation_manager_v2.py and traffic_simulator.py
// for the SCHEDULED -> RUNNING -> STOPPING -> IDLE lifecycle and
// per-emission MIXED sampling; spec §9 frames this as "a capability, not
// a module of globals" — one Engine value owns its RNG, rate-limiter,
// and labeling tables.
package simulation

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Control-plane errors, surfaced as 4xx at the HTTP boundary (spec §7).
var (
	ErrInvalidTarget  = errors.New("InvalidTarget")
	ErrInvalidPattern = errors.New("InvalidPattern")
	ErrAlreadyActive  = errors.New("AlreadyActive")
	ErrNotActive      = errors.New("NotActive")
)

// Emitter is the one-way dependency the engine calls into: every
// synthetic Observation flows through the same observe() entrypoint LIVE
// traffic does, tagged Mode: SIM so C1/C2 route it onto a SIM-only
// stream.
type Emitter interface {
	Observe(models.Observation)
}

// Stats is the snapshot returned by Status and by Stop's final_stats.
type Stats struct {
	Active         bool
	RunID          string
	Target         string
	Pattern        models.SimPattern
	State          models.SimLifecycle
	TotalEmitted   int64
	StartedAt      time.Time
	DurationSec    int
	BatchSize      int
}

// Engine drives one simulation run at a time.
type Engine struct {
	log        *zap.Logger
	emitter    Emitter
	routes     map[string]struct{}
	targetRPS  int

	mu      sync.Mutex
	state   models.SimLifecycle
	cancel  context.CancelFunc
	done    chan struct{}
	runID   string
	target  string
	pattern models.SimPattern
	startedAt time.Time
	durationSec int
	batchSize   int
	emitted     int64
}

// New builds an idle Engine. routes is the fixed set of virtual source
// routes this engine may target (spec §4.1's SIM allow-list); targetRPS
// is the rate-control knob spec §4.9 says is "configured separately from
// batch_size".
func New(log *zap.Logger, emitter Emitter, routes []string, targetRPS int) *Engine {
	set := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		set[r] = struct{}{}
	}
	if targetRPS <= 0 {
		targetRPS = 200
	}
	return &Engine{
		log:       log,
		emitter:   emitter,
		routes:    set,
		targetRPS: targetRPS,
		state:     models.LifecycleIdle,
	}
}

func validPattern(p models.SimPattern) bool {
	switch p {
	case models.PatternNormal, models.PatternRateSpike, models.PatternPayloadAbuse,
		models.PatternErrorBurst, models.PatternParamRepetition, models.PatternEndpointFlood,
		models.PatternMixed:
		return true
	default:
		return false
	}
}

// Start begins a new simulation run. Fails with ErrAlreadyActive if a
// run is already SCHEDULED, RUNNING, or STOPPING.
func (e *Engine) Start(virtualSource string, pattern models.SimPattern, durationSec, batchSize int) (runID string, err error) {
	if _, ok := e.routes[virtualSource]; !ok {
		return "", ErrInvalidTarget
	}
	if !validPattern(pattern) {
		return "", ErrInvalidPattern
	}
	if durationSec <= 0 {
		durationSec = 10
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	e.mu.Lock()
	if e.state == models.LifecycleScheduled || e.state == models.LifecycleRunning || e.state == models.LifecycleStopping {
		e.mu.Unlock()
		return "", ErrAlreadyActive
	}

	runID = uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.state = models.LifecycleScheduled
	e.cancel = cancel
	e.done = done
	e.runID = runID
	e.target = virtualSource
	e.pattern = pattern
	e.startedAt = time.Now()
	e.durationSec = durationSec
	e.batchSize = batchSize
	atomic.StoreInt64(&e.emitted, 0)
	e.mu.Unlock()

	go e.run(ctx, done, virtualSource, pattern, durationSec, batchSize)
	return runID, nil
}

// Stop cancels an active run (idempotent in the sense that a run
// already STOPPING is left alone) or fails with ErrNotActive if nothing
// is active.
func (e *Engine) Stop() (Stats, error) {
	e.mu.Lock()
	if e.state != models.LifecycleScheduled && e.state != models.LifecycleRunning {
		e.mu.Unlock()
		return Stats{}, ErrNotActive
	}
	e.state = models.LifecycleStopping
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	return e.Status(), nil
}

// Status returns the current run snapshot, active or not.
func (e *Engine) Status() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Active:       e.state == models.LifecycleScheduled || e.state == models.LifecycleRunning,
		RunID:        e.runID,
		Target:       e.target,
		Pattern:      e.pattern,
		State:        e.state,
		TotalEmitted: atomic.LoadInt64(&e.emitted),
		StartedAt:    e.startedAt,
		DurationSec:  e.durationSec,
		BatchSize:    e.batchSize,
	}
}

// run is the engine's own goroutine: it issues batches of concurrent
// emissions at targetRPS, honoring per-pattern amplification, until
// either duration elapses or ctx is cancelled via Stop. Any emissions
// already in flight when cancellation lands are allowed to complete —
// no partial Observation is ever emitted (spec §5).
func (e *Engine) run(ctx context.Context, done chan struct{}, source string, pattern models.SimPattern, durationSec, batchSize int) {
	defer close(done)

	e.mu.Lock()
	e.state = models.LifecycleRunning
	e.mu.Unlock()

	const tickInterval = 100 * time.Millisecond
	ticksPerSecond := int(time.Second / tickInterval)
	perTick := e.targetRPS / ticksPerSecond
	if perTick < 1 {
		perTick = 1
	}
	perTick *= amplification(pattern)
	if perTick < batchSize/ticksPerSecond {
		perTick = batchSize / ticksPerSecond
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(time.Duration(durationSec) * time.Second)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			e.finish()
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				wg.Wait()
				e.finish()
				return
			}
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				e.emitBatch(source, pattern, n)
			}(perTick)
		}
	}
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.state = models.LifecycleIdle
	e.mu.Unlock()
}

// amplification is the per-pattern emission-count multiplier spec §4.9
// calls out explicitly for RATE_SPIKE (>=5x) and ENDPOINT_FLOOD (>=10x).
func amplification(p models.SimPattern) int {
	switch p {
	case models.PatternRateSpike:
		return 5
	case models.PatternEndpointFlood:
		return 10
	default:
		return 1
	}
}

func (e *Engine) emitBatch(source string, pattern models.SimPattern, n int) {
	for i := 0; i < n; i++ {
		effective := pattern
		if pattern == models.PatternMixed {
			pool := models.AnomalousPatterns()
			effective = pool[rand.Intn(len(pool))]
		}
		obs := generate(source, effective)
		e.emitter.Observe(obs)
		atomic.AddInt64(&e.emitted, 1)
	}
}

var lowEntropyUserAgents = []string{"curl/7.68.0", "python-requests/2.28"}
var diverseUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
	"Mozilla/5.0 (X11; Linux x86_64)",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X)",
	"okhttp/4.9.3",
}
var lowEntropyParams = []models.Param{
	{Name: "id", Value: "1"},
	{Name: "id", Value: "1"},
	{Name: "token", Value: "abc"},
}
var methods = []string{"GET", "POST", "PUT", "DELETE"}

// generate builds one synthetic Observation matching the statistical
// shape of pattern, per spec §4.9's pattern semantics table.
func generate(source string, pattern models.SimPattern) models.Observation {
	now := time.Now()
	obs := models.Observation{
		Monotonic:     now.UnixNano(),
		WallClock:     now,
		Source:        source,
		Route:         source,
		Mode:          models.ModeSim,
		InjectedLabel: pattern,
	}

	switch pattern {
	case models.PatternNormal:
		obs.Method = methods[rand.Intn(len(methods))]
		obs.StatusCode = normalStatus()
		obs.LatencyMS = 50 + rand.Float64()*250
		obs.PayloadSize = 100 + rand.Intn(900)
		obs.UserAgent = diverseUserAgents[rand.Intn(len(diverseUserAgents))]

	case models.PatternRateSpike:
		obs.Method = "GET"
		obs.LatencyMS = 1 + rand.Float64()*19
		obs.PayloadSize = 10 + rand.Intn(90)
		obs.UserAgent = diverseUserAgents[rand.Intn(len(diverseUserAgents))]
		if rand.Float64() < 0.15 {
			obs.StatusCode = 503
		} else {
			obs.StatusCode = 200
		}

	case models.PatternPayloadAbuse:
		obs.Method = "POST"
		obs.StatusCode = normalStatus()
		obs.LatencyMS = 80 + rand.Float64()*200
		obs.PayloadSize = 10_000 + rand.Intn(40_000)
		obs.UserAgent = diverseUserAgents[rand.Intn(len(diverseUserAgents))]

	case models.PatternErrorBurst:
		obs.Method = methods[rand.Intn(len(methods))]
		obs.LatencyMS = 100 + rand.Float64()*400
		obs.PayloadSize = 100 + rand.Intn(900)
		obs.UserAgent = diverseUserAgents[rand.Intn(len(diverseUserAgents))]
		if rand.Float64() < 0.70 {
			obs.StatusCode = errorStatus()
		} else {
			obs.StatusCode = normalStatus()
		}

	case models.PatternParamRepetition:
		obs.Method = "GET"
		obs.StatusCode = normalStatus()
		obs.LatencyMS = 50 + rand.Float64()*150
		obs.PayloadSize = 50 + rand.Intn(200)
		obs.UserAgent = lowEntropyUserAgents[rand.Intn(len(lowEntropyUserAgents))]
		obs.Params = append([]models.Param(nil), lowEntropyParams...)

	case models.PatternEndpointFlood:
		obs.Method = "GET"
		obs.StatusCode = normalStatus()
		obs.LatencyMS = 20 + rand.Float64()*80
		obs.PayloadSize = 50 + rand.Intn(200)
		obs.UserAgent = diverseUserAgents[rand.Intn(len(diverseUserAgents))]

	default:
		obs.Method = "GET"
		obs.StatusCode = normalStatus()
		obs.LatencyMS = 50 + rand.Float64()*250
		obs.PayloadSize = 100 + rand.Intn(900)
		obs.UserAgent = diverseUserAgents[rand.Intn(len(diverseUserAgents))]
	}

	return obs
}

func normalStatus() int {
	if rand.Float64() < 0.85 {
		if rand.Float64() < 0.5 {
			return 200
		}
		return 201
	}
	return 404
}

func errorStatus() int {
	codes := []int{400, 404, 500, 502, 503}
	return codes[rand.Intn(len(codes))]
}
