package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RuleThresholds mirrors spec §4.5's five calibrated defaults.
type RuleThresholds struct {
	RateSpikeReqPerSec   float64 `yaml:"rate_spike_req_per_sec"`
	ErrorBurstRate       float64 `yaml:"error_burst_rate"`
	BotEntropyMax        float64 `yaml:"bot_entropy_max"`
	BotRepeatRatioMin    float64 `yaml:"bot_repeat_ratio_min"`
	LargePayloadBytes    float64 `yaml:"large_payload_bytes"`
	EndpointScanUnique   float64 `yaml:"endpoint_scan_unique"`
}

// ScoreWeights mirrors spec §4.6's canonical four-weight ensemble.
type ScoreWeights struct {
	Rule               float64 `yaml:"rule"`
	Anomaly            float64 `yaml:"anomaly"`
	Failure            float64 `yaml:"failure"`
	NextWindowFailure  float64 `yaml:"next_window_failure"`
}

// PriorityBands mirrors spec §4.6's priority cut points, closed on the
// low side.
type PriorityBands struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// ModelArtifactPaths is one paired model+scaler path per §4.4 submodel.
type ModelArtifactPaths struct {
	IsolationForestModel  string `yaml:"isolation_forest_model"`
	IsolationForestScaler string `yaml:"isolation_forest_scaler"`
	FailureModel          string `yaml:"failure_model"`
	FailureScaler         string `yaml:"failure_scaler"`
	ClusterModel          string `yaml:"cluster_model"`
	ClusterScaler         string `yaml:"cluster_scaler"`
	NextFailureModel      string `yaml:"next_failure_model"`
	NextFailureScaler     string `yaml:"next_failure_scaler"`
}

// DetectorConfig is the core pipeline configuration: spec §6's
// enumerated environment surface plus the route allow-lists of §4.1.
type DetectorConfig struct {
	WindowSize         int                `yaml:"window_size"`
	RuleThresholds     RuleThresholds     `yaml:"rule_thresholds"`
	ScoreWeights       ScoreWeights       `yaml:"score_weights"`
	PriorityBands      PriorityBands      `yaml:"priority_bands"`
	LiveTrackedRoutes  []string           `yaml:"live_tracked_routes"`
	SimVirtualRoutes   []string           `yaml:"sim_virtual_routes"`
	HistoryCapacity    int                `yaml:"history_capacity"`
	SubscriberQueueDepth int              `yaml:"subscriber_queue_depth"`
	ScoringDeadlineMS  int                `yaml:"scoring_deadline_ms"`
	ObservationChannelDepth int           `yaml:"observation_channel_depth"`
	SimulationTargetRPS     int           `yaml:"simulation_target_rps"`
	ModelArtifacts     ModelArtifactPaths `yaml:"model_artifacts"`
}

// DashboardConfig mirrors the teacher's dashboard listen settings.
type DashboardConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PersistenceConfig points at the sqlite DSN used by C11.
type PersistenceConfig struct {
	DSN string `yaml:"dsn"`
}

// Config is the top-level process configuration, loaded the way the
// teacher's internal/config.LoadConfig does: read file, fall back to
// DefaultConfig on a missing path, decode the rest.
type Config struct {
	LogPath         string            `yaml:"log_path"`
	LogFormat       string            `yaml:"log_format"` // only "json" is parsed; anything else falls back to json with a warning
	Detector        DetectorConfig    `yaml:"detector"`
	Dashboard       DashboardConfig   `yaml:"dashboard"`
	Persistence     PersistenceConfig `yaml:"persistence"`
}

// LoadConfig loads configuration from a YAML file, falling back to
// DefaultConfig if the file does not exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the system's calibrated defaults, per spec §4.5,
// §4.6 and §6.
func DefaultConfig() *Config {
	return &Config{
		LogPath:   "",
		LogFormat: "json",
		Detector: DetectorConfig{
			WindowSize: 10,
			RuleThresholds: RuleThresholds{
				RateSpikeReqPerSec: 15,
				ErrorBurstRate:     0.5,
				BotEntropyMax:      0.5,
				BotRepeatRatioMin:  0.5,
				LargePayloadBytes:  5000,
				EndpointScanUnique: 8,
			},
			ScoreWeights: ScoreWeights{
				Rule:              0.30,
				Anomaly:           0.25,
				Failure:           0.30,
				NextWindowFailure: 0.15,
			},
			PriorityBands: PriorityBands{
				Critical: 0.75,
				High:     0.55,
				Medium:   0.35,
			},
			LiveTrackedRoutes: []string{
				"/login", "/signup", "/search", "/profile", "/payment", "/logout",
			},
			SimVirtualRoutes: []string{
				"/sim/login", "/sim/search", "/sim/profile", "/sim/payment", "/sim/signup",
			},
			HistoryCapacity:         1000,
			SubscriberQueueDepth:    256,
			ScoringDeadlineMS:       500,
			ObservationChannelDepth: 1024,
			SimulationTargetRPS:     200,
			ModelArtifacts: ModelArtifactPaths{
				IsolationForestModel:  "models/isolation_forest.json",
				IsolationForestScaler: "models/isolation_forest.scaler.json",
				FailureModel:          "models/failure.json",
				FailureScaler:         "models/failure.scaler.json",
				ClusterModel:          "models/cluster.json",
				ClusterScaler:         "models/cluster.scaler.json",
				NextFailureModel:      "models/next_failure.json",
				NextFailureScaler:     "models/next_failure.scaler.json",
			},
		},
		Dashboard: DashboardConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Persistence: PersistenceConfig{
			DSN: "file:detector.db?_pragma=busy_timeout(5000)",
		},
	}
}

// ScoringDeadline returns the configured scoring soft deadline as a
// time.Duration, per spec §5.
func (c DetectorConfig) ScoringDeadline() time.Duration {
	if c.ScoringDeadlineMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ScoringDeadlineMS) * time.Millisecond
}

// Store holds the live, hot-reloadable Config behind a RWMutex so the
// fsnotify watcher (see Watch) can swap it out while request-handling
// goroutines read it concurrently. Fields that define process topology
// (model artifact paths, window size, history capacity) are read once at
// startup by callers that captured them directly from LoadConfig; Store
// only needs to serve the tunables spec §6 calls hot-reloadable.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps an initial Config for concurrent hot-reloaded access.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current configuration snapshot.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set installs a newly loaded configuration.
func (s *Store) Set(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}
