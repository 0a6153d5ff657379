// Command detector is the composition root: it loads configuration,
// wires every component (C1-C13), and serves the Control API until
// interrupted. Grounded on the signal-handling and graceful-shutdown
// shape of kubilitics-backend's cmd/server/main.go, adapted to zap
// logging throughout instead of the stdlib log package.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/internal/dashboard"
	"github.com/justin4957/logflow-anomaly-detector/internal/modelholder"
	"github.com/justin4957/logflow-anomaly-detector/internal/orchestrator"
	"github.com/justin4957/logflow-anomaly-detector/internal/persistence"
	"github.com/justin4957/logflow-anomaly-detector/internal/stream"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	store := config.NewStore(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go config.Watch(ctx, *configPath, store, log)

	mh := modelholder.Load(modelholder.Paths{
		IsolationForestModel:  cfg.Detector.ModelArtifacts.IsolationForestModel,
		IsolationForestScaler: cfg.Detector.ModelArtifacts.IsolationForestScaler,
		FailureModel:          cfg.Detector.ModelArtifacts.FailureModel,
		FailureScaler:         cfg.Detector.ModelArtifacts.FailureScaler,
		ClusterModel:          cfg.Detector.ModelArtifacts.ClusterModel,
		ClusterScaler:         cfg.Detector.ModelArtifacts.ClusterScaler,
		NextFailureModel:      cfg.Detector.ModelArtifacts.NextFailureModel,
		NextFailureScaler:     cfg.Detector.ModelArtifacts.NextFailureScaler,
	})

	var persist *persistence.Gateway
	if cfg.Persistence.DSN != "" {
		persist, err = persistence.Open(cfg.Persistence.DSN, log)
		if err != nil {
			log.Warn("persistence unavailable, running without durable storage", zap.Error(err))
			persist = nil
		} else {
			defer persist.Close()
			go persist.StartObservationWriter(ctx)
		}
	}

	orch := orchestrator.New(log, store, mh, persist)

	if cfg.LogPath != "" {
		go feedLogStream(ctx, log, cfg.LogPath, cfg.LogFormat, orch)
	}

	srv := dashboard.NewServer(log, cfg.Dashboard, orch)

	log.Info("detector starting", zap.Int("port", cfg.Dashboard.Port))
	if err := srv.Start(ctx); err != nil {
		log.Error("dashboard server exited with error", zap.Error(err))
	}

	log.Info("detector stopped")
}

// feedLogStream tails logPath and feeds every parsed entry into the
// orchestrator as a LIVE Observation, the secondary ingestion path
// alongside direct in-process Orchestrator.Observe calls from
// instrumentation (spec §2).
func feedLogStream(ctx context.Context, log *zap.Logger, logPath, logFormat string, orch *orchestrator.Orchestrator) {
	ls := stream.NewLogStream(log, logPath, logFormat)
	entries := make(chan *models.LogEntry, 256)

	go ls.Start(ctx, entries)

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			orch.Observe(entry.ToObservation())
		}
	}
}
