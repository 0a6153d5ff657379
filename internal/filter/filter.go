// Package filter implements C1, the observation filter: the single
// gate deciding whether an incoming Observation is worth aggregating at
// all. Pure, side-effect free, constant time — spec §4.1.
package filter

import (
	"strings"

	"github.com/justin4957/logflow-anomaly-detector/internal/config"
	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Verdict is C1's classification of one Observation.
type Verdict string

const (
	Tracked Verdict = "TRACKED"
	Ignored Verdict = "IGNORED"
)

// RouteSet is a per-mode allow-list lookup, built once from config and
// reused across calls to Classify.
type RouteSet struct {
	live map[string]struct{}
	sim  map[string]struct{}
}

// NewRouteSet builds the allow-lists for both modes from detector config.
func NewRouteSet(cfg config.DetectorConfig) *RouteSet {
	return &RouteSet{
		live: toSet(cfg.LiveTrackedRoutes),
		sim:  toSet(cfg.SimVirtualRoutes),
	}
}

func toSet(routes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		set[r] = struct{}{}
	}
	return set
}

// Tracked reports whether route is on the allow-list for mode.
func (rs *RouteSet) Tracked(mode models.Mode, route string) bool {
	switch mode {
	case models.ModeSim:
		_, ok := rs.sim[route]
		return ok
	default:
		_, ok := rs.live[route]
		return ok
	}
}

// Classify implements spec §4.1's single operation. Cross-origin
// pre-flight requests (OPTIONS) are IGNORED regardless of route.
func Classify(obs models.Observation, routes *RouteSet) Verdict {
	if strings.EqualFold(obs.Method, "OPTIONS") {
		return Ignored
	}
	if routes.Tracked(obs.Mode, obs.Route) {
		return Tracked
	}
	return Ignored
}
