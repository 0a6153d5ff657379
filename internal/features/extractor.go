// Package features implements C3, the feature extractor: a pure
// function from a completed Window to the nine-dimensional FeatureVector
// defined in spec §3. Grounded in field order and entropy semantics
// against original_source/.../feature_engineering.py.
package features

import (
	"math"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

// Extract computes the nine features of spec §3 from a sealed window.
// Never errors: empty collections fall back to defined neutral values.
func Extract(win models.Window) models.FeatureVector {
	n := len(win.Observations)
	if n == 0 {
		return models.FeatureVector{}
	}

	routes := make(map[string]struct{}, n)
	userAgents := make(map[string]int, n)
	paramCounts := make(map[string]int, n*2)

	var (
		getCount      int
		errorCount    int
		payloadSum    float64
		latencySum    float64
		maxLatency    float64
		totalParams   int
	)

	for _, o := range win.Observations {
		routes[o.Route] = struct{}{}
		userAgents[o.UserAgent]++

		if o.IsGET() {
			getCount++
		}
		if o.IsError() {
			errorCount++
		}

		payloadSum += clipNonNegative(float64(o.PayloadSize))
		latency := clipNonNegative(o.LatencyMS)
		latencySum += latency
		if latency > maxLatency {
			maxLatency = latency
		}

		for _, p := range o.Params {
			paramCounts[p.Name+"="+p.Value]++
			totalParams++
		}
	}

	seconds := win.Duration().Seconds()
	if seconds <= 0 {
		seconds = 1
	}

	// Only the occurrences beyond each (name,value) pair's first count as
	// "repeated" — a pair seen once contributes nothing. Mirrors
	// original_source's _calculate_parameter_repetition, which computes
	// 1 - unique_params/total_occurrences over (name,value) pairs.
	repeatedRatio := 0.0
	if totalParams > 0 {
		distinctPairs := len(paramCounts)
		repeatedRatio = 1 - float64(distinctPairs)/float64(totalParams)
	}

	return models.FeatureVector{
		RequestRate:            float64(n) / seconds,
		UniqueEndpoints:        float64(len(routes)),
		MethodRatio:            float64(getCount) / float64(n),
		AvgPayloadSize:         payloadSum / float64(n),
		ErrorRate:              float64(errorCount) / float64(n),
		RepeatedParameterRatio: repeatedRatio,
		UserAgentEntropy:       entropy(userAgents, n),
		AvgResponseTime:        latencySum / float64(n),
		MaxResponseTime:        maxLatency,
	}
}

func clipNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// entropy computes the Shannon entropy (log base 2) of the empirical
// distribution of distinct user-agent strings across the window. A
// single distinct symbol (every observation sharing one user-agent)
// yields the defined neutral value of zero.
func entropy(counts map[string]int, total int) float64 {
	if len(counts) <= 1 || total == 0 {
		return 0
	}

	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
