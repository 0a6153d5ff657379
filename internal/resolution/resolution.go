// Package resolution implements C8: a fixed, deterministic lookup from
// (root_cause, priority) to a priority-ranked remediation list. Grounded
// on original_source/.../resolution_engine.py confirming a static table,
// no randomness, no model calls.
package resolution

import "github.com/justin4957/logflow-anomaly-detector/pkg/models"

// catalogue is the baseline table of spec §4.8, keyed by root cause.
// Every bucket carries at least four items in their published order.
var catalogue = map[models.RootCause][]models.Resolution{
	models.RootCauseLatencyBottleneck: {
		{Category: "Caching", Action: "Add read-through cache", Detail: "Front the slow dependency with a read-through cache to cut average response time.", Priority: models.PriorityHigh},
		{Category: "Concurrency", Action: "Enable async I/O", Detail: "Move blocking calls off the request path onto async I/O to reduce tail latency.", Priority: models.PriorityHigh},
		{Category: "Database", Action: "Tune DB indexes", Detail: "Review query plans for the affected route and add missing indexes.", Priority: models.PriorityMedium},
		{Category: "Concurrency", Action: "Raise worker concurrency", Detail: "Increase worker pool size to drain the backlog causing the latency bottleneck.", Priority: models.PriorityMedium},
	},
	models.RootCauseBackendInstability: {
		{Category: "Debugging", Action: "Inspect traces", Detail: "Pull distributed traces for the failing window to find the failing call.", Priority: models.PriorityCritical},
		{Category: "Resilience", Action: "Enable circuit breaker", Detail: "Trip a circuit breaker around the unstable dependency to stop cascading errors.", Priority: models.PriorityHigh},
		{Category: "Deployment", Action: "Rollback last deploy", Detail: "Roll back the most recent deploy to the affected service if errors started after it.", Priority: models.PriorityHigh},
		{Category: "Resilience", Action: "Isolate failing dependency", Detail: "Bulkhead the failing downstream call so it cannot starve other request paths.", Priority: models.PriorityMedium},
	},
	models.RootCauseTrafficSurge: {
		{Category: "Rate Limiting", Action: "Token-bucket rate limit", Detail: "Apply a token-bucket limiter at the edge to shed load above the surge threshold.", Priority: models.PriorityCritical},
		{Category: "Scaling", Action: "Autoscale", Detail: "Trigger horizontal autoscaling for the affected service.", Priority: models.PriorityHigh},
		{Category: "Caching", Action: "Cache idempotent responses", Detail: "Cache idempotent GET responses to absorb repeat load.", Priority: models.PriorityMedium},
		{Category: "Caching", Action: "Enable edge caching", Detail: "Push cacheable responses to the edge/CDN to keep surge traffic off origin.", Priority: models.PriorityMedium},
	},
	models.RootCauseAbuseOrBot: {
		{Category: "Rate Limiting", Action: "Adaptive rate limits", Detail: "Tighten rate limits for the offending source based on observed repetition.", Priority: models.PriorityCritical},
		{Category: "Network", Action: "IP reputation filter", Detail: "Cross-check the source against an IP reputation list and block known-bad ranges.", Priority: models.PriorityHigh},
		{Category: "Auth", Action: "Auth throttling + challenge", Detail: "Add a challenge (CAPTCHA/step-up auth) to the affected auth flow.", Priority: models.PriorityHigh},
		{Category: "Network", Action: "WAF rules", Detail: "Add a WAF rule targeting the repeated parameter pattern observed in this window.", Priority: models.PriorityMedium},
	},
	models.RootCauseSystemOverload: {
		{Category: "Scaling", Action: "Horizontal scale", Detail: "Add capacity across the affected tier; the window shows more than one stress signal at once.", Priority: models.PriorityCritical},
		{Category: "Resilience", Action: "Request queue with backpressure", Detail: "Queue incoming requests with backpressure so overload degrades latency, not availability.", Priority: models.PriorityHigh},
		{Category: "Resilience", Action: "Graceful degradation", Detail: "Shed non-critical response content to keep the critical path responsive under load.", Priority: models.PriorityHigh},
		{Category: "Payload", Action: "Payload minimisation", Detail: "Trim response payloads for the affected route to reduce per-request cost.", Priority: models.PriorityMedium},
	},
}

// Generate produces the priority-ranked remediation list for a
// (root_cause, priority, contributing conditions) triple. For
// SYSTEM_OVERLOAD, items from each contributing root's bucket are
// appended after the overload-specific list, deduplicated by
// (category, action) preserving first-occurrence order, per spec §4.8.
func Generate(rootCause models.RootCause, priority models.Priority, contributing []string) []models.Resolution {
	base := catalogue[rootCause]
	out := make([]models.Resolution, len(base))
	copy(out, base)

	if rootCause == models.RootCauseSystemOverload {
		for _, c := range contributing {
			for _, item := range catalogue[contributingRootCause(c)] {
				out = appendDeduped(out, item)
			}
		}
	}

	models.SortResolutions(out)
	return out
}

func appendDeduped(items []models.Resolution, candidate models.Resolution) []models.Resolution {
	for _, it := range items {
		if it.Category == candidate.Category && it.Action == candidate.Action {
			return items
		}
	}
	return append(items, candidate)
}

func contributingRootCause(condition string) models.RootCause {
	switch condition {
	case "latency_bottleneck":
		return models.RootCauseLatencyBottleneck
	case "backend_instability":
		return models.RootCauseBackendInstability
	case "traffic_surge":
		return models.RootCauseTrafficSurge
	case "abuse_or_bot":
		return models.RootCauseAbuseOrBot
	default:
		return models.RootCauseNone
	}
}
