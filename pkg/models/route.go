package models

import "time"

// Target identifies which backend tier answers a request.
type Target string

const (
	// TargetToolDirect skips the LLM and dispatches a tool straight away.
	TargetToolDirect Target = "tool_direct"
	// TargetFast routes to the local fast/free model.
	TargetFast Target = "fast"
	// TargetPremium routes to the metered premium model.
	TargetPremium Target = "premium"
)

// RouteDecision is the result of classifying a single user utterance.
// It is produced fresh per classification and never mutated afterwards.
type RouteDecision struct {
	Target     Target            `json:"target"`
	Confidence float64           `json:"confidence"`
	IntentType string            `json:"intent_type"`
	Reason     string            `json:"reason"`
	ToolHint   string            `json:"tool_hint,omitempty"`
	ToolArgs   map[string]string `json:"tool_args,omitempty"`
	Latency    time.Duration     `json:"latency"`
}

// RouterStats aggregates classification counters for observability.
type RouterStats struct {
	Enabled    bool             `json:"enabled"`
	Total      int64            `json:"total"`
	TierCounts map[Target]int64 `json:"tier_counts"`
	AvgLatency time.Duration    `json:"avg_latency"`
}

// RateResult reports the outcome of a rate limiter check. Rejection is
// advisory data, not an error: the caller decides to queue, notify or drop.
type RateResult struct {
	Source     string        `json:"source"`
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// SourceStatus is the current utilization of one rate limiter window.
type SourceStatus struct {
	Active      int     `json:"active"`
	Limit       int     `json:"limit"`
	Utilization float64 `json:"utilization"`
}
