// Package router classifies user utterances into backend tiers. The
// classifier is synchronous, allocation-light and I/O-free; realistic inputs
// classify well under five milliseconds.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jarvis-proto/jarvisd/pkg/config"
	"github.com/jarvis-proto/jarvisd/pkg/models"
)

// BudgetGate answers whether the premium tier is currently affordable.
// Satisfied by costs.Tracker; kept minimal so router tests need no database.
type BudgetGate interface {
	CanAfford(ctx context.Context) (bool, string)
}

// Router is the ordered-rule intent classifier with premium budget gating.
type Router struct {
	cfg    config.RouterConfig
	gate   BudgetGate
	hasKey bool

	mu         sync.Mutex
	total      int64
	tierCounts map[models.Target]int64
	avgLatency time.Duration
}

// New creates a Router. gate may be nil, in which case only the credential
// check gates the premium tier.
func New(cfg config.RouterConfig, gate BudgetGate, premiumKeyConfigured bool) *Router {
	return &Router{
		cfg:    cfg,
		gate:   gate,
		hasKey: premiumKeyConfigured,
		tierCounts: map[models.Target]int64{
			models.TargetToolDirect: 0,
			models.TargetFast:       0,
			models.TargetPremium:    0,
		},
	}
}

// Classify turns raw text into a routing decision. It never fails: argument
// extraction problems degrade confidence instead of aborting, and budget or
// credential problems silently downgrade premium to fast.
func (r *Router) Classify(ctx context.Context, text string, history []string) models.RouteDecision {
	if !r.cfg.Enabled {
		return models.RouteDecision{
			Target:     models.TargetFast,
			Confidence: 1.0,
			IntentType: "default",
			Reason:     "router disabled",
		}
	}

	start := time.Now()
	decision := r.ruleClassify(text)

	if decision.Target == models.TargetPremium {
		decision = r.gatePremium(ctx, decision)
	}

	decision.Latency = time.Since(start)
	r.record(decision)
	return decision
}

// ruleClassify is the first-match-wins heuristic cascade.
func (r *Router) ruleClassify(text string) models.RouteDecision {
	lower := strings.ToLower(strings.TrimSpace(text))
	wordCount := len(strings.Fields(text))

	// 1. Greetings and farewells stay on the fast tier.
	if wordCount <= 6 && greetingRE.MatchString(lower) {
		return decide(models.TargetFast, 0.95, "greeting", "greeting/farewell detected")
	}

	// 2. Clear tool intent skips the LLM entirely.
	if d, ok := r.matchDirectTool(lower); ok {
		return d
	}

	// 3. Explicit premium request outranks the remaining heuristics.
	if premiumRequestRE.MatchString(lower) {
		return decide(models.TargetPremium, 0.95, "analysis", "premium backend explicitly requested")
	}

	// 4. Architecture/scale/ML-heavy coding work.
	if complexCodeRE.MatchString(lower) {
		return decide(models.TargetPremium, 0.85, "coding", "complex coding/architecture task")
	}

	// 5. Analysis and research.
	if analysisRE.MatchString(lower) {
		return decide(models.TargetPremium, 0.80, "analysis", "analysis/research task")
	}

	// 6. Planning and multi-step work.
	if planningRE.MatchString(lower) {
		return decide(models.TargetPremium, 0.80, "planning", "planning/multi-step task")
	}

	// 7. Everyday coding stays on the fast tier.
	if codingRE.MatchString(lower) {
		return decide(models.TargetFast, 0.70, "coding", "simple coding task")
	}

	// 8. Short canned questions.
	if wordCount <= r.cfg.SimpleWordThreshold && simpleQuestionRE.MatchString(lower) {
		return decide(models.TargetFast, 0.80, "question", "simple question")
	}

	// 9. Very long input suggests complexity.
	if wordCount > r.cfg.ComplexWordThreshold {
		return decide(models.TargetPremium, 0.65, "analysis", fmt.Sprintf("long query (%d words)", wordCount))
	}

	// 10. Default: chitchat.
	return decide(models.TargetFast, 0.50, "chitchat", "default: simple/chitchat")
}

// matchDirectTool checks the tool pattern table. A pattern whose argument
// extraction fails still dispatches the tool, at lower confidence and with
// empty args, rather than failing the classification.
func (r *Router) matchDirectTool(lower string) (models.RouteDecision, bool) {
	for _, p := range toolPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		args, ok := p.extract(m)
		confidence := 0.90
		if !ok {
			args = map[string]string{}
			confidence = 0.70
		}
		d := decide(models.TargetToolDirect, confidence, "action", "direct tool: "+p.tool)
		d.ToolHint = p.tool
		d.ToolArgs = args
		return d, true
	}
	return models.RouteDecision{}, false
}

// gatePremium downgrades a premium decision to the fast tier when no
// credential is configured or the budget is exhausted. The intent type is
// preserved so observers still see what the user asked for.
func (r *Router) gatePremium(ctx context.Context, d models.RouteDecision) models.RouteDecision {
	if !r.hasKey {
		d.Target = models.TargetFast
		d.Reason += "; no credential configured, using fast tier"
		return d
	}
	if r.gate != nil {
		if ok, reason := r.gate.CanAfford(ctx); !ok {
			d.Target = models.TargetFast
			d.Reason += "; " + reason + ", using fast tier"
		}
	}
	return d
}

func (r *Router) record(d models.RouteDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.tierCounts[d.Target]++
	r.avgLatency += (d.Latency - r.avgLatency) / time.Duration(r.total)
}

// Stats returns running classification counters.
func (r *Router) Stats() models.RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[models.Target]int64, len(r.tierCounts))
	for k, v := range r.tierCounts {
		counts[k] = v
	}
	return models.RouterStats{
		Enabled:    r.cfg.Enabled,
		Total:      r.total,
		TierCounts: counts,
		AvgLatency: r.avgLatency,
	}
}

func decide(target models.Target, confidence float64, intent, reason string) models.RouteDecision {
	return models.RouteDecision{
		Target:     target,
		Confidence: confidence,
		IntentType: intent,
		Reason:     reason,
	}
}
