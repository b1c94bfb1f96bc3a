// Package scheduler owns interaction exclusivity: at most one turn runs at
// a time, text input overflows into a bounded queue, and voice triggers
// abort rather than wait. It composes the router, rate limiter, circuit
// breakers, backends and cost tracker into one request lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jarvis-proto/jarvisd/pkg/breaker"
	"github.com/jarvis-proto/jarvisd/pkg/costs"
	"github.com/jarvis-proto/jarvisd/pkg/llm"
	"github.com/jarvis-proto/jarvisd/pkg/models"
	"github.com/jarvis-proto/jarvisd/pkg/ratelimit"
	"github.com/jarvis-proto/jarvisd/pkg/router"
	"github.com/jarvis-proto/jarvisd/pkg/tools"
)

// State is the externally visible position of the interaction loop.
type State string

const (
	StateIdle      State = "IDLE"
	StateListening State = "LISTENING"
	StateThinking  State = "THINKING"
	StateExecuting State = "EXECUTING"
	StateSpeaking  State = "SPEAKING"
	StateError     State = "ERROR"
)

// Notifier receives fire-and-forget lifecycle events. Implementations must
// not assume they can affect the turn; panics are absorbed.
type Notifier interface {
	Notify(event string, payload map[string]any)
}

// Options wires a Scheduler. Router, Limiter and Fast are required; the
// rest degrade gracefully when absent.
type Options struct {
	Router         *router.Router
	Limiter        *ratelimit.Limiter
	Tracker        costs.Tracker
	Tools          tools.Executor
	Fast           llm.Client
	Premium        llm.Client
	FastBreaker    *breaker.Breaker
	PremiumBreaker *breaker.Breaker
	Notifier       Notifier
	QueueCapacity  int
	PremiumModel   string
	// OnToken observes streamed response tokens, e.g. for a UI. May be nil.
	OnToken func(turnID, token string)
}

// Submission reports what happened to a piece of submitted text.
type Submission struct {
	TurnID      string        `json:"turn_id"`
	Response    string        `json:"response,omitempty"`
	Queued      bool          `json:"queued"`
	QueueSize   int           `json:"queue_size,omitempty"`
	Evicted     bool          `json:"evicted"`
	RateLimited bool          `json:"rate_limited"`
	RetryAfter  time.Duration `json:"retry_after,omitempty"`
}

// Scheduler serializes interactions and drives each turn through
// classification, dispatch and usage accounting.
type Scheduler struct {
	opts  Options
	queue *boundedQueue

	// mu is the exclusivity lock: exactly one turn may hold it.
	mu sync.Mutex

	stateMu sync.Mutex
	state   State

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. Call Start to launch the queue drain.
func New(opts Options) *Scheduler {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:   opts,
		queue:  newBoundedQueue(opts.QueueCapacity),
		state:  StateIdle,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the background drain goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.drainLoop()
}

// Close signals cooperative cancellation, stops the drain goroutine and
// discards queued entries without running them. The in-flight turn, if
// any, is never forcibly interrupted.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
	if n := s.queue.discard(); n > 0 {
		log.Printf("scheduler: discarded %d queued entries on shutdown", n)
	}
}

// State returns the externally visible state.
func (s *Scheduler) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// QueueLen returns the number of queued text entries.
func (s *Scheduler) QueueLen() int { return s.queue.len() }

// SubmitText handles text input. An idle scheduler runs the turn
// immediately and returns its response; a busy one queues the text,
// evicting the oldest entry when the queue is full. Rate limiting is
// advisory: a limited submission is reported, not errored.
func (s *Scheduler) SubmitText(ctx context.Context, text, source string) Submission {
	turnID := uuid.NewString()

	if res := s.checkRate(source, turnID); !res.Allowed {
		return Submission{TurnID: turnID, RateLimited: true, RetryAfter: res.RetryAfter}
	}

	if s.mu.TryLock() {
		var response string
		func() {
			defer s.mu.Unlock()
			response = s.runTurn(ctx, text, source, turnID)
		}()
		return Submission{TurnID: turnID, Response: response}
	}

	evicted, size := s.queue.push(text, source)
	s.notify("input_queued", map[string]any{"turn_id": turnID, "queue_size": size, "source": source})
	if evicted != nil {
		s.notify("input_dropped", map[string]any{"queue_size": size, "arrival_order": evicted.order})
	}
	return Submission{TurnID: turnID, Queued: true, QueueSize: size, Evicted: evicted != nil}
}

// SubmitVoice handles a wake-triggered utterance. Voice never queues: if a
// turn is already active the trigger is logged and ignored. It returns
// false when aborted. Voice also never waits for the lock, so a stream of
// wake triggers cannot starve the text queue drain, which does wait.
func (s *Scheduler) SubmitVoice(ctx context.Context, text string) (string, bool) {
	turnID := uuid.NewString()

	if res := s.checkRate("voice", turnID); !res.Allowed {
		return "", false
	}

	if !s.mu.TryLock() {
		log.Printf("voice trigger ignored: interaction already active")
		s.notify("voice_ignored", map[string]any{"turn_id": turnID})
		return "", false
	}
	defer s.mu.Unlock()

	s.setState(StateListening, turnID)
	return s.runTurn(ctx, text, "voice", turnID), true
}

func (s *Scheduler) checkRate(source, turnID string) models.RateResult {
	if s.opts.Limiter == nil {
		return models.RateResult{Allowed: true}
	}
	res := s.opts.Limiter.Check(source)
	if !res.Allowed {
		log.Printf("rate limited (%s): retry after %s", source, res.RetryAfter.Round(time.Millisecond))
		s.notify("rate_limited", map[string]any{
			"turn_id":     turnID,
			"source":      source,
			"retry_after": res.RetryAfter.Seconds(),
			"limit":       res.Limit,
		})
	}
	return res
}

// drainLoop waits for queued text and executes it once the exclusivity
// lock is free.
func (s *Scheduler) drainLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.queue.signal:
		}
		for s.drainOne() {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
		}
	}
}

func (s *Scheduler) drainOne() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.ctx.Done():
		return false
	default:
	}

	e, ok := s.queue.pop()
	if !ok {
		return false
	}
	s.runTurn(s.ctx, e.text, e.source, uuid.NewString())
	return true
}

// runTurn executes one full turn. The caller must hold the exclusivity
// lock. No failure escapes: handler errors and panics surface as the ERROR
// state, and the state always returns to IDLE.
func (s *Scheduler) runTurn(ctx context.Context, text, source, turnID string) (response string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("turn %s panic: %v", turnID, r)
			s.setState(StateError, turnID)
			response = ""
		}
		s.setState(StateIdle, turnID)
	}()

	s.setState(StateThinking, turnID)

	decision := s.opts.Router.Classify(ctx, text, nil)
	log.Printf("route: %s | %s | conf=%.2f | %s (%s)",
		decision.Target, decision.IntentType, decision.Confidence, decision.Reason, decision.Latency)
	s.notify("route_decision", map[string]any{
		"turn_id":    turnID,
		"target":     string(decision.Target),
		"intent":     decision.IntentType,
		"confidence": decision.Confidence,
		"reason":     decision.Reason,
		"tool_hint":  decision.ToolHint,
	})

	var err error
	switch decision.Target {
	case models.TargetToolDirect:
		response, err = s.toolTurn(ctx, turnID, decision)
	case models.TargetPremium:
		response, err = s.premiumTurn(ctx, turnID, text)
		if err != nil {
			// A tripped breaker or failed premium call degrades to the
			// fast tier instead of failing the turn.
			log.Printf("turn %s: premium path unavailable (%v), degrading to fast", turnID, err)
			s.notify("tier_degraded", map[string]any{"turn_id": turnID, "reason": err.Error()})
			response, err = s.fastTurn(ctx, turnID, text)
		}
	default:
		response, err = s.fastTurn(ctx, turnID, text)
	}

	if err != nil {
		log.Printf("turn %s failed: %v", turnID, err)
		s.setState(StateError, turnID)
		s.notify("turn_error", map[string]any{"turn_id": turnID, "error": err.Error()})
		return ""
	}

	s.setState(StateSpeaking, turnID)
	s.notify("turn_complete", map[string]any{"turn_id": turnID, "target": string(decision.Target)})
	return response
}

func (s *Scheduler) toolTurn(ctx context.Context, turnID string, decision models.RouteDecision) (string, error) {
	if s.opts.Tools == nil {
		return "", errors.New("no tool executor configured")
	}
	s.setState(StateExecuting, turnID)
	out, err := s.opts.Tools.Execute(ctx, decision.ToolHint, decision.ToolArgs)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", decision.ToolHint, err)
	}
	return out, nil
}

func (s *Scheduler) fastTurn(ctx context.Context, turnID, text string) (string, error) {
	if s.opts.Fast == nil {
		return "", errors.New("no fast backend configured")
	}
	var result *llm.Result
	wrapped := func(ctx context.Context) error {
		r, err := s.streamFrom(ctx, s.opts.Fast, turnID, text)
		result = r
		return err
	}

	if s.opts.FastBreaker != nil {
		if err := s.opts.FastBreaker.Call(ctx, wrapped); err != nil {
			return "", err
		}
	} else if err := wrapped(ctx); err != nil {
		return "", err
	}
	return result.Text, nil
}

func (s *Scheduler) premiumTurn(ctx context.Context, turnID, text string) (string, error) {
	if s.opts.Premium == nil {
		return "", errors.New("no premium backend configured")
	}

	var result *llm.Result
	wrapped := func(ctx context.Context) error {
		r, err := s.streamFrom(ctx, s.opts.Premium, turnID, text)
		result = r
		return err
	}

	if s.opts.PremiumBreaker != nil {
		if err := s.opts.PremiumBreaker.Call(ctx, wrapped); err != nil {
			return "", err
		}
	} else if err := wrapped(ctx); err != nil {
		return "", err
	}

	// A ledger outage must never fail a user-facing turn.
	if s.opts.Tracker != nil {
		cost, err := s.opts.Tracker.LogUsage(ctx, s.opts.PremiumModel,
			result.InputTokens, result.OutputTokens,
			result.CacheReadTokens, result.CacheCreationTokens,
			"sync", text)
		if err != nil {
			log.Printf("turn %s: usage logging failed: %v", turnID, err)
		} else {
			log.Printf("turn %s: premium cost $%.4f (%din+%dout)",
				turnID, cost, result.InputTokens, result.OutputTokens)
		}
	}
	return result.Text, nil
}

func (s *Scheduler) streamFrom(ctx context.Context, client llm.Client, turnID, text string) (*llm.Result, error) {
	var onToken func(string)
	if s.opts.OnToken != nil {
		cb := s.opts.OnToken
		onToken = func(token string) { cb(turnID, token) }
	}
	return client.Stream(ctx, text, onToken)
}

func (s *Scheduler) setState(next State, turnID string) {
	s.stateMu.Lock()
	if s.state == next {
		s.stateMu.Unlock()
		return
	}
	s.state = next
	s.stateMu.Unlock()
	s.notify("state", map[string]any{"turn_id": turnID, "state": string(next)})
}

// notify emits an event to the sink. A panicking observer never affects
// the turn.
func (s *Scheduler) notify(event string, payload map[string]any) {
	if s.opts.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notifier panic on %s: %v", event, r)
		}
	}()
	s.opts.Notifier.Notify(event, payload)
}
