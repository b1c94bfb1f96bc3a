package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jarvis-proto/jarvisd/pkg/breaker"
	"github.com/jarvis-proto/jarvisd/pkg/config"
	"github.com/jarvis-proto/jarvisd/pkg/costs"
	"github.com/jarvis-proto/jarvisd/pkg/llm"
	"github.com/jarvis-proto/jarvisd/pkg/ratelimit"
	"github.com/jarvis-proto/jarvisd/pkg/router"
	"github.com/jarvis-proto/jarvisd/pkg/tools"
)

// recorder captures notifications for assertions.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Notify(event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

// blockingClient parks inside Stream until released, to hold the
// exclusivity lock from a test.
type blockingClient struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (c *blockingClient) Stream(context.Context, string, func(string)) (*llm.Result, error) {
	c.started <- struct{}{}
	<-c.release
	return &llm.Result{Text: "done"}, nil
}

type panickingClient struct{}

func (panickingClient) Stream(context.Context, string, func(string)) (*llm.Result, error) {
	panic("backend went sideways")
}

func testRouter(gate router.BudgetGate) *router.Router {
	return router.New(config.RouterConfig{
		Enabled:              true,
		SimpleWordThreshold:  15,
		ComplexWordThreshold: 80,
	}, gate, true)
}

func waitForIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == StateIdle && s.QueueLen() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("scheduler never settled: state=%s queue=%d", s.State(), s.QueueLen())
}

func TestImmediateTextTurn(t *testing.T) {
	fast := llm.NewScripted("hello there")
	s := New(Options{
		Router: testRouter(nil),
		Fast:   fast,
	})
	t.Cleanup(s.Close)

	sub := s.SubmitText(context.Background(), "hello", "text")
	if sub.Queued || sub.RateLimited {
		t.Fatalf("expected immediate execution, got %+v", sub)
	}
	if sub.Response != "hello there" {
		t.Errorf("expected scripted response, got %q", sub.Response)
	}
	if s.State() != StateIdle {
		t.Errorf("expected IDLE after turn, got %s", s.State())
	}
}

func TestToolDirectTurn(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register("weather.current", func(_ context.Context, args map[string]string) (string, error) {
		return "Sunny in " + args["location"], nil
	})
	s := New(Options{
		Router: testRouter(nil),
		Fast:   llm.NewScripted(),
		Tools:  reg,
	})
	t.Cleanup(s.Close)

	sub := s.SubmitText(context.Background(), "what's the weather in london", "text")
	if sub.Response != "Sunny in london" {
		t.Errorf("expected tool output, got %q", sub.Response)
	}
}

func TestQueueWhileBusyWithEviction(t *testing.T) {
	fast := newBlockingClient()
	rec := &recorder{}
	s := New(Options{
		Router:        testRouter(nil),
		Fast:          fast,
		Notifier:      rec,
		QueueCapacity: 2,
	})
	s.Start()
	t.Cleanup(s.Close)

	done := make(chan Submission, 1)
	go func() {
		done <- s.SubmitText(context.Background(), "hello", "text")
	}()
	<-fast.started // the first turn now holds the lock

	sub := s.SubmitText(context.Background(), "first queued", "text")
	if !sub.Queued || sub.QueueSize != 1 {
		t.Fatalf("expected queued at size 1, got %+v", sub)
	}
	sub = s.SubmitText(context.Background(), "second queued", "text")
	if !sub.Queued || sub.QueueSize != 2 {
		t.Fatalf("expected queued at size 2, got %+v", sub)
	}

	// Capacity is 2: the third submission evicts the oldest.
	sub = s.SubmitText(context.Background(), "third queued", "text")
	if !sub.Queued || !sub.Evicted || sub.QueueSize != 2 {
		t.Fatalf("expected eviction at capacity, got %+v", sub)
	}
	if !rec.has("input_dropped") {
		t.Error("expected an input_dropped notification")
	}

	close(fast.release)
	if sub := <-done; sub.Response != "done" {
		t.Errorf("expected first turn to finish, got %+v", sub)
	}
	waitForIdle(t, s)

	if !rec.has("input_queued") {
		t.Error("expected input_queued notifications")
	}
}

func TestVoiceAbortsWhenBusy(t *testing.T) {
	fast := newBlockingClient()
	rec := &recorder{}
	s := New(Options{
		Router:   testRouter(nil),
		Fast:     fast,
		Notifier: rec,
	})
	t.Cleanup(s.Close)

	done := make(chan struct{})
	go func() {
		s.SubmitText(context.Background(), "hello", "text")
		close(done)
	}()
	<-fast.started

	if _, ok := s.SubmitVoice(context.Background(), "hello again"); ok {
		t.Fatal("voice must abort while a turn is active")
	}
	if !rec.has("voice_ignored") {
		t.Error("expected voice_ignored notification")
	}

	close(fast.release)
	<-done
}

func TestVoiceRunsWhenIdle(t *testing.T) {
	s := New(Options{
		Router: testRouter(nil),
		Fast:   llm.NewScripted("evening, sir"),
	})
	t.Cleanup(s.Close)

	resp, ok := s.SubmitVoice(context.Background(), "good evening")
	if !ok {
		t.Fatal("expected voice turn to run")
	}
	if resp != "evening, sir" {
		t.Errorf("unexpected response %q", resp)
	}
}

func TestPremiumDegradesWhenUnavailable(t *testing.T) {
	premium := llm.NewScripted("premium answer")
	premium.Fail(errors.New("upstream 500"))
	fast := llm.NewScripted("fast fallback")
	rec := &recorder{}
	s := New(Options{
		Router:         testRouter(nil),
		Fast:           fast,
		Premium:        premium,
		PremiumBreaker: breaker.New("premium", 1, time.Hour),
		Notifier:       rec,
		PremiumModel:   "claude-sonnet-4-5-20250929",
	})
	t.Cleanup(s.Close)

	sub := s.SubmitText(context.Background(), "ask claude to analyze this", "text")
	if sub.Response != "fast fallback" {
		t.Fatalf("expected fallback response, got %q", sub.Response)
	}
	if !rec.has("tier_degraded") {
		t.Error("expected tier_degraded notification")
	}
	if premium.Calls() != 1 {
		t.Fatalf("expected 1 premium attempt, got %d", premium.Calls())
	}

	// The breaker is now open: the premium client must not be invoked again.
	sub = s.SubmitText(context.Background(), "ask claude to analyze that", "text")
	if sub.Response != "fast fallback" {
		t.Fatalf("expected fallback response, got %q", sub.Response)
	}
	if premium.Calls() != 1 {
		t.Errorf("open breaker must fast-fail without invoking, got %d calls", premium.Calls())
	}
}

func TestPremiumUsageLogged(t *testing.T) {
	tracker, err := costs.New(filepath.Join(t.TempDir(), "costs.db"),
		config.BudgetConfig{DailyUSD: 5, MonthlyUSD: 50, WarnThreshold: 0.8})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tracker.Close() })

	s := New(Options{
		Router:       testRouter(tracker),
		Fast:         llm.NewScripted(),
		Premium:      llm.NewScripted("deep analysis"),
		Tracker:      tracker,
		PremiumModel: "claude-sonnet-4-5-20250929",
	})
	t.Cleanup(s.Close)

	sub := s.SubmitText(context.Background(), "ask claude to compare these designs", "text")
	if sub.Response != "deep analysis" {
		t.Fatalf("expected premium response, got %q", sub.Response)
	}

	report, err := tracker.Report(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if report.Today.Calls != 1 {
		t.Errorf("expected 1 ledger record, got %d", report.Today.Calls)
	}
}

func TestTurnErrorRecoversToIdle(t *testing.T) {
	reg := tools.NewRegistry() // weather.current is not registered
	rec := &recorder{}
	s := New(Options{
		Router:   testRouter(nil),
		Fast:     llm.NewScripted(),
		Tools:    reg,
		Notifier: rec,
	})
	t.Cleanup(s.Close)

	sub := s.SubmitText(context.Background(), "what's the weather in london", "text")
	if sub.Response != "" {
		t.Errorf("expected empty response on failure, got %q", sub.Response)
	}
	if !rec.has("turn_error") {
		t.Error("expected turn_error notification")
	}
	if s.State() != StateIdle {
		t.Errorf("expected IDLE after error, got %s", s.State())
	}
}

func TestPanicIsAbsorbed(t *testing.T) {
	s := New(Options{
		Router: testRouter(nil),
		Fast:   panickingClient{},
	})
	t.Cleanup(s.Close)

	sub := s.SubmitText(context.Background(), "hello", "text")
	if sub.Response != "" {
		t.Errorf("expected empty response after panic, got %q", sub.Response)
	}
	if s.State() != StateIdle {
		t.Errorf("expected IDLE after panic, got %s", s.State())
	}

	// The scheduler must still work afterwards.
	s2 := s.SubmitText(context.Background(), "what time is it", "text")
	_ = s2
}

func TestRateLimitedSubmission(t *testing.T) {
	limiter := ratelimit.New(map[string]config.RateLimit{
		"text": {Max: 1, Window: time.Minute},
	})
	rec := &recorder{}
	s := New(Options{
		Router:   testRouter(nil),
		Fast:     llm.NewScripted(),
		Limiter:  limiter,
		Notifier: rec,
	})
	t.Cleanup(s.Close)

	if sub := s.SubmitText(context.Background(), "hello", "text"); sub.RateLimited {
		t.Fatal("first submission should pass")
	}
	sub := s.SubmitText(context.Background(), "hello again", "text")
	if !sub.RateLimited {
		t.Fatal("second submission should be limited")
	}
	if sub.RetryAfter <= 0 {
		t.Errorf("expected positive retry-after, got %v", sub.RetryAfter)
	}
	if !rec.has("rate_limited") {
		t.Error("expected rate_limited notification")
	}
}

func TestCloseDiscardsQueue(t *testing.T) {
	fast := newBlockingClient()
	s := New(Options{
		Router:        testRouter(nil),
		Fast:          fast,
		QueueCapacity: 3,
	})
	s.Start()

	done := make(chan struct{})
	go func() {
		s.SubmitText(context.Background(), "hello", "text")
		close(done)
	}()
	<-fast.started

	s.SubmitText(context.Background(), "queued one", "text")
	s.SubmitText(context.Background(), "queued two", "text")

	close(fast.release)
	<-done
	s.Close()

	if s.QueueLen() != 0 {
		t.Errorf("expected discarded queue, got %d entries", s.QueueLen())
	}
}

func TestDrainProcessesQueuedText(t *testing.T) {
	fast := newBlockingClient()
	s := New(Options{
		Router:        testRouter(nil),
		Fast:          fast,
		QueueCapacity: 3,
	})
	s.Start()
	t.Cleanup(s.Close)

	done := make(chan struct{})
	go func() {
		s.SubmitText(context.Background(), "hello", "text")
		close(done)
	}()
	<-fast.started

	sub := s.SubmitText(context.Background(), "queued entry", "text")
	if !sub.Queued {
		t.Fatal("expected queueing while busy")
	}

	close(fast.release)
	<-done

	// The drain goroutine picks up the queued entry; blockingClient's
	// release channel is already closed so it completes immediately.
	waitForIdle(t, s)
}
