package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarvis-proto/jarvisd/pkg/config"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := New(path, config.EventsConfig{Enabled: true, RetentionDays: 0})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNotifyAndQuery(t *testing.T) {
	l := newTestLog(t)

	l.Notify("route_decision", map[string]any{"turn_id": "t1", "target": "fast"})
	l.Notify("state", map[string]any{"turn_id": "t1", "state": "THINKING"})
	l.Notify("state", map[string]any{"turn_id": "t2", "state": "IDLE"})

	entries, err := l.Query(context.Background(), QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	entries, err = l.Query(context.Background(), QueryOpts{Event: "state"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 state entries, got %d", len(entries))
	}

	entries, err = l.Query(context.Background(), QueryOpts{TurnID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for t1, got %d", len(entries))
	}
	if entries[0].Payload["state"] != "THINKING" {
		t.Errorf("payload round-trip failed: %v", entries[0].Payload)
	}
}

func TestQueryLimit(t *testing.T) {
	l := newTestLog(t)

	for n := 0; n < 5; n++ {
		l.Notify("tick", nil)
	}
	entries, err := l.Query(context.Background(), QueryOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2, got %d", len(entries))
	}
}

func TestQuerySince(t *testing.T) {
	l := newTestLog(t)

	l.Notify("old", nil)
	entries, err := l.Query(context.Background(), QueryOpts{Since: time.Now().UTC().Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries in the future, got %d", len(entries))
	}
}
