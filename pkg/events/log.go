// Package events persists lifecycle and routing events to a dedicated
// SQLite database for after-the-fact inspection. Only metadata is stored,
// never conversation content.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jarvis-proto/jarvisd/pkg/config"
)

// Entry is one recorded event.
type Entry struct {
	ID        int64          `json:"id"`
	TurnID    string         `json:"turn_id"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// QueryOpts filters event queries.
type QueryOpts struct {
	Event  string
	TurnID string
	Since  time.Time
	Limit  int
}

// Log writes and queries events in a dedicated SQLite database. It
// implements the scheduler's Notifier; a write failure never propagates to
// the request lifecycle.
type Log struct {
	db   *sql.DB
	cfg  config.EventsConfig
	done chan struct{}
	wg   sync.WaitGroup
}

const createEvents = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id TEXT NOT NULL DEFAULT '',
	event TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
CREATE INDEX IF NOT EXISTS idx_events_event ON events(event);
`

// New opens the event database and starts the retention loop.
func New(dbPath string, cfg config.EventsConfig) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	if _, err := db.Exec(createEvents); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event db: %w", err)
	}

	l := &Log{db: db, cfg: cfg, done: make(chan struct{})}
	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}
	return l, nil
}

// Notify records an event. Failures are logged and swallowed.
func (l *Log) Notify(event string, payload map[string]any) {
	if l == nil {
		return
	}
	turnID, _ := payload["turn_id"].(string)

	body := []byte("{}")
	if len(payload) > 0 {
		if b, err := json.Marshal(payload); err == nil {
			body = b
		}
	}

	_, err := l.db.Exec(
		`INSERT INTO events (turn_id, event, payload, created_at) VALUES (?, ?, ?, ?)`,
		turnID, event, string(body), time.Now().UTC(),
	)
	if err != nil {
		log.Printf("event log write failed: %v", err)
	}
}

// Query returns events matching the options, newest first.
func (l *Log) Query(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	q := `SELECT id, turn_id, event, payload, created_at FROM events WHERE 1=1`
	var args []any

	if opts.Event != "" {
		q += ` AND event = ?`
		args = append(args, opts.Event)
	}
	if opts.TurnID != "" {
		q += ` AND turn_id = ?`
		args = append(args, opts.TurnID)
	}
	if !opts.Since.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, opts.Since)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.TurnID, &e.Event, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if payload != "" && payload != "{}" {
			_ = json.Unmarshal([]byte(payload), &e.Payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes events older than the retention period.
func (l *Log) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("event cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention loop and closes the database.
func (l *Log) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Log) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
