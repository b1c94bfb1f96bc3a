package costs

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jarvis-proto/jarvisd/pkg/config"
	"github.com/jarvis-proto/jarvisd/pkg/models"
)

// Tracker records premium backend usage and answers budget questions.
type Tracker interface {
	// Calculate returns the USD cost for a call's token counts.
	Calculate(model string, inputTokens, outputTokens, cacheRead, cacheCreation int) float64
	// LogUsage appends a ledger record and returns the computed cost.
	LogUsage(ctx context.Context, model string, inputTokens, outputTokens, cacheRead, cacheCreation int, requestType, summary string) (float64, error)
	// DailySpend returns today's total spend.
	DailySpend(ctx context.Context) (float64, error)
	// MonthlySpend returns this calendar month's total spend.
	MonthlySpend(ctx context.Context) (float64, error)
	// CanAfford reports whether the budget allows another premium call,
	// with a human-readable reason when it does not.
	CanAfford(ctx context.Context) (bool, string)
	// Report aggregates today's activity, remaining budget and recent records.
	Report(ctx context.Context, recent int) (*models.CostReport, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with an append-only SQLite ledger.
// The ledger is durable on purpose: budget enforcement must survive restarts.
type SQLiteTracker struct {
	db     *sql.DB
	budget config.BudgetConfig
	now    func() time.Time
}

const createLedger = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens INTEGER NOT NULL DEFAULT 0,
	cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0.0,
	request_type TEXT NOT NULL DEFAULT 'sync',
	summary TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(timestamp);
`

// New opens the ledger database and runs auto-migration.
func New(dbPath string, budget config.BudgetConfig) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cost db: %w", err)
	}

	if _, err := db.Exec(createLedger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cost db: %w", err)
	}

	return &SQLiteTracker{db: db, budget: budget, now: time.Now}, nil
}

// Calculate returns the USD cost for a call. Cache-read and cache-creation
// tokens are billed at their own rates and excluded from full-price input.
func (t *SQLiteTracker) Calculate(model string, inputTokens, outputTokens, cacheRead, cacheCreation int) float64 {
	p := PriceFor(model)

	regularInput := inputTokens - cacheRead - cacheCreation
	if regularInput < 0 {
		regularInput = 0
	}

	cost := float64(regularInput)/1e6*p.Input +
		float64(outputTokens)/1e6*p.Output +
		float64(cacheRead)/1e6*p.CacheRead +
		float64(cacheCreation)/1e6*p.CacheWrite
	return round6(cost)
}

// LogUsage computes the cost, appends a ledger record and returns the cost.
func (t *SQLiteTracker) LogUsage(ctx context.Context, model string, inputTokens, outputTokens, cacheRead, cacheCreation int, requestType, summary string) (float64, error) {
	cost := t.Calculate(model, inputTokens, outputTokens, cacheRead, cacheCreation)
	if requestType == "" {
		requestType = "sync"
	}
	if len(summary) > 200 {
		summary = summary[:200]
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records
		 (timestamp, model, input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens, cost_usd, request_type, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.now().UTC(), model, inputTokens, outputTokens, cacheRead, cacheCreation, cost, requestType, summary,
	)
	if err != nil {
		return cost, fmt.Errorf("log usage: %w", err)
	}
	return cost, nil
}

// DailySpend returns the total spend since the start of the current day.
func (t *SQLiteTracker) DailySpend(ctx context.Context) (float64, error) {
	return t.spendSince(ctx, dayStart(t.now().UTC()))
}

// MonthlySpend returns the total spend since the start of the current month.
func (t *SQLiteTracker) MonthlySpend(ctx context.Context) (float64, error) {
	return t.spendSince(ctx, monthStart(t.now().UTC()))
}

func (t *SQLiteTracker) spendSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_usd), 0) FROM usage_records WHERE timestamp >= ?`, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("spend since %s: %w", since.Format("2006-01-02"), err)
	}
	return round4(total), nil
}

// CanAfford reports whether the daily and monthly ceilings still have room.
// A ledger read failure is treated as affordable so a storage outage never
// blocks a user-facing turn; the caller logs the degradation.
func (t *SQLiteTracker) CanAfford(ctx context.Context) (bool, string) {
	daily, err := t.DailySpend(ctx)
	if err != nil {
		return true, ""
	}
	monthly, err := t.MonthlySpend(ctx)
	if err != nil {
		return true, ""
	}

	if daily >= t.budget.DailyUSD {
		return false, fmt.Sprintf("daily budget exhausted: $%.2f/$%.2f", daily, t.budget.DailyUSD)
	}
	if monthly >= t.budget.MonthlyUSD {
		return false, fmt.Sprintf("monthly budget exhausted: $%.2f/$%.2f", monthly, t.budget.MonthlyUSD)
	}
	return true, ""
}

// Report aggregates today's totals, remaining budget and the most recent records.
func (t *SQLiteTracker) Report(ctx context.Context, recent int) (*models.CostReport, error) {
	daily, err := t.DailySpend(ctx)
	if err != nil {
		return nil, err
	}
	monthly, err := t.MonthlySpend(ctx)
	if err != nil {
		return nil, err
	}

	var today models.DayTotals
	today.Spend = daily
	err = t.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(cache_read_tokens), 0)
		 FROM usage_records WHERE timestamp >= ?`, dayStart(t.now().UTC()),
	).Scan(&today.Calls, &today.InputTokens, &today.OutputTokens, &today.CacheHits)
	if err != nil {
		return nil, fmt.Errorf("today totals: %w", err)
	}

	if recent <= 0 {
		recent = 10
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, timestamp, model, input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens, cost_usd, request_type, summary
		 FROM usage_records ORDER BY timestamp DESC, id DESC LIMIT ?`, recent,
	)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Model, &r.InputTokens, &r.OutputTokens,
			&r.CacheReadTokens, &r.CacheCreationTokens, &r.CostUSD, &r.RequestType, &r.Summary); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.CostReport{
		Today:        today,
		MonthlySpend: monthly,
		Budget: models.BudgetTotals{
			DailyLimit:       t.budget.DailyUSD,
			MonthlyLimit:     t.budget.MonthlyUSD,
			DailyRemaining:   round4(math.Max(0, t.budget.DailyUSD-daily)),
			MonthlyRemaining: round4(math.Max(0, t.budget.MonthlyUSD-monthly)),
		},
		Warning: daily >= t.budget.DailyUSD*t.budget.WarnThreshold ||
			monthly >= t.budget.MonthlyUSD*t.budget.WarnThreshold,
		Recent: records,
	}, nil
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

func dayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
