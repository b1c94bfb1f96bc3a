package models

import "time"

// UsageRecord is one row of the append-only cost ledger. Records are never
// mutated or deleted; all budget aggregation derives from them.
type UsageRecord struct {
	ID                  int64     `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Model               string    `json:"model"`
	InputTokens         int       `json:"input_tokens"`
	OutputTokens        int       `json:"output_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens"`
	CostUSD             float64   `json:"cost_usd"`
	RequestType         string    `json:"request_type"`
	Summary             string    `json:"summary"`
}

// DayTotals aggregates today's ledger activity.
type DayTotals struct {
	Spend        float64 `json:"spend"`
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CacheHits    int64   `json:"cache_hits"`
}

// BudgetTotals shows configured ceilings and what remains of them.
type BudgetTotals struct {
	DailyLimit       float64 `json:"daily_limit"`
	MonthlyLimit     float64 `json:"monthly_limit"`
	DailyRemaining   float64 `json:"daily_remaining"`
	MonthlyRemaining float64 `json:"monthly_remaining"`
}

// CostReport is the full spend report for dashboards and the CLI.
type CostReport struct {
	Today        DayTotals     `json:"today"`
	MonthlySpend float64       `json:"monthly_spend"`
	Budget       BudgetTotals  `json:"budget"`
	Warning      bool          `json:"warning"`
	Recent       []UsageRecord `json:"recent"`
}
