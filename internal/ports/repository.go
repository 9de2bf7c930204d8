package ports

import (
	"context"
	"time"

	"riskBacktester/internal/domain"
)

// RunRecord is a persisted backtest run with its headline metrics.
type RunRecord struct {
	ID                string
	CreatedAt         time.Time
	Symbol            string
	ForecasterVersion string
	Params            domain.StrategyParameters
	TotalTrades       int
	FinalEquity       float64
	TotalReturn       float64
	WinRate           float64
	ProfitFactor      float64 // +Inf when there were no losing trades
	Expectancy        float64
	SharpeRatio       float64
	SortinoRatio      float64
	MaxDrawdown       float64
}

// ResultRepository stores backtest runs with their ledgers and equity curves.
type ResultRepository interface {
	// SaveRun persists the run, its trades and equity curve atomically and returns the run ID.
	SaveRun(ctx context.Context, run *RunRecord, trades []domain.Trade, equity []domain.EquityPoint) (string, error)
	// FindRun retrieves a run by ID. Returns nil, nil if not found.
	FindRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	// FindTrades returns the ledger of a run in chronological order.
	FindTrades(ctx context.Context, runID string) ([]domain.Trade, error)
	// FindEquity returns the equity curve of a run.
	FindEquity(ctx context.Context, runID string) ([]domain.EquityPoint, error)
	// Close releases the underlying storage.
	Close() error
}

// BarSource provides historical bars for a symbol.
type BarSource interface {
	// GetBars returns bars in [start, end) ordered by time.
	GetBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error)
	// Ping checks the connectivity to the data provider.
	Ping(ctx context.Context) error
}
