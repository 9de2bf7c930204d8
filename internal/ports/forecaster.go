package ports

import (
	"context"

	"riskBacktester/internal/domain"
)

// Forecaster predicts a future price from the bars seen so far.
// The window always ends at the current bar; implementations never see later bars.
// Implementations shared across parallel runs must be safe for concurrent use.
type Forecaster interface {
	// Forecast returns the predicted price for the bar after window[len(window)-1].
	Forecast(ctx context.Context, window []domain.Bar) (float64, error)
	// Version identifies the model so results can be attributed to it.
	Version() string
}

// RiskScorer turns recent returns into a RiskAssessment.
type RiskScorer interface {
	// Score returns ErrInsufficientData (wrapped) when the input cannot produce a finite assessment.
	Score(input RiskInput) (domain.RiskAssessment, error)
}

// RiskInput is everything a RiskScorer may use for one bar.
type RiskInput struct {
	Returns      []float64                // Per-bar simple returns, most recent last
	Conditions   *domain.MarketConditions // Optional
	TradeReturns []float64                // Realized per-trade returns so far, for Kelly
}
