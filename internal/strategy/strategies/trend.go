package strategies

import (
	"context"
	"fmt"

	"riskBacktester/internal/domain"
)

// LinearTrend fits an ordinary least-squares line through the last Lookback closes
// and extrapolates it Horizon bars ahead.
type LinearTrend struct {
	Lookback int
	Horizon  int
}

// NewLinearTrend creates a new linear trend forecaster.
func NewLinearTrend(lookback, horizon int) (*LinearTrend, error) {
	if lookback < 2 {
		return nil, fmt.Errorf("linear trend lookback must be at least 2, got %d", lookback)
	}
	if horizon <= 0 {
		horizon = 1
	}
	return &LinearTrend{Lookback: lookback, Horizon: horizon}, nil
}

// Version identifies the forecaster and its parameters.
func (l *LinearTrend) Version() string {
	return fmt.Sprintf("linear-trend-%d-h%d", l.Lookback, l.Horizon)
}

// Forecast implements ports.Forecaster.
func (l *LinearTrend) Forecast(_ context.Context, window []domain.Bar) (float64, error) {
	price, err := lastClose(window)
	if err != nil {
		return 0, err
	}
	if len(window) < l.Lookback {
		return price, nil
	}

	recent := window[len(window)-l.Lookback:]
	n := float64(len(recent))
	var sumX, sumY, sumXY, sumXX float64
	for i, b := range recent {
		x := float64(i)
		sumX += x
		sumY += b.Close
		sumXY += x * b.Close
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return price, nil
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return intercept + slope*(n-1+float64(l.Horizon)), nil
}

// Drift extrapolates the mean simple return of the last Lookback bars.
type Drift struct {
	Lookback int
}

// NewDrift creates a new drift forecaster.
func NewDrift(lookback int) (*Drift, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("drift lookback must be positive, got %d", lookback)
	}
	return &Drift{Lookback: lookback}, nil
}

// Version identifies the forecaster and its parameters.
func (d *Drift) Version() string {
	return fmt.Sprintf("drift-%d", d.Lookback)
}

// Forecast implements ports.Forecaster.
func (d *Drift) Forecast(_ context.Context, window []domain.Bar) (float64, error) {
	price, err := lastClose(window)
	if err != nil {
		return 0, err
	}
	if len(window) <= d.Lookback {
		return price, nil
	}
	returns := domain.SimpleReturns(domain.Closes(window[len(window)-d.Lookback-1:]))
	if len(returns) == 0 {
		return price, nil
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	return price * (1 + mean), nil
}
