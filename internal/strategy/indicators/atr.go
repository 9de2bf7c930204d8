package indicators

import (
	"context"
	"fmt"
	"math"

	"riskBacktester/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator
type ATR struct {
	config ATRConfig
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{
		config: config,
	}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (a *ATR) RequiredDataPoints() int {
	return a.config.Period + 1
}

// Calculate computes the Average True Range value for the given bars.
// Bars without High/Low fall back to the close.
func (a *ATR) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := a.config.Period
	if period <= 0 || len(bars) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(bars))
	}

	trueRanges := trueRanges(bars)

	// Wilder's smoothing, seeded with the simple average of the first period ranges
	atr := 0.0
	for _, tr := range trueRanges[:period] {
		atr += tr
	}
	atr /= float64(period)

	for _, tr := range trueRanges[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, nil
}

func trueRanges(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	out[0] = bars[0].HighOrClose() - bars[0].LowOrClose()
	for i := 1; i < len(bars); i++ {
		high := bars[i].HighOrClose()
		low := bars[i].LowOrClose()
		prevClose := bars[i-1].Close
		out[i] = math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}
	return out
}
