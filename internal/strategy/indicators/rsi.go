package indicators

import (
	"context"
	"fmt"

	"riskBacktester/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints is one more than the period since RSI works on price changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI value using Wilder's smoothing method
func (r *RSI) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := r.Config.Period
	if period <= 0 || len(bars) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(bars), period)
	}

	changes := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		changes = append(changes, bars[i].Close-bars[i-1].Close)
	}

	var avgGain, avgLoss float64
	for _, c := range changes[:period] {
		if c > 0 {
			avgGain += c
		} else {
			avgLoss -= c
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for _, c := range changes[period:] {
		gain, loss := 0.0, 0.0
		if c > 0 {
			gain = c
		} else {
			loss = -c
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}

	rsi := 100 - (100 / (1 + avgGain/avgLoss))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
