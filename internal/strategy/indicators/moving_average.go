package indicators

import (
	"context"
	"fmt"

	"riskBacktester/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	if m.Config.Period <= 0 {
		return 0, fmt.Errorf("invalid %s period %d", m.config.Type, m.Config.Period)
	}
	switch m.config.Type {
	case SimpleMovingAverage:
		return SMA(domain.Closes(bars), m.Config.Period)
	case ExponentialMovingAverage:
		return EMA(domain.Closes(bars), m.Config.Period)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(values), period)
	}

	total := 0.0
	for _, v := range values[len(values)-period:] {
		total += v
	}
	return total / float64(period), nil
}

// EMA computes the exponential moving average seeded with the SMA of the first period values.
func EMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(values), period)
	}

	multiplier := 2.0 / float64(period+1)

	ema, err := SMA(values[:period], period)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate initial SMA for EMA: %w", err)
	}
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
	}
	return ema, nil
}
