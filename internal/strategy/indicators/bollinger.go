package indicators

import (
	"context"
	"fmt"
	"math"

	"riskBacktester/internal/domain"
)

// BollingerBand selects which band Calculate returns.
type BollingerBand string

const (
	BollingerUpper  BollingerBand = "upper"
	BollingerMiddle BollingerBand = "middle"
	BollingerLower  BollingerBand = "lower"
)

// BollingerConfig holds configuration for Bollinger bands
type BollingerConfig struct {
	IndicatorConfig
	Width float64 // Standard deviations between the middle and outer bands
	Band  BollingerBand
}

// Bollinger implements Bollinger bands over closing prices
type Bollinger struct {
	BaseIndicator
	config BollingerConfig
}

// NewBollinger creates a new Bollinger band indicator instance
func NewBollinger(config BollingerConfig) *Bollinger {
	if config.Width == 0 {
		config.Width = 2
	}
	if config.Band == "" {
		config.Band = BollingerMiddle
	}
	return &Bollinger{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (b *Bollinger) Name() string {
	return "BB"
}

// Calculate computes the configured band from the last Period closes.
// The deviation is the population standard deviation.
func (b *Bollinger) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := b.Config.Period
	if period <= 0 || len(bars) < period {
		return 0, fmt.Errorf("not enough data points for Bollinger calculation: need %d, got %d", period, len(bars))
	}

	window := domain.Closes(bars[len(bars)-period:])
	mean, err := SMA(window, period)
	if err != nil {
		return 0, err
	}
	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(period))

	switch b.config.Band {
	case BollingerUpper:
		return mean + b.config.Width*std, nil
	case BollingerMiddle:
		return mean, nil
	case BollingerLower:
		return mean - b.config.Width*std, nil
	default:
		return 0, fmt.Errorf("unsupported Bollinger band: %s", b.config.Band)
	}
}
