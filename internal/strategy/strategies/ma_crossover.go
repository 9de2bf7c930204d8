package strategies

import (
	"context"
	"fmt"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/strategy/indicators"
)

// MACrossoverConfig holds configuration for the moving-average crossover forecaster.
type MACrossoverConfig struct {
	FastMAPeriod  int     // EMA period (e.g., 8)
	SlowMAPeriod  int     // SMA period (e.g., 21)
	RSIPeriod     int     // 0 disables the overbought filter
	RSIOverbought float64 // e.g., 70.0
}

// MACrossover projects the fast/slow moving-average spread forward:
// forecast = close * fastEMA / slowSMA. An overbought RSI flattens bullish forecasts.
// Until enough history exists it forecasts the last close, which never triggers an entry.
type MACrossover struct {
	config MACrossoverConfig
	fastMA *indicators.MovingAverage
	slowMA *indicators.MovingAverage
	rsi    *indicators.RSI
}

// NewMACrossover creates a new MA crossover forecaster instance.
func NewMACrossover(config MACrossoverConfig) (*MACrossover, error) {
	if config.FastMAPeriod <= 0 || config.SlowMAPeriod <= 0 || config.RSIPeriod < 0 {
		return nil, fmt.Errorf("forecaster periods must be positive")
	}
	if config.FastMAPeriod >= config.SlowMAPeriod {
		return nil, fmt.Errorf("fast MA period must be less than slow MA period")
	}
	if config.RSIPeriod > 0 && config.RSIOverbought == 0 {
		config.RSIOverbought = 70
	}

	m := &MACrossover{
		config: config,
		fastMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.FastMAPeriod},
			Type:            indicators.ExponentialMovingAverage,
		}),
		slowMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.SlowMAPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
	}
	if config.RSIPeriod > 0 {
		m.rsi = indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.RSIPeriod},
			Overbought:      config.RSIOverbought,
		})
	}
	return m, nil
}

// Version identifies the forecaster and its parameters.
func (m *MACrossover) Version() string {
	return fmt.Sprintf("ma-crossover-%d-%d-rsi%d", m.config.FastMAPeriod, m.config.SlowMAPeriod, m.config.RSIPeriod)
}

// RequiredDataPoints returns the minimum number of bars for a directional forecast.
func (m *MACrossover) RequiredDataPoints() int {
	required := m.config.SlowMAPeriod
	if m.rsi != nil && m.rsi.RequiredDataPoints() > required {
		required = m.rsi.RequiredDataPoints()
	}
	return required
}

// Forecast implements ports.Forecaster.
func (m *MACrossover) Forecast(ctx context.Context, window []domain.Bar) (float64, error) {
	price, err := lastClose(window)
	if err != nil {
		return 0, err
	}
	if len(window) < m.RequiredDataPoints() {
		return price, nil
	}

	// Bound the EMA history so per-bar cost stays constant on long series.
	start := len(window) - 4*m.config.SlowMAPeriod
	if start < 0 {
		start = 0
	}
	recent := window[start:]

	fast, err := m.fastMA.Calculate(ctx, recent)
	if err != nil {
		return 0, fmt.Errorf("fast MA: %w", err)
	}
	slow, err := m.slowMA.Calculate(ctx, recent)
	if err != nil {
		return 0, fmt.Errorf("slow MA: %w", err)
	}
	if slow == 0 {
		return price, nil
	}
	forecast := price * fast / slow

	if m.rsi != nil && forecast > price {
		rsi, err := m.rsi.Calculate(ctx, recent)
		if err != nil {
			return 0, fmt.Errorf("RSI: %w", err)
		}
		if m.rsi.IsOverbought(rsi) {
			return price, nil
		}
	}
	return forecast, nil
}
