package indicators

import (
	"context"
	"fmt"

	"riskBacktester/internal/domain"
)

// MACDOutput selects which MACD series Calculate returns.
type MACDOutput string

const (
	MACDLine      MACDOutput = "line"
	MACDSignal    MACDOutput = "signal"
	MACDHistogram MACDOutput = "histogram"
)

// MACDConfig holds configuration for the MACD indicator
type MACDConfig struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
	Output       MACDOutput
}

// DefaultMACDConfig returns the conventional 12/26/9 line configuration.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9, Output: MACDLine}
}

// MACD implements the Moving Average Convergence Divergence indicator
type MACD struct {
	config MACDConfig
}

// NewMACD creates a new MACD indicator instance
func NewMACD(config MACDConfig) *MACD {
	if config.Output == "" {
		config.Output = MACDLine
	}
	return &MACD{config: config}
}

// Name returns the name of the indicator
func (m *MACD) Name() string {
	return "MACD"
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (m *MACD) RequiredDataPoints() int {
	if m.config.Output == MACDLine {
		return m.config.SlowPeriod
	}
	return m.config.SlowPeriod + m.config.SignalPeriod - 1
}

// Calculate computes the configured MACD output for the last bar.
func (m *MACD) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	c := m.config
	if c.FastPeriod <= 0 || c.SlowPeriod <= c.FastPeriod || c.SignalPeriod <= 0 {
		return 0, fmt.Errorf("invalid MACD periods %d/%d/%d", c.FastPeriod, c.SlowPeriod, c.SignalPeriod)
	}
	if need := m.RequiredDataPoints(); len(bars) < need {
		return 0, fmt.Errorf("not enough data points for MACD calculation: need %d, got %d", need, len(bars))
	}

	closes := domain.Closes(bars)
	fast := emaSeries(closes, c.FastPeriod)
	slow := emaSeries(closes, c.SlowPeriod)

	// slow[j] is aligned with closes[SlowPeriod-1+j], fast is SlowPeriod-FastPeriod values ahead.
	offset := c.SlowPeriod - c.FastPeriod
	line := make([]float64, len(slow))
	for j := range slow {
		line[j] = fast[j+offset] - slow[j]
	}

	last := line[len(line)-1]
	switch c.Output {
	case MACDLine:
		return last, nil
	case MACDSignal, MACDHistogram:
		signal, err := EMA(line, c.SignalPeriod)
		if err != nil {
			return 0, fmt.Errorf("failed to calculate MACD signal: %w", err)
		}
		if c.Output == MACDSignal {
			return signal, nil
		}
		return last - signal, nil
	default:
		return 0, fmt.Errorf("unsupported MACD output: %s", c.Output)
	}
}

// emaSeries returns the EMA for every index from period-1 on, matching EMA over each prefix.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	ema := 0.0
	for _, v := range values[:period] {
		ema += v
	}
	ema /= float64(period)
	out = append(out, ema)

	multiplier := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}
