package indicators

import (
	"context"
	"fmt"

	"riskBacktester/internal/domain"
)

// DefaultLookback bounds how many trailing bars each indicator sees per step.
const DefaultLookback = 250

type feedEntry struct {
	key       string
	indicator Indicator
}

// Feed attaches named indicator values to bars. Each value is computed only from the
// bar itself and earlier bars, so an attached series stays causal.
type Feed struct {
	entries  []feedEntry
	lookback int
}

// NewFeed creates an empty feed. lookback <= 0 selects DefaultLookback.
func NewFeed(lookback int) *Feed {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Feed{lookback: lookback}
}

// DefaultFeed attaches moving averages, RSI, ATR, MACD, Bollinger bands and ADX.
func DefaultFeed() *Feed {
	return NewFeed(DefaultLookback).
		Add("sma_20", NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Type: SimpleMovingAverage})).
		Add("ema_20", NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Type: ExponentialMovingAverage})).
		Add("rsi_14", NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Overbought: 70, Oversold: 30})).
		Add("atr_14", NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}})).
		Add("macd", NewMACD(DefaultMACDConfig())).
		Add("macd_signal", NewMACD(MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9, Output: MACDSignal})).
		Add("bb_upper", NewBollinger(BollingerConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Width: 2, Band: BollingerUpper})).
		Add("bb_lower", NewBollinger(BollingerConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Width: 2, Band: BollingerLower})).
		Add(TrendStrengthKey, NewADX(IndicatorConfig{Period: 14}))
}

// TrendStrengthKey is the indicator key the risk scorer reads as trend strength.
const TrendStrengthKey = "adx"

// VolatilityIndexKey is the indicator key the risk scorer reads as a volatility index.
const VolatilityIndexKey = "vix"

// Add registers an indicator under key and returns the feed for chaining.
func (f *Feed) Add(key string, ind Indicator) *Feed {
	f.entries = append(f.entries, feedEntry{key: key, indicator: ind})
	return f
}

// Keys returns the registered indicator keys in registration order.
func (f *Feed) Keys() []string {
	keys := make([]string, len(f.entries))
	for i, e := range f.entries {
		keys[i] = e.key
	}
	return keys
}

// Warmup is the number of bars before every indicator has a value.
func (f *Feed) Warmup() int {
	w := 0
	for _, e := range f.entries {
		if r := e.indicator.RequiredDataPoints(); r > w {
			w = r
		}
	}
	if w > 0 {
		w--
	}
	return w
}

// Attach returns a copy of bars with the feed's indicators added to each bar's
// Indicators map. Bars that precede an indicator's warm-up get no value for it.
// Existing indicator values are preserved unless a registered key overwrites them.
func (f *Feed) Attach(ctx context.Context, bars []domain.Bar) ([]domain.Bar, error) {
	out := make([]domain.Bar, len(bars))
	for i := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := bars[i]
		merged := make(map[string]float64, len(b.Indicators)+len(f.entries))
		for k, v := range b.Indicators {
			merged[k] = v
		}

		start := i + 1 - f.lookback
		if start < 0 {
			start = 0
		}
		window := bars[start : i+1]
		for _, e := range f.entries {
			if len(window) < e.indicator.RequiredDataPoints() {
				continue
			}
			v, err := e.indicator.Calculate(ctx, window)
			if err != nil {
				return nil, fmt.Errorf("indicator %s at bar %d: %w", e.key, i, err)
			}
			merged[e.key] = v
		}
		b.Indicators = merged
		out[i] = b
	}
	return out, nil
}
