package backtesting

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/risk"
	"riskBacktester/internal/strategy/strategies"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func makeBars(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: c}
	}
	return bars
}

// scorerFunc lets tests force a risk level.
type scorerFunc func(in ports.RiskInput) (domain.RiskAssessment, error)

func (f scorerFunc) Score(in ports.RiskInput) (domain.RiskAssessment, error) {
	return f(in)
}

func fixedLevel(level domain.RiskLevel) scorerFunc {
	return func(ports.RiskInput) (domain.RiskAssessment, error) {
		return domain.RiskAssessment{RiskLevel: level, Volatility: 0.2, SharpeRatio: 1}, nil
	}
}

func testConfig(scorer ports.RiskScorer) Config {
	cfg := DefaultConfig()
	cfg.Scorer = scorer
	return cfg
}

func baseParams() domain.StrategyParameters {
	return domain.StrategyParameters{
		InitialCapital:    10000,
		MaxRiskPerTrade:   0.02,
		StopLossPct:       0.04,
		TakeProfitPct:     0.20,
		TrailingStopPct:   0,
		EntryThresholdPct: 0.005,
	}
}

func TestRun_StopLossScenario(t *testing.T) {
	sim := NewSimulator(testConfig(fixedLevel(domain.RiskLow)))
	result, err := sim.Run(context.Background(), makeBars(100, 100, 100, 100, 95), strategies.Constant(101), baseParams())
	require.NoError(t, err)

	require.Len(t, result.Ledger, 1)
	trade := result.Ledger[0]
	assert.Equal(t, start.Add(1*time.Hour), trade.EntryTime)
	assert.Equal(t, start.Add(4*time.Hour), trade.ExitTime)
	assert.Equal(t, 100.0, trade.EntryPrice)
	assert.InDelta(t, 96.0, trade.ExitPrice, 1e-9)
	assert.Equal(t, domain.ExitStopLoss, trade.ExitReason)

	// 2% of 10000 over a 4.0 stop = 50 units, capped at 10% notional = 10 units
	assert.InDelta(t, 10.0, trade.Size, 1e-9)
	assert.InDelta(t, -40.0, trade.Profit, 1e-9)
	assert.InDelta(t, -0.004, trade.Return, 1e-12)

	require.Len(t, result.EquityCurve, 5)
	assert.InDelta(t, 9960.0, result.EquityCurve[4].Equity, 1e-9)
	assert.Nil(t, result.OpenPosition)
	assert.Equal(t, "constant-101", result.ForecasterVersion)
}

func TestRun_TrailingStopNeverLoosens(t *testing.T) {
	params := baseParams()
	params.TrailingStopPct = 0.05

	tests := []struct {
		name   string
		warmup int
		closes []float64
	}{
		{name: "entry on first bar", warmup: 0, closes: []float64{100, 110, 105}},
		{name: "entry after warm-up", warmup: 1, closes: []float64{100, 100, 110, 105}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(fixedLevel(domain.RiskLow))
			cfg.WarmupBars = tt.warmup
			result, err := NewSimulator(cfg).Run(context.Background(), makeBars(tt.closes...), strategies.Constant(1000), params)
			require.NoError(t, err)

			assert.Empty(t, result.Ledger)
			require.NotNil(t, result.OpenPosition)
			assert.InDelta(t, 104.5, result.OpenPosition.TrailingStopPrice, 1e-9)
			assert.Equal(t, domain.Long, result.OpenPosition.Direction)

			// Mark-to-market: 9000 cash + 10 units at 105
			last := result.EquityCurve[len(result.EquityCurve)-1]
			assert.InDelta(t, 9000.0, last.Capital, 1e-9)
			assert.InDelta(t, 10050.0, last.Equity, 1e-9)
		})
	}
}

func TestRun_ExitRules(t *testing.T) {
	params := baseParams()

	tests := []struct {
		name         string
		bars         []domain.Bar
		config       func(*Config)
		forecaster   ports.Forecaster
		params       func(*domain.StrategyParameters)
		expectReason domain.ExitReason
		expectExit   float64
	}{
		{
			name: "take profit on intrabar high",
			bars: func() []domain.Bar {
				b := makeBars(100, 100, 105)
				b[2].High = 121
				return b
			}(),
			forecaster:   strategies.Constant(1000),
			expectReason: domain.ExitTakeProfit,
			expectExit:   120,
		},
		{
			name: "stop loss on intrabar low",
			bars: func() []domain.Bar {
				b := makeBars(100, 100, 99)
				b[2].Low = 95
				b[2].High = 100
				return b
			}(),
			forecaster:   strategies.Constant(1000),
			expectReason: domain.ExitStopLoss,
			expectExit:   96,
		},
		{
			name: "stop loss has priority over take profit",
			bars: func() []domain.Bar {
				b := makeBars(100, 100, 100)
				b[2].Low = 90
				b[2].High = 130
				return b
			}(),
			forecaster:   strategies.Constant(1000),
			expectReason: domain.ExitStopLoss,
			expectExit:   96,
		},
		{
			name:   "trailing stop crossed",
			bars:   makeBars(100, 100, 110, 104),
			params: func(p *domain.StrategyParameters) { p.TrailingStopPct = 0.05 },
			forecaster: strategies.Constant(1000),
			expectReason: domain.ExitTrailingStop,
			expectExit:   104.5,
		},
		{
			name: "trailing stop crossed intrabar",
			bars: func() []domain.Bar {
				b := makeBars(100, 100, 110, 106)
				b[3].Low = 104
				b[3].High = 107
				return b
			}(),
			params:       func(p *domain.StrategyParameters) { p.TrailingStopPct = 0.05 },
			forecaster:   strategies.Constant(1000),
			expectReason: domain.ExitTrailingStop,
			expectExit:   104.5,
		},
		{
			name:   "forecast reversal",
			bars:   makeBars(100, 100, 101),
			config: func(c *Config) { c.ExitThresholdPct = 0.01 },
			forecaster: strategies.NewFunc("flip", func(_ context.Context, w []domain.Bar) (float64, error) {
				if len(w) <= 2 {
					return 1000, nil
				}
				return 50, nil
			}),
			expectReason: domain.ExitForecastReversal,
			expectExit:   101,
		},
		{
			name: "risk gate while open",
			bars: makeBars(100, 100, 101),
			config: func(c *Config) {
				c.ExitOnRiskGate = true
				c.Scorer = scorerFunc(func(in ports.RiskInput) (domain.RiskAssessment, error) {
					level := domain.RiskLow
					if len(in.Returns) >= 2 {
						level = domain.RiskVeryHigh
					}
					return domain.RiskAssessment{RiskLevel: level, Volatility: 0.2}, nil
				})
			},
			forecaster:   strategies.Constant(1000),
			expectReason: domain.ExitRiskGate,
			expectExit:   101,
		},
		{
			name:         "force close at end of series",
			bars:         makeBars(100, 100, 103),
			config:       func(c *Config) { c.EndOfSeries = domain.ForceClose },
			forecaster:   strategies.Constant(1000),
			expectReason: domain.ExitEndOfSeries,
			expectExit:   103,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(fixedLevel(domain.RiskLow))
			if tt.config != nil {
				tt.config(&cfg)
			}
			p := params
			if tt.params != nil {
				tt.params(&p)
			}

			result, err := NewSimulator(cfg).Run(context.Background(), tt.bars, tt.forecaster, p)
			require.NoError(t, err)
			require.Len(t, result.Ledger, 1)
			assert.Equal(t, tt.expectReason, result.Ledger[0].ExitReason)
			assert.InDelta(t, tt.expectExit, result.Ledger[0].ExitPrice, 1e-9)
			assert.Nil(t, result.OpenPosition)

			last := result.EquityCurve[len(result.EquityCurve)-1]
			assert.InDelta(t, last.Capital, last.Equity, 1e-9, "flat at the end")
			assert.InDelta(t, p.InitialCapital+result.Ledger[0].Profit, last.Equity, 1e-9)
		})
	}
}

func TestRun_RiskGateBlocksEntries(t *testing.T) {
	for _, level := range []domain.RiskLevel{domain.RiskHigh, domain.RiskVeryHigh} {
		t.Run(level.String(), func(t *testing.T) {
			result, err := NewSimulator(testConfig(fixedLevel(level))).
				Run(context.Background(), makeBars(100, 101, 102, 103), strategies.Constant(1000), baseParams())
			require.NoError(t, err)

			assert.Empty(t, result.Ledger)
			assert.Nil(t, result.OpenPosition)
			assert.Equal(t, 0.0, result.Summary.WinRate)
			assert.Equal(t, 0.0, result.Summary.ProfitFactor)
			assert.Equal(t, 0.0, result.Summary.MaxDrawdown)
			for _, p := range result.EquityCurve {
				assert.Equal(t, 10000.0, p.Equity)
			}
		})
	}
}

func TestRun_WarmupIsNotFatal(t *testing.T) {
	bars := makeBars(100, 101, 99, 102, 100, 103, 101, 104)
	result, err := NewSimulator(DefaultConfig()).Run(context.Background(), bars, strategies.Constant(1e6), baseParams())
	require.NoError(t, err)

	// Bars 0 and 1 have fewer than two returns.
	assert.Equal(t, 2, result.UnassessedBars)
	for _, trade := range result.Ledger {
		assert.False(t, trade.EntryTime.Before(bars[2].Timestamp))
	}
	if result.OpenPosition != nil {
		assert.False(t, result.OpenPosition.EntryTime.Before(bars[2].Timestamp))
	}
}

func TestRun_Errors(t *testing.T) {
	good := makeBars(100, 100, 100, 100)

	tests := []struct {
		name       string
		bars       []domain.Bar
		forecaster ports.Forecaster
		params     func(*domain.StrategyParameters)
		config     func(*Config)
		expectErr  error
		expectBar  int
	}{
		{
			name:       "invalid parameters",
			bars:       good,
			forecaster: strategies.Constant(101),
			params:     func(p *domain.StrategyParameters) { p.StopLossPct = -0.01 },
			expectErr:  ports.ErrConfigurationError,
			expectBar:  -1,
		},
		{
			name:      "missing forecaster",
			bars:      good,
			expectErr: ports.ErrConfigurationError,
			expectBar: -1,
		},
		{
			name:       "empty series",
			bars:       nil,
			forecaster: strategies.Constant(101),
			expectErr:  ports.ErrInsufficientData,
			expectBar:  -1,
		},
		{
			name: "non-positive close mid-run",
			bars: func() []domain.Bar {
				b := makeBars(100, 100, 100, 100)
				b[2].Close = 0
				return b
			}(),
			forecaster: strategies.Constant(101),
			expectErr:  ports.ErrDataError,
			expectBar:  2,
		},
		{
			name: "timestamps out of order",
			bars: func() []domain.Bar {
				b := makeBars(100, 100, 100, 100)
				b[3].Timestamp = b[1].Timestamp
				return b
			}(),
			forecaster: strategies.Constant(101),
			expectErr:  ports.ErrDataError,
			expectBar:  3,
		},
		{
			name:       "missing required indicator",
			bars:       good,
			forecaster: strategies.Constant(101),
			config:     func(c *Config) { c.RequiredIndicators = []string{"rsi_14"} },
			expectErr:  ports.ErrDataError,
			expectBar:  1,
		},
		{
			name: "forecaster failure",
			bars: good,
			forecaster: strategies.NewFunc("broken", func(context.Context, []domain.Bar) (float64, error) {
				return 0, errors.New("model unavailable")
			}),
			expectErr: ports.ErrDataError,
			expectBar: 1,
		},
		{
			name:       "non-finite forecast",
			bars:       good,
			forecaster: strategies.Constant(math.NaN()),
			expectErr:  ports.ErrDataError,
			expectBar:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(fixedLevel(domain.RiskLow))
			if tt.config != nil {
				tt.config(&cfg)
			}
			p := baseParams()
			if tt.params != nil {
				tt.params(&p)
			}

			result, err := NewSimulator(cfg).Run(context.Background(), tt.bars, tt.forecaster, p)
			require.Error(t, err)
			assert.Nil(t, result, "no partial result on a fatal error")
			assert.ErrorIs(t, err, tt.expectErr)

			var barErr *BarError
			if tt.expectBar >= 0 {
				require.ErrorAs(t, err, &barErr)
				assert.Equal(t, tt.expectBar, barErr.Index)
				assert.Equal(t, tt.bars[tt.expectBar].Timestamp, barErr.Timestamp)
			} else {
				assert.False(t, errors.As(err, &barErr))
			}
		})
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewSimulator(testConfig(fixedLevel(domain.RiskLow))).Run(ctx, makeBars(100, 101), strategies.Constant(101), baseParams())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

// wave builds a deterministic, non-trivial price path.
func wave(n int) []domain.Bar {
	closes := make([]float64, n)
	for i := range closes {
		x := float64(i)
		closes[i] = 100 + 10*math.Sin(x/7) + 3*math.Sin(x/2.3) + 0.05*x
	}
	return makeBars(closes...)
}

func TestRun_Causality(t *testing.T) {
	bars := wave(200)
	const cut = 120

	mutated := make([]domain.Bar, len(bars))
	copy(mutated, bars)
	for i := cut + 1; i < len(mutated); i++ {
		mutated[i].Close *= 0.5
	}

	forecaster, err := strategies.NewLinearTrend(5, 1)
	require.NoError(t, err)

	var windows []int
	recording := strategies.NewFunc(forecaster.Version(), func(ctx context.Context, w []domain.Bar) (float64, error) {
		require.Equal(t, len(w), cap(w), "window must not expose later bars")
		windows = append(windows, len(w))
		return forecaster.Forecast(ctx, w)
	})

	params := baseParams()
	params.TrailingStopPct = 0.02
	params.TakeProfitPct = 0.05

	sim := NewSimulator(DefaultConfig())
	a, err := sim.Run(context.Background(), bars, recording, params)
	require.NoError(t, err)
	b, err := sim.Run(context.Background(), mutated, forecaster, params)
	require.NoError(t, err)

	assert.NotEmpty(t, windows)
	assert.Equal(t, a.EquityCurve[:cut+1], b.EquityCurve[:cut+1])

	cutoff := bars[cut].Timestamp
	var tradesA, tradesB []domain.Trade
	for _, tr := range a.Ledger {
		if !tr.ExitTime.After(cutoff) {
			tradesA = append(tradesA, tr)
		}
	}
	for _, tr := range b.Ledger {
		if !tr.ExitTime.After(cutoff) {
			tradesB = append(tradesB, tr)
		}
	}
	assert.Equal(t, tradesA, tradesB)
}

func TestRun_DeterministicAndBounded(t *testing.T) {
	bars := wave(300)
	forecaster, err := strategies.NewDrift(3)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Sizer = risk.NewSizer(risk.SizerConfig{
		GateLevel:           domain.RiskVeryHigh,
		MaxPositionFraction: 0.5,
		EnableLeverage:      true,
		TargetVolatility:    0.6,
		LeverageCap:         3,
	})
	params := baseParams()
	params.EntryThresholdPct = 0
	params.TrailingStopPct = 0.01

	first, err := NewSimulator(cfg).Run(context.Background(), bars, forecaster, params)
	require.NoError(t, err)
	second, err := NewSimulator(cfg).Run(context.Background(), bars, forecaster, params)
	require.NoError(t, err)

	assert.Equal(t, first.Ledger, second.Ledger)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.Summary, second.Summary)

	for _, p := range first.EquityCurve {
		assert.GreaterOrEqual(t, p.Capital, -1e-9, "never spends more cash than available")
		assert.GreaterOrEqual(t, p.Equity, 0.0)
	}
	for _, d := range first.DrawdownCurve {
		assert.GreaterOrEqual(t, d.Drawdown, 0.0)
		assert.LessOrEqual(t, d.Drawdown, 1.0)
	}
}
