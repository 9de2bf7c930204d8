package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/domain"
)

var t0 = time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)

func curve(values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Time: t0.Add(time.Duration(i) * 24 * time.Hour), Capital: v, Equity: v}
	}
	return out
}

func TestAnalyzePerformance(t *testing.T) {
	trades := []domain.Trade{
		{EntryTime: t0, ExitTime: t0.Add(24 * time.Hour), Profit: 300, ExitReason: domain.ExitTakeProfit},
		{EntryTime: t0.Add(48 * time.Hour), ExitTime: t0.Add(72 * time.Hour), Profit: -100, ExitReason: domain.ExitStopLoss},
		{EntryTime: t0.Add(72 * time.Hour), ExitTime: t0.Add(96 * time.Hour), Profit: -100, ExitReason: domain.ExitStopLoss},
		{EntryTime: t0.Add(96 * time.Hour), ExitTime: t0.Add(120 * time.Hour), Profit: 100, ExitReason: domain.ExitTrailingStop},
	}
	equity := curve(10000, 10300, 10300, 10200, 10100, 10200)

	metrics := AnalyzePerformance(trades, equity, 10000)

	assert.Equal(t, 4, metrics.TotalTrades)
	assert.Equal(t, 2, metrics.WinningTrades)
	assert.Equal(t, 2, metrics.LosingTrades)
	assert.Equal(t, 0.5, metrics.WinRate)
	assert.Equal(t, 400.0, metrics.GrossProfit)
	assert.Equal(t, 200.0, metrics.GrossLoss)
	assert.Equal(t, 2.0, metrics.ProfitFactor)
	assert.Equal(t, 50.0, metrics.Expectancy)
	assert.Equal(t, 200.0, metrics.AverageWin)
	assert.Equal(t, -100.0, metrics.AverageLoss)
	assert.Equal(t, 2.0, metrics.RiskRewardRatio)
	assert.Equal(t, 1, metrics.MaxConsecutiveWins)
	assert.Equal(t, 2, metrics.MaxConsecutiveLosses)
	assert.Equal(t, 24*time.Hour, metrics.AverageTradeDuration)
	assert.Equal(t, 2, metrics.ExitReasons[domain.ExitStopLoss])

	assert.InDelta(t, 0.02, metrics.TotalReturn, 1e-12)
	assert.Equal(t, 10200.0, metrics.FinalEquity)

	// peak 10300, trough 10100
	assert.InDelta(t, 200.0/10300.0, metrics.MaxDrawdown, 1e-12)
	require.Len(t, metrics.DrawdownCurve, len(equity))
	for _, p := range metrics.DrawdownCurve {
		assert.GreaterOrEqual(t, p.Drawdown, 0.0)
		assert.LessOrEqual(t, p.Drawdown, 1.0)
	}
	require.Len(t, metrics.Drawdowns, 1)
	assert.False(t, metrics.Drawdowns[0].Recovered)
	assert.Equal(t, t0.Add(4*24*time.Hour), metrics.Drawdowns[0].TroughTime)
}

func TestAnalyzePerformance_DegenerateRun(t *testing.T) {
	metrics := AnalyzePerformance(nil, curve(10000, 10000, 10000), 10000)

	assert.Equal(t, 0, metrics.TotalTrades)
	assert.Equal(t, 0.0, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.ProfitFactor)
	assert.Equal(t, 0.0, metrics.Expectancy)
	assert.Equal(t, 0.0, metrics.MaxDrawdown)
	assert.Equal(t, 0.0, metrics.SharpeRatio)
	assert.LessOrEqual(t, metrics.SortinoRatio, 0.0)
	assert.Equal(t, 0.0, metrics.TotalReturn)
	assert.False(t, math.IsNaN(metrics.RiskRewardRatio))
}

func TestAnalyzePerformance_NoLosses(t *testing.T) {
	trades := []domain.Trade{{EntryTime: t0, ExitTime: t0.Add(time.Hour), Profit: 50}}
	metrics := AnalyzePerformance(trades, curve(1000, 1050), 1000)

	assert.True(t, metrics.HasInfiniteProfitFactor())
	assert.Equal(t, 1.0, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.AverageLoss)
}

func TestAnalyzePerformance_RecoveredDrawdown(t *testing.T) {
	trades := []domain.Trade{{EntryTime: t0, ExitTime: t0.Add(72 * time.Hour), Profit: 20}}
	metrics := AnalyzePerformance(trades, curve(100, 80, 90, 120), 100)

	require.Len(t, metrics.Drawdowns, 1)
	dd := metrics.Drawdowns[0]
	assert.True(t, dd.Recovered)
	assert.InDelta(t, 0.2, dd.Depth, 1e-12)
	assert.Equal(t, 2*24*time.Hour, dd.Duration)
	assert.InDelta(t, 0.2, metrics.MaxDrawdown, 1e-12)
	assert.InDelta(t, 1.0, metrics.RecoveryFactor, 1e-12)
}

func TestDrawdownAt(t *testing.T) {
	assert.Equal(t, 0.0, DrawdownAt(100, 120))
	assert.InDelta(t, 0.25, DrawdownAt(100, 75), 1e-12)
	assert.Equal(t, 1.0, DrawdownAt(100, -50))
	assert.Equal(t, 0.0, DrawdownAt(0, 0))
}

func TestSharpeAndSortino(t *testing.T) {
	cfg := Config{RiskFreeRate: 0, PeriodsPerYear: 1}
	returns := []float64{0.1, -0.1, 0.1, -0.1}

	assert.Equal(t, 0.0, SharpeRatio(returns, cfg))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.1}, cfg))

	// mean 0.05, population stdev 0.05
	assert.InDelta(t, 1.0, SharpeRatio([]float64{0.1, 0}, cfg), 1e-12)

	// downside over all periods: sqrt(0.01/2)
	sortino := SortinoRatio([]float64{0.2, -0.1}, cfg)
	assert.InDelta(t, 0.05/math.Sqrt(0.005), sortino, 1e-12)

	assert.Equal(t, 0.0, SortinoRatio([]float64{0.1, 0.2}, cfg))
}

func TestGetMonthlyReturns(t *testing.T) {
	// Jan 30, Jan 31, Feb 1, Feb 2
	metrics := AnalyzePerformance(nil, curve(100, 110, 121, 99), 100)
	monthly := metrics.GetMonthlyReturns()

	require.Len(t, monthly, 2)
	assert.Equal(t, time.January, monthly[0].Month.Month())
	assert.InDelta(t, 0.10, monthly[0].Return, 1e-12)
	assert.InDelta(t, 99.0/110.0-1, monthly[1].Return, 1e-12)
}
