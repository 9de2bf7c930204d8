package analytics

import (
	"math"
	"sort"
	"time"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/risk"
)

// PerformanceMetrics holds comprehensive performance metrics for a run
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades   int
	WinningTrades int
	LosingTrades  int // Breakeven trades count as neither winning nor losing
	WinRate       float64
	GrossProfit   float64
	GrossLoss     float64 // Absolute value
	NetProfit     float64
	ProfitFactor  float64 // +Inf when there are no losses and GrossProfit > 0
	AverageWin    float64
	AverageLoss   float64 // Negative or zero
	Expectancy    float64 // Mean profit per trade
	FinalEquity   float64
	TotalReturn   float64

	// Risk-adjusted Metrics, computed over per-bar equity returns
	SharpeRatio   float64
	SortinoRatio  float64
	MaxDrawdown   float64
	DrawdownCurve []domain.DrawdownPoint

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	RecoveryFactor       float64
	RiskRewardRatio      float64
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	ExitReasons          map[domain.ExitReason]int
}

// Drawdown represents a drawdown period on the equity curve
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time // Zero when the drawdown has not recovered by the end of the run
	StartValue float64
	TroughTime time.Time
	Depth      float64
	Duration   time.Duration
	Recovered  bool
}

// Config holds the annualization parameters for ratio metrics.
type Config struct {
	RiskFreeRate   float64 // Annual
	PeriodsPerYear float64
}

// DefaultConfig uses a 2% risk-free rate and 252 periods per year.
func DefaultConfig() Config {
	return Config{RiskFreeRate: risk.DefaultRiskFreeRate, PeriodsPerYear: risk.TradingPeriodsPerYear}
}

// AnalyzePerformance calculates performance metrics with the default configuration.
func AnalyzePerformance(trades []domain.Trade, equity []domain.EquityPoint, initialCapital float64) *PerformanceMetrics {
	return Analyze(trades, equity, initialCapital, DefaultConfig())
}

// Analyze calculates performance metrics from the ledger and equity curve.
// It is a pure function and never returns NaN: degenerate inputs yield 0 (or +Inf for ProfitFactor).
func Analyze(trades []domain.Trade, equity []domain.EquityPoint, initialCapital float64, cfg Config) *PerformanceMetrics {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = risk.TradingPeriodsPerYear
	}
	metrics := &PerformanceMetrics{
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		DrawdownCurve:  make([]domain.DrawdownPoint, 0, len(equity)),
		ExitReasons:    make(map[domain.ExitReason]int),
	}

	analyzeTrades(metrics, trades)

	metrics.FinalEquity = initialCapital + metrics.NetProfit
	if len(equity) > 0 {
		metrics.FinalEquity = equity[len(equity)-1].Equity
	}
	if initialCapital > 0 {
		metrics.TotalReturn = metrics.FinalEquity/initialCapital - 1
	}

	analyzeEquity(metrics, equity, cfg)

	if metrics.MaxDrawdown > 0 && initialCapital > 0 {
		metrics.RecoveryFactor = metrics.NetProfit / (initialCapital * metrics.MaxDrawdown)
	}
	return metrics
}

func analyzeTrades(metrics *PerformanceMetrics, trades []domain.Trade) {
	var consecutiveWins, consecutiveLosses int
	var totalDuration time.Duration

	for _, trade := range trades {
		metrics.TotalTrades++
		metrics.NetProfit += trade.Profit
		metrics.ExitReasons[trade.ExitReason]++
		totalDuration += trade.Duration()

		switch {
		case trade.Profit > 0:
			metrics.WinningTrades++
			metrics.GrossProfit += trade.Profit
			consecutiveWins++
			consecutiveLosses = 0
		case trade.Profit < 0:
			metrics.LosingTrades++
			metrics.GrossLoss += -trade.Profit
			consecutiveLosses++
			consecutiveWins = 0
		default:
			consecutiveWins = 0
			consecutiveLosses = 0
		}

		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	metrics.ProfitFactor = ProfitFactor(metrics.GrossProfit, metrics.GrossLoss)
	if metrics.TotalTrades == 0 {
		return
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	metrics.Expectancy = metrics.NetProfit / float64(metrics.TotalTrades)
	metrics.AverageTradeDuration = totalDuration / time.Duration(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = metrics.GrossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = -metrics.GrossLoss / float64(metrics.LosingTrades)
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
}

func analyzeEquity(metrics *PerformanceMetrics, equity []domain.EquityPoint, cfg Config) {
	if len(equity) == 0 {
		return
	}

	peak := equity[0].Equity
	var current *Drawdown
	monthBase := equity[0].Equity

	for i, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := DrawdownAt(peak, p.Equity)
		metrics.DrawdownCurve = append(metrics.DrawdownCurve, domain.DrawdownPoint{Time: p.Time, Drawdown: dd})
		if dd > metrics.MaxDrawdown {
			metrics.MaxDrawdown = dd
		}

		switch {
		case dd > 0 && current == nil:
			current = &Drawdown{StartTime: p.Time, StartValue: peak, TroughTime: p.Time, Depth: dd}
		case dd > 0:
			if dd > current.Depth {
				current.Depth = dd
				current.TroughTime = p.Time
			}
		case current != nil:
			current.EndTime = p.Time
			current.Duration = current.EndTime.Sub(current.StartTime)
			current.Recovered = true
			metrics.Drawdowns = append(metrics.Drawdowns, *current)
			current = nil
		}

		// A month's return runs from the last point of the previous month to its own last point.
		month := p.Time.Format("2006-01")
		if monthBase > 0 {
			metrics.MonthlyReturns[month] = p.Equity/monthBase - 1
		}
		if i+1 < len(equity) && equity[i+1].Time.Format("2006-01") != month {
			monthBase = p.Equity
		}
	}
	if current != nil {
		current.Duration = equity[len(equity)-1].Time.Sub(current.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *current)
	}

	returns := domain.SimpleReturns(domain.Equities(equity))
	metrics.SharpeRatio = SharpeRatio(returns, cfg)
	metrics.SortinoRatio = SortinoRatio(returns, cfg)
}

// DrawdownAt returns (peak-equity)/peak clamped to [0, 1].
func DrawdownAt(peak, equity float64) float64 {
	if peak <= 0 {
		if equity < peak {
			return 1
		}
		return 0
	}
	dd := (peak - equity) / peak
	return math.Max(0, math.Min(1, dd))
}

// ProfitFactor returns grossProfit/grossLoss, +Inf when there are no losses but
// some profit, and 0 when there is neither.
func ProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// SharpeRatio annualizes the mean excess return over its standard deviation.
// Returns 0 for fewer than two returns or zero variance.
func SharpeRatio(returns []float64, cfg Config) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, stdev := risk.MeanStdDev(returns)
	if stdev == 0 {
		return 0
	}
	return (mean - cfg.RiskFreeRate/cfg.PeriodsPerYear) / stdev * math.Sqrt(cfg.PeriodsPerYear)
}

// SortinoRatio is SharpeRatio with the downside deviation below the per-period
// risk-free rate as the denominator. Returns 0 when there is no downside.
func SortinoRatio(returns []float64, cfg Config) float64 {
	if len(returns) < 2 {
		return 0
	}
	target := cfg.RiskFreeRate / cfg.PeriodsPerYear
	var mean, downside float64
	for _, r := range returns {
		mean += r
		if r < target {
			downside += (r - target) * (r - target)
		}
	}
	mean /= float64(len(returns))
	downside = math.Sqrt(downside / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return (mean - target) / downside * math.Sqrt(cfg.PeriodsPerYear)
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, r := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: r,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// HasInfiniteProfitFactor reports whether ProfitFactor is the +Inf sentinel.
func (m *PerformanceMetrics) HasInfiniteProfitFactor() bool {
	return math.IsInf(m.ProfitFactor, 1)
}
