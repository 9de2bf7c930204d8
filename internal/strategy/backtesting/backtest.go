package backtesting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"riskBacktester/internal/adapters/logger"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/risk"
	"riskBacktester/internal/strategy/analytics"
	"riskBacktester/internal/strategy/indicators"
)

// Config holds configuration for the simulator. Strategy parameters are passed per run.
type Config struct {
	Scorer ports.RiskScorer
	Sizer  *risk.Sizer
	Logger ports.Logger

	ReturnWindow       int      // Trailing bar returns fed to the scorer
	WarmupBars         int      // No entries before this bar index
	RequiredIndicators []string // Must be present on every bar from WarmupBars on
	VolatilityIndexKey string   // Indicator read as market volatility index
	TrendStrengthKey   string   // Indicator read as market trend strength

	ExitThresholdPct float64 // > 0 closes when forecast < close*(1-ExitThresholdPct)
	ExitOnRiskGate   bool    // Close when the risk level reaches the sizer's gate
	EndOfSeries      domain.EndOfSeriesPolicy

	Analytics analytics.Config
}

// DefaultConfig returns the baseline simulator configuration.
func DefaultConfig() Config {
	return Config{
		Scorer:             risk.NewScorer(risk.DefaultScorerConfig()),
		Sizer:              risk.NewSizer(risk.DefaultSizerConfig()),
		Logger:             logger.Nop{},
		ReturnWindow:       20,
		WarmupBars:         1,
		VolatilityIndexKey: indicators.VolatilityIndexKey,
		TrendStrengthKey:   indicators.TrendStrengthKey,
		EndOfSeries:        domain.MarkToMarket,
		Analytics:          analytics.DefaultConfig(),
	}
}

// BacktestResult holds the results of a backtest. It is not modified after Run returns.
type BacktestResult struct {
	Ledger            []domain.Trade
	EquityCurve       []domain.EquityPoint
	DrawdownCurve     []domain.DrawdownPoint
	Summary           *analytics.PerformanceMetrics
	OpenPosition      *domain.Position // Non-nil when a position was left open under MarkToMarket
	ForecasterVersion string
	Params            domain.StrategyParameters
	UnassessedBars    int // Bars where the scorer reported insufficient data
}

// BarError is a data error tied to a specific bar.
type BarError struct {
	Index     int
	Timestamp time.Time
	Err       error
}

func (e *BarError) Error() string {
	return fmt.Sprintf("bar %d (%s): %v", e.Index, e.Timestamp.Format(time.RFC3339), e.Err)
}

func (e *BarError) Unwrap() error {
	return e.Err
}

func barError(i int, bar domain.Bar, format string, args ...interface{}) error {
	return &BarError{Index: i, Timestamp: bar.Timestamp, Err: fmt.Errorf("%w: "+format, append([]interface{}{ports.ErrDataError}, args...)...)}
}

// Simulator runs the causal bar-by-bar event loop. It is stateless between runs
// and may be shared by concurrent runs.
type Simulator struct {
	cfg Config
}

// NewSimulator creates a simulator, filling unset collaborators with defaults.
func NewSimulator(cfg Config) *Simulator {
	def := DefaultConfig()
	if cfg.Scorer == nil {
		cfg.Scorer = def.Scorer
	}
	if cfg.Sizer == nil {
		cfg.Sizer = def.Sizer
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.ReturnWindow < 2 {
		cfg.ReturnWindow = def.ReturnWindow
	}
	if cfg.WarmupBars < 0 {
		cfg.WarmupBars = 0
	}
	if cfg.VolatilityIndexKey == "" {
		cfg.VolatilityIndexKey = def.VolatilityIndexKey
	}
	if cfg.TrendStrengthKey == "" {
		cfg.TrendStrengthKey = def.TrendStrengthKey
	}
	if cfg.EndOfSeries == "" {
		cfg.EndOfSeries = domain.MarkToMarket
	}
	if cfg.Analytics.PeriodsPerYear <= 0 {
		cfg.Analytics = def.Analytics
	}
	return &Simulator{cfg: cfg}
}

// Backtest runs a single backtest with the default simulator configuration.
func Backtest(ctx context.Context, bars []domain.Bar, forecaster ports.Forecaster, params domain.StrategyParameters) (*BacktestResult, error) {
	return NewSimulator(DefaultConfig()).Run(ctx, bars, forecaster, params)
}

// run holds the mutable state of one backtest. It never escapes Run.
type run struct {
	params     domain.StrategyParameters
	forecaster ports.Forecaster
	capital    float64
	position   *domain.Position
	ledger     []domain.Trade
	equity     []domain.EquityPoint
	unassessed int
}

// Run simulates the strategy over bars. On any error no result is returned.
func (s *Simulator) Run(ctx context.Context, bars []domain.Bar, forecaster ports.Forecaster, params domain.StrategyParameters) (*BacktestResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	if forecaster == nil {
		return nil, fmt.Errorf("%w: forecaster is required", ports.ErrConfigurationError)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars to simulate", ports.ErrInsufficientData)
	}

	r := &run{
		params:     params,
		forecaster: forecaster,
		capital:    params.InitialCapital,
		equity:     make([]domain.EquityPoint, 0, len(bars)),
	}

	for i := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest stopped at bar %d: %w", i, err)
		}
		if err := s.step(ctx, r, bars, i); err != nil {
			return nil, err
		}
	}

	last := bars[len(bars)-1]
	if r.position.IsOpen() && s.cfg.EndOfSeries == domain.ForceClose {
		s.closePosition(ctx, r, last, last.Close, domain.ExitEndOfSeries)
		r.equity[len(r.equity)-1].Capital = r.capital
		r.equity[len(r.equity)-1].Equity = r.capital
	}

	summary := analytics.Analyze(r.ledger, r.equity, params.InitialCapital, s.cfg.Analytics)
	result := &BacktestResult{
		Ledger:            r.ledger,
		EquityCurve:       r.equity,
		DrawdownCurve:     summary.DrawdownCurve,
		Summary:           summary,
		ForecasterVersion: forecaster.Version(),
		Params:            params,
		UnassessedBars:    r.unassessed,
	}
	if r.position.IsOpen() {
		open := *r.position
		result.OpenPosition = &open
	}

	s.cfg.Logger.Info(ctx, "Backtest completed", map[string]interface{}{
		"bars":         len(bars),
		"trades":       len(r.ledger),
		"final_equity": summary.FinalEquity,
		"total_return": summary.TotalReturn,
		"sharpe":       summary.SharpeRatio,
		"max_drawdown": summary.MaxDrawdown,
		"forecaster":   forecaster.Version(),
	})
	return result, nil
}

// step processes bar i. Only bars[:i+1] is ever read.
func (s *Simulator) step(ctx context.Context, r *run, bars []domain.Bar, i int) error {
	bar := bars[i]
	if err := s.validateBar(bars, i); err != nil {
		return err
	}

	assessment, assessed, err := s.assess(bars, i, r)
	if err != nil {
		return err
	}

	// The forecast is computed at most once per bar and only when a rule needs it.
	var forecast float64
	haveForecast := false
	getForecast := func() (float64, error) {
		if haveForecast {
			return forecast, nil
		}
		v, err := r.forecaster.Forecast(ctx, bars[:i+1:i+1])
		if err != nil {
			return 0, &BarError{Index: i, Timestamp: bar.Timestamp, Err: fmt.Errorf("%w: forecaster %s: %w", ports.ErrDataError, r.forecaster.Version(), err)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, barError(i, bar, "forecaster %s returned %v", r.forecaster.Version(), v)
		}
		forecast, haveForecast = v, true
		return v, nil
	}

	closedThisBar := false
	if r.position.IsOpen() {
		exitPrice, reason, exit := checkExits(r.position, bar, r.params.TrailingStopPct)

		if !exit && s.cfg.ExitThresholdPct > 0 {
			f, err := getForecast()
			if err != nil {
				return err
			}
			if f < bar.Close*(1-s.cfg.ExitThresholdPct) {
				exitPrice, reason, exit = bar.Close, domain.ExitForecastReversal, true
			}
		}
		if !exit && s.cfg.ExitOnRiskGate && assessed && !s.cfg.Sizer.Allows(assessment.RiskLevel) {
			exitPrice, reason, exit = bar.Close, domain.ExitRiskGate, true
		}

		if exit {
			s.closePosition(ctx, r, bar, exitPrice, reason)
			closedThisBar = true
		}
	}

	if !r.position.IsOpen() && !closedThisBar && i >= s.cfg.WarmupBars && assessed && s.cfg.Sizer.Allows(assessment.RiskLevel) {
		f, err := getForecast()
		if err != nil {
			return err
		}
		if f > bar.Close*(1+r.params.EntryThresholdPct) {
			s.openPosition(ctx, r, bar, assessment, f)
		}
	}

	value := 0.0
	if r.position.IsOpen() {
		value = r.position.Notional(bar.Close)
	}
	r.equity = append(r.equity, domain.EquityPoint{Time: bar.Timestamp, Capital: r.capital, Equity: r.capital + value})
	return nil
}

func (s *Simulator) validateBar(bars []domain.Bar, i int) error {
	bar := bars[i]
	if !bar.HasValidClose() {
		return barError(i, bar, "invalid close %v", bar.Close)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{{"open", bar.Open}, {"high", bar.High}, {"low", bar.Low}} {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return barError(i, bar, "invalid %s %v", f.name, f.value)
		}
	}
	if bar.High > 0 && bar.Low > 0 && bar.Low > bar.High {
		return barError(i, bar, "low %v above high %v", bar.Low, bar.High)
	}
	if i > 0 && !bar.Timestamp.After(bars[i-1].Timestamp) {
		return barError(i, bar, "timestamp not after previous bar %s", bars[i-1].Timestamp.Format(time.RFC3339))
	}
	if i >= s.cfg.WarmupBars {
		for _, key := range s.cfg.RequiredIndicators {
			v, ok := bar.Indicator(key)
			if !ok {
				return barError(i, bar, "missing indicator %q", key)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return barError(i, bar, "indicator %q is %v", key, v)
			}
		}
	}
	return nil
}

// assess scores the trailing window ending at bar i. Insufficient data is not an error:
// it only means no entry decision can be made on this bar.
func (s *Simulator) assess(bars []domain.Bar, i int, r *run) (domain.RiskAssessment, bool, error) {
	start := i - s.cfg.ReturnWindow
	if start < 0 {
		start = 0
	}
	input := ports.RiskInput{
		Returns:      domain.SimpleReturns(domain.Closes(bars[start : i+1])),
		Conditions:   domain.MarketConditionsFromBar(bars[i], s.cfg.VolatilityIndexKey, s.cfg.TrendStrengthKey),
		TradeReturns: domain.TradeReturns(r.ledger),
	}
	a, err := s.cfg.Scorer.Score(input)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientData) {
			r.unassessed++
			return domain.RiskAssessment{}, false, nil
		}
		return domain.RiskAssessment{}, false, &BarError{Index: i, Timestamp: bars[i].Timestamp, Err: fmt.Errorf("risk scoring: %w", err)}
	}
	return a, true, nil
}

// checkExits applies the stop-loss, take-profit and trailing-stop rules in priority order,
// each against the bar's intrabar extreme. The trailing stop only ever moves up.
func checkExits(pos *domain.Position, bar domain.Bar, trailingPct float64) (float64, domain.ExitReason, bool) {
	if bar.LowOrClose() <= pos.StopLossPrice {
		return pos.StopLossPrice, domain.ExitStopLoss, true
	}
	if bar.HighOrClose() >= pos.TakeProfitPrice {
		return pos.TakeProfitPrice, domain.ExitTakeProfit, true
	}
	if trailingPct > 0 {
		// The level carried into this bar is tested against its low before the close ratchets it.
		if pos.TrailingStopPrice > 0 && bar.LowOrClose() <= pos.TrailingStopPrice {
			return pos.TrailingStopPrice, domain.ExitTrailingStop, true
		}
		if candidate := risk.TrailingStopPrice(bar.Close, trailingPct); candidate > pos.TrailingStopPrice {
			pos.TrailingStopPrice = candidate
		}
	}
	return 0, "", false
}

func (s *Simulator) openPosition(ctx context.Context, r *run, bar domain.Bar, a domain.RiskAssessment, forecast float64) {
	decision := s.cfg.Sizer.Size(risk.SizingInput{
		Capital:         r.capital,
		EntryPrice:      bar.Close,
		MaxRiskPerTrade: r.params.MaxRiskPerTrade,
		StopDistance:    bar.Close * r.params.StopLossPct,
		Assessment:      a,
	})
	if decision.Size <= 0 {
		s.cfg.Logger.Debug(ctx, "Entry signal skipped", map[string]interface{}{
			"time":   bar.Timestamp,
			"reason": decision.Reason,
		})
		return
	}

	r.position = &domain.Position{
		Direction:         domain.Long,
		EntryTime:         bar.Timestamp,
		EntryPrice:        bar.Close,
		Size:              decision.Size,
		StopLossPrice:     risk.StopLossPrice(bar.Close, r.params.StopLossPct),
		TakeProfitPrice:   risk.TakeProfitPrice(bar.Close, r.params.TakeProfitPct),
		TrailingStopPrice: risk.TrailingStopPrice(bar.Close, r.params.TrailingStopPct),
		EquityAtEntry:     r.capital,
		Leverage:          decision.Leverage,
	}
	r.capital -= decision.Size * bar.Close

	s.cfg.Logger.Debug(ctx, "Opened position", map[string]interface{}{
		"time":       bar.Timestamp,
		"price":      bar.Close,
		"size":       decision.Size,
		"forecast":   forecast,
		"risk_level": a.RiskLevel.String(),
	})
}

func (s *Simulator) closePosition(ctx context.Context, r *run, bar domain.Bar, exitPrice float64, reason domain.ExitReason) {
	pos := r.position
	profit := (exitPrice - pos.EntryPrice) * pos.Size
	trade := domain.Trade{
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Timestamp,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Size,
		Profit:     profit,
		ExitReason: reason,
	}
	if pos.EquityAtEntry > 0 {
		trade.Return = profit / pos.EquityAtEntry
	}

	r.capital += pos.Size * exitPrice
	r.ledger = append(r.ledger, trade)
	r.position = nil

	s.cfg.Logger.Debug(ctx, "Closed position", map[string]interface{}{
		"time":   bar.Timestamp,
		"price":  exitPrice,
		"profit": profit,
		"reason": string(reason),
	})
}
