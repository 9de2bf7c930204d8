package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riskBacktester/config"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/risk"
	"riskBacktester/internal/strategy"
	"riskBacktester/internal/strategy/backtesting"
	"riskBacktester/internal/strategy/indicators"
	"riskBacktester/internal/strategy/montecarlo"
	"riskBacktester/internal/strategy/optimization"
	"riskBacktester/internal/utils"
)

// BacktestService orchestrates data loading, simulation, resampling and persistence.
type BacktestService struct {
	cfg    *config.Config
	logger ports.Logger
	repo   ports.ResultRepository // Optional; runs are not persisted without it
	source ports.BarSource        // Optional; only CSV input works without it
	scorer ports.RiskScorer
}

// NewBacktestService creates a new application service instance.
func NewBacktestService(cfg *config.Config, logger ports.Logger, repo ports.ResultRepository, source ports.BarSource) (*BacktestService, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for BacktestService")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	return &BacktestService{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		source: source,
		scorer: risk.NewScorer(risk.DefaultScorerConfig()),
	}, nil
}

// BarQuery selects the input series: a CSV file, or a symbol range from the bar source.
type BarQuery struct {
	CSVPath  string
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}

// LoadBars reads bars from CSV when a path is given, otherwise from the bar source.
func (s *BacktestService) LoadBars(ctx context.Context, q BarQuery) ([]domain.Bar, error) {
	if q.CSVPath != "" {
		bars, err := utils.ReadBarsFromCSV(q.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load bars from %s: %w", q.CSVPath, err)
		}
		s.logger.Info(ctx, "Loaded bars", map[string]interface{}{"path": q.CSVPath, "count": len(bars)})
		return bars, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("%w: no CSV path given and no bar source configured", ports.ErrConfigurationError)
	}
	symbol, interval := q.Symbol, q.Interval
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	if interval == "" {
		interval = s.cfg.Interval
	}
	bars, err := s.source.GetBars(ctx, symbol, interval, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
	}
	s.logger.Info(ctx, "Fetched bars", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(bars)})
	return bars, nil
}

// BacktestRequest describes one backtest run.
type BacktestRequest struct {
	Symbol           string
	Bars             []domain.Bar
	Forecaster       strategy.Config
	Model            ports.Forecaster           // When set, used instead of Forecaster
	Params           *domain.StrategyParameters // nil uses the configured parameters
	AttachIndicators bool                       // Compute the default indicator feed before simulating
	MonteCarlo       bool
	Persist          bool
}

// MonteCarloReport is the resampled distribution of total returns.
type MonteCarloReport struct {
	Iterations int
	Seed       uint64
	Histogram  []montecarlo.Bin
	Stats      montecarlo.Stats
}

// BacktestReport bundles a run's outputs.
type BacktestReport struct {
	RunID      string // Empty when the run was not persisted
	Symbol     string
	Result     *backtesting.BacktestResult
	MonteCarlo *MonteCarloReport // nil when not requested or there were no trades
}

// RunBacktest simulates the request and optionally resamples and persists the result.
func (s *BacktestService) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestReport, error) {
	if req.Persist && s.repo == nil {
		return nil, fmt.Errorf("%w: persistence requested without a result repository", ports.ErrConfigurationError)
	}

	params := s.cfg.Params
	if req.Params != nil {
		params = *req.Params
	}

	forecaster := req.Model
	if forecaster == nil {
		var err error
		if forecaster, err = newForecaster(req.Forecaster); err != nil {
			return nil, err
		}
	}

	bars, simCfg, err := s.prepare(ctx, req.Bars, req.AttachIndicators)
	if err != nil {
		return nil, err
	}

	result, err := backtesting.NewSimulator(simCfg).Run(ctx, bars, forecaster, params)
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed", map[string]interface{}{"symbol": req.Symbol})
		return nil, err
	}

	report := &BacktestReport{Symbol: req.Symbol, Result: result}

	if req.MonteCarlo {
		mc, err := s.RunMonteCarlo(ctx, domain.TradeReturns(result.Ledger), 0, nil)
		switch {
		case errors.Is(err, ports.ErrInsufficientData):
			s.logger.Debug(ctx, "Skipping Monte Carlo, no trades")
		case err != nil:
			return nil, err
		default:
			report.MonteCarlo = mc
		}
	}

	if req.Persist {
		id, err := s.repo.SaveRun(ctx, runRecord(req.Symbol, result), result.Ledger, result.EquityCurve)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to save backtest run")
			return nil, fmt.Errorf("failed to save backtest run: %w", err)
		}
		report.RunID = id
	}

	s.logger.Info(ctx, "Backtest run finished", map[string]interface{}{
		"runID":       report.RunID,
		"symbol":      req.Symbol,
		"forecaster":  result.ForecasterVersion,
		"trades":      result.Summary.TotalTrades,
		"finalEquity": result.Summary.FinalEquity,
		"sharpe":      result.Summary.SharpeRatio,
	})
	return report, nil
}

// RunMonteCarlo resamples per-trade returns. iterations <= 0 and a nil seed use the configured values.
func (s *BacktestService) RunMonteCarlo(ctx context.Context, returns []float64, iterations int, seed *uint64) (*MonteCarloReport, error) {
	mcCfg := montecarlo.DefaultConfig()
	mcCfg.Iterations = s.cfg.MonteCarloIterations
	mcCfg.Seed = s.cfg.MonteCarloSeed
	if iterations > 0 {
		mcCfg.Iterations = iterations
	}
	if seed != nil {
		mcCfg.Seed = *seed
	}

	outcomes, err := montecarlo.Outcomes(ctx, returns, mcCfg)
	if err != nil {
		return nil, err
	}
	return &MonteCarloReport{
		Iterations: mcCfg.Iterations,
		Seed:       mcCfg.Seed,
		Histogram:  montecarlo.Histogram(outcomes, mcCfg.BinWidth),
		Stats:      montecarlo.Summarize(outcomes),
	}, nil
}

// Sweep backtests every combination of grid and returns the ranked results.
func (s *BacktestService) Sweep(ctx context.Context, bars []domain.Bar, forecasterCfg strategy.Config, grid optimization.Grid, attachIndicators bool) ([]optimization.OptimizationResult, error) {
	forecaster, err := newForecaster(forecasterCfg)
	if err != nil {
		return nil, err
	}
	bars, simCfg, err := s.prepare(ctx, bars, attachIndicators)
	if err != nil {
		return nil, err
	}
	optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
		Simulator: backtesting.NewSimulator(simCfg),
		Logger:    s.logger,
	})
	return optimizer.Optimize(ctx, bars, forecaster, grid)
}

// RunDetails is a persisted run with its ledger and equity curve.
type RunDetails struct {
	Run    *ports.RunRecord
	Trades []domain.Trade
	Equity []domain.EquityPoint
}

// GetRun loads a persisted run. Returns ports.ErrNotFound for unknown IDs.
func (s *BacktestService) GetRun(ctx context.Context, id string) (*RunDetails, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: no result repository configured", ports.ErrConfigurationError)
	}
	run, err := s.repo.FindRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	trades, err := s.repo.FindTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	equity, err := s.repo.FindEquity(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetails{Run: run, Trades: trades, Equity: equity}, nil
}

// ListRuns returns the most recent persisted runs.
func (s *BacktestService) ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: no result repository configured", ports.ErrConfigurationError)
	}
	return s.repo.ListRuns(ctx, limit)
}

// prepare optionally attaches the default indicator feed and builds the matching simulator config.
func (s *BacktestService) prepare(ctx context.Context, bars []domain.Bar, attach bool) ([]domain.Bar, backtesting.Config, error) {
	simCfg := backtesting.DefaultConfig()
	simCfg.Scorer = s.scorer
	simCfg.Sizer = risk.NewSizer(s.cfg.Sizer)
	simCfg.Logger = s.logger
	simCfg.ReturnWindow = s.cfg.ReturnWindow
	simCfg.EndOfSeries = s.cfg.EndOfSeries
	simCfg.ExitThresholdPct = s.cfg.ExitThresholdPct
	simCfg.ExitOnRiskGate = s.cfg.ExitOnRiskGate

	if !attach || len(bars) == 0 {
		return bars, simCfg, nil
	}

	feed := indicators.DefaultFeed()
	enriched, err := feed.Attach(ctx, bars)
	if err != nil {
		return nil, simCfg, err
	}
	simCfg.WarmupBars = max(simCfg.WarmupBars, feed.Warmup())
	simCfg.RequiredIndicators = feed.Keys()
	return enriched, simCfg, nil
}

// newForecaster builds cfg, with the zero value meaning the default forecaster.
func newForecaster(cfg strategy.Config) (ports.Forecaster, error) {
	if cfg == (strategy.Config{}) {
		cfg = strategy.DefaultConfig()
	}
	return strategy.New(cfg)
}

func runRecord(symbol string, result *backtesting.BacktestResult) *ports.RunRecord {
	m := result.Summary
	return &ports.RunRecord{
		Symbol:            symbol,
		ForecasterVersion: result.ForecasterVersion,
		Params:            result.Params,
		TotalTrades:       m.TotalTrades,
		FinalEquity:       m.FinalEquity,
		TotalReturn:       m.TotalReturn,
		WinRate:           m.WinRate,
		ProfitFactor:      m.ProfitFactor,
		Expectancy:        m.Expectancy,
		SharpeRatio:       m.SharpeRatio,
		SortinoRatio:      m.SortinoRatio,
		MaxDrawdown:       m.MaxDrawdown,
	}
}
