package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"riskBacktester/internal/adapters/logger"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/strategy/analytics"
	"riskBacktester/internal/strategy/backtesting"
)

// Names of the sweepable strategy parameters.
const (
	ParamMaxRiskPerTrade   = "max_risk_per_trade"
	ParamStopLossPct       = "stop_loss_pct"
	ParamTakeProfitPct     = "take_profit_pct"
	ParamTrailingStopPct   = "trailing_stop_pct"
	ParamEntryThresholdPct = "entry_threshold_pct"
)

// ParameterRange defines the values a parameter takes in the sweep: either an
// explicit list or Min..Max in Step increments.
type ParameterRange struct {
	Name   string    `yaml:"name" json:"name"`
	Values []float64 `yaml:"values,omitempty" json:"values,omitempty"`
	Min    float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max    float64   `yaml:"max,omitempty" json:"max,omitempty"`
	Step   float64   `yaml:"step,omitempty" json:"step,omitempty"`
}

// Expand lists the range's values in ascending input order.
func (r ParameterRange) Expand() ([]float64, error) {
	if len(r.Values) > 0 {
		return r.Values, nil
	}
	if r.Step <= 0 || r.Max < r.Min {
		return nil, fmt.Errorf("range %s needs values or min <= max with a positive step", r.Name)
	}
	var values []float64
	for i := 0; ; i++ {
		v := r.Min + float64(i)*r.Step
		if v > r.Max+r.Step/2 {
			break
		}
		// Trim float noise so that 0.1+0.2 style steps print and compare cleanly
		values = append(values, math.Round(v*1e10)/1e10)
	}
	return values, nil
}

// OptimizationResult holds the result of one parameter combination
type OptimizationResult struct {
	Index      int // Position in the combination order, used for stable ranking
	Parameters domain.StrategyParameters
	Values     map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Simulator     *backtesting.Simulator
	Concurrency   int // <= 0 uses GOMAXPROCS
	ScoreFunction func(*analytics.PerformanceMetrics) float64
	Logger        ports.Logger
}

// Optimizer runs independent backtests over a parameter grid in parallel.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.Simulator == nil {
		config.Simulator = backtesting.NewSimulator(backtesting.DefaultConfig())
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Logger == nil {
		config.Logger = logger.Nop{}
	}
	return &Optimizer{config: config}
}

// Optimize backtests every valid combination of grid and returns the results
// ranked by score, best first. Invalid combinations are skipped. The forecaster is
// shared by all runs and must be safe for concurrent use.
// On cancellation no new runs are launched and the context error is returned.
func (o *Optimizer) Optimize(ctx context.Context, bars []domain.Bar, forecaster ports.Forecaster, grid Grid) ([]OptimizationResult, error) {
	combinations, err := grid.Combinations()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}

	var (
		mu      sync.Mutex
		results = make([]OptimizationResult, 0, len(combinations))
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)

	for idx, values := range combinations {
		params, err := grid.Apply(values)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
		}
		if err := params.Validate(); err != nil {
			skipped++
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := o.config.Simulator.Run(gctx, bars, forecaster, params)
			if err != nil {
				return fmt.Errorf("combination %d %v: %w", idx, values, err)
			}

			mu.Lock()
			results = append(results, OptimizationResult{
				Index:      idx,
				Parameters: params,
				Values:     values,
				Metrics:    result.Summary,
				Score:      o.config.ScoreFunction(result.Summary),
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parameter sweep stopped: %w", err)
	}

	sortResultsByScore(results)

	o.config.Logger.Info(ctx, "Parameter sweep completed", map[string]interface{}{
		"combinations": len(combinations),
		"evaluated":    len(results),
		"skipped":      skipped,
	})
	return results, nil
}

// sortResultsByScore sorts results by score descending, ties broken by combination order.
// NaN scores rank last.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Score, results[j].Score
		if math.IsNaN(si) != math.IsNaN(sj) {
			return !math.IsNaN(si)
		}
		if si != sj {
			return si > sj
		}
		return results[i].Index < results[j].Index
	})
}

// DefaultScoreFunction ranks runs by Sharpe ratio.
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	return metrics.SharpeRatio
}

// ReturnOverDrawdownScore ranks runs by total return per unit of max drawdown.
func ReturnOverDrawdownScore(metrics *analytics.PerformanceMetrics) float64 {
	if metrics.MaxDrawdown == 0 {
		return metrics.TotalReturn
	}
	return metrics.TotalReturn / metrics.MaxDrawdown
}
