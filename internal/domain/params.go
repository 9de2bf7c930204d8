package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParameters is returned by StrategyParameters.Validate.
var ErrInvalidParameters = errors.New("invalid strategy parameters")

// StrategyParameters configure a single backtest run. Percentages are fractions (0.02 = 2%).
type StrategyParameters struct {
	InitialCapital    float64 `json:"initialCapital" yaml:"initial_capital"`
	MaxRiskPerTrade   float64 `json:"maxRiskPerTrade" yaml:"max_risk_per_trade"`
	StopLossPct       float64 `json:"stopLossPct" yaml:"stop_loss_pct"`
	TakeProfitPct     float64 `json:"takeProfitPct" yaml:"take_profit_pct"`
	TrailingStopPct   float64 `json:"trailingStopPct" yaml:"trailing_stop_pct"` // 0 disables trailing
	EntryThresholdPct float64 `json:"entryThresholdPct" yaml:"entry_threshold_pct"`
}

// DefaultStrategyParameters returns a conservative parameter set.
func DefaultStrategyParameters() StrategyParameters {
	return StrategyParameters{
		InitialCapital:    10000,
		MaxRiskPerTrade:   0.02,
		StopLossPct:       0.02,
		TakeProfitPct:     0.04,
		TrailingStopPct:   0.01,
		EntryThresholdPct: 0.005,
	}
}

// Validate checks every field and reports all problems at once.
func (p StrategyParameters) Validate() error {
	var errs []string
	if !(p.InitialCapital > 0) {
		errs = append(errs, "initial capital must be positive")
	}
	if !(p.MaxRiskPerTrade > 0 && p.MaxRiskPerTrade <= 1) {
		errs = append(errs, "max risk per trade must be in (0, 1]")
	}
	if !(p.StopLossPct > 0 && p.StopLossPct < 1) {
		errs = append(errs, "stop loss must be in (0, 1)")
	}
	if !(p.TakeProfitPct > 0) {
		errs = append(errs, "take profit must be positive")
	}
	if !(p.TrailingStopPct >= 0 && p.TrailingStopPct < 1) {
		errs = append(errs, "trailing stop must be in [0, 1)")
	}
	if !(p.EntryThresholdPct >= 0) {
		errs = append(errs, "entry threshold cannot be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(errs, "; "))
	}
	return nil
}
