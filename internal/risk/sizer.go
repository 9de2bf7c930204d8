package risk

import (
	"math"

	"riskBacktester/internal/domain"
)

// SizerConfig holds configuration for position sizing.
type SizerConfig struct {
	GateLevel           domain.RiskLevel // No new positions at or above this level
	MaxPositionFraction float64          // Hard notional ceiling as a fraction of capital
	HighVolatility      float64          // Base risk is halved above this annualized volatility
	LowVolatility       float64          // Base risk is boosted below this annualized volatility
	LowVolatilityBoost  float64          // Multiplier applied in low volatility
	MaxRiskBoost        float64          // Upper bound of the boosted base risk, as a multiple of the unboosted one
	UseKelly            bool             // Scale base risk by the clamped Kelly fraction when positive
	EnableLeverage      bool
	TargetVolatility    float64 // Annualized volatility targeted by the leverage multiplier
	LeverageCap         float64
}

// DefaultSizerConfig returns the default sizing policy (leverage and Kelly off).
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		GateLevel:           domain.RiskHigh,
		MaxPositionFraction: 0.10,
		HighVolatility:      0.40,
		LowVolatility:       0.10,
		LowVolatilityBoost:  1.25,
		MaxRiskBoost:        1.5,
		TargetVolatility:    0.15,
		LeverageCap:         2,
	}
}

// SizingInput is what the sizer needs for one entry decision.
type SizingInput struct {
	Capital         float64
	EntryPrice      float64
	MaxRiskPerTrade float64
	StopDistance    float64 // Price units between entry and stop-loss
	Assessment      domain.RiskAssessment
}

// SizingDecision is the sizer's output. Size is always >= 0.
type SizingDecision struct {
	Size     float64
	Leverage float64
	Reason   string // Set when Size is 0
}

// Sizer converts risk budget into a trade size.
type Sizer struct {
	config SizerConfig
}

// NewSizer creates a new sizer instance.
func NewSizer(config SizerConfig) *Sizer {
	if config.LowVolatilityBoost <= 0 {
		config.LowVolatilityBoost = 1
	}
	if config.MaxRiskBoost < 1 {
		config.MaxRiskBoost = 1
	}
	if config.LeverageCap < 1 {
		config.LeverageCap = 1
	}
	return &Sizer{config: config}
}

// GateLevel returns the risk level at which new entries are refused.
func (s *Sizer) GateLevel() domain.RiskLevel {
	return s.config.GateLevel
}

// Allows reports whether a position may be opened at the given risk level.
func (s *Sizer) Allows(level domain.RiskLevel) bool {
	return level < s.config.GateLevel
}

// Size calculates the position size for an entry.
func (s *Sizer) Size(in SizingInput) SizingDecision {
	if !s.Allows(in.Assessment.RiskLevel) {
		return SizingDecision{Reason: "risk level " + in.Assessment.RiskLevel.String() + " at or above gate"}
	}
	if in.Capital <= 0 || in.EntryPrice <= 0 || in.StopDistance <= 0 || in.MaxRiskPerTrade <= 0 {
		return SizingDecision{Reason: "non-positive sizing input"}
	}

	baseRisk := s.BaseRisk(in.Capital, in.MaxRiskPerTrade, in.Assessment)
	if baseRisk <= 0 {
		return SizingDecision{Reason: "no risk budget"}
	}

	leverage := s.LeverageMultiplier(in.Assessment)
	size := baseRisk / in.StopDistance * leverage

	// The position fraction ceiling does not scale with leverage.
	maxNotional := in.Capital * s.config.MaxPositionFraction
	if s.config.MaxPositionFraction > 0 && size*in.EntryPrice > maxNotional {
		size = maxNotional / in.EntryPrice
	}
	// Never spend more cash than is available, whatever the leverage.
	if size*in.EntryPrice > in.Capital {
		size = in.Capital / in.EntryPrice
	}

	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return SizingDecision{Reason: "size rounded to zero"}
	}
	return SizingDecision{Size: size, Leverage: leverage}
}

// BaseRisk is the capital put at risk before converting to units:
// capital * maxRisk, adjusted for volatility and optionally scaled by Kelly.
func (s *Sizer) BaseRisk(capital, maxRisk float64, a domain.RiskAssessment) float64 {
	unadjusted := capital * maxRisk
	base := unadjusted

	switch {
	case s.config.HighVolatility > 0 && a.Volatility > s.config.HighVolatility:
		base *= 0.5
	case s.config.LowVolatility > 0 && a.Volatility < s.config.LowVolatility:
		base = math.Min(base*s.config.LowVolatilityBoost, unadjusted*s.config.MaxRiskBoost)
	}

	if s.config.UseKelly && a.HasKelly && a.KellyFraction > 0 {
		base *= math.Min(a.KellyFraction, 1)
	}
	return base
}

// LeverageMultiplier returns min(target/realized volatility, cap) when leverage is
// enabled and the Sharpe ratio is positive, otherwise 1. It scales the risk-based size.
func (s *Sizer) LeverageMultiplier(a domain.RiskAssessment) float64 {
	if !s.config.EnableLeverage || a.SharpeRatio <= 0 || a.Volatility <= 0 || s.config.TargetVolatility <= 0 {
		return 1
	}
	return math.Min(s.config.TargetVolatility/a.Volatility, s.config.LeverageCap)
}

// StopLossPrice returns the stop-loss level for a long entry.
func StopLossPrice(entryPrice, stopLossPct float64) float64 {
	return entryPrice * (1 - stopLossPct)
}

// TakeProfitPrice returns the take-profit level for a long entry.
func TakeProfitPrice(entryPrice, takeProfitPct float64) float64 {
	return entryPrice * (1 + takeProfitPct)
}

// TrailingStopPrice returns the trailing level for the given reference price, 0 when disabled.
func TrailingStopPrice(price, trailingPct float64) float64 {
	if trailingPct <= 0 {
		return 0
	}
	return price * (1 - trailingPct)
}
