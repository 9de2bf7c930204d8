package risk

import (
	"fmt"
	"math"
	"sort"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
)

const (
	// TradingPeriodsPerYear annualizes per-bar statistics.
	TradingPeriodsPerYear = 252
	// DefaultRiskFreeRate is the annual risk-free rate used by Sharpe.
	DefaultRiskFreeRate = 0.02
	// DefaultConfidence is the VaR confidence level.
	DefaultConfidence = 0.95
)

// ScorerConfig holds the thresholds that turn raw statistics into risk points.
// Each threshold adds points only when crossed, so the score is monotonic in every input.
type ScorerConfig struct {
	RiskFreeRate   float64 // Annual
	PeriodsPerYear float64
	Confidence     float64

	HighVolatility     float64 // +2 points above
	ElevatedVolatility float64 // +1 point above
	HighVaR            float64 // +2 points above
	ElevatedVaR        float64 // +1 point above
	PoorSharpe         float64 // +1 point below; a negative Sharpe adds 2

	VolatilityIndexThreshold float64 // +1 point above, only when market conditions are given
	TrendStrengthThreshold   float64 // +1 point below, only when market conditions are given
}

// DefaultScorerConfig returns the documented default policy.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		RiskFreeRate:             DefaultRiskFreeRate,
		PeriodsPerYear:           TradingPeriodsPerYear,
		Confidence:               DefaultConfidence,
		HighVolatility:           0.40,
		ElevatedVolatility:       0.20,
		HighVaR:                  0.03,
		ElevatedVaR:              0.015,
		PoorSharpe:               1.0,
		VolatilityIndexThreshold: 25,
		TrendStrengthThreshold:   20,
	}
}

// Scorer computes volatility, VaR, CVaR, Sharpe and Kelly and maps them to a RiskLevel.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer. Zero-valued fields fall back to the defaults.
func NewScorer(config ScorerConfig) *Scorer {
	def := DefaultScorerConfig()
	if config.PeriodsPerYear <= 0 {
		config.PeriodsPerYear = def.PeriodsPerYear
	}
	if config.Confidence <= 0 || config.Confidence >= 1 {
		config.Confidence = def.Confidence
	}
	return &Scorer{config: config}
}

var _ ports.RiskScorer = (*Scorer)(nil)

// Score assesses a window of per-bar simple returns.
// Returns a wrapped ports.ErrInsufficientData when fewer than two returns are given
// or the window has zero variance.
func (s *Scorer) Score(in ports.RiskInput) (domain.RiskAssessment, error) {
	n := len(in.Returns)
	if n < 2 {
		return domain.RiskAssessment{}, fmt.Errorf("%w: need at least 2 returns, got %d", ports.ErrInsufficientData, n)
	}
	for i, r := range in.Returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return domain.RiskAssessment{}, fmt.Errorf("%w: non-finite return at position %d", ports.ErrInsufficientData, i)
		}
	}

	mean, stdev := MeanStdDev(in.Returns)
	if stdev == 0 {
		return domain.RiskAssessment{}, fmt.Errorf("%w: zero variance over %d returns", ports.ErrInsufficientData, n)
	}

	annualizer := math.Sqrt(s.config.PeriodsPerYear)
	valueAtRisk, cvar := HistoricalVaR(in.Returns, s.config.Confidence)

	a := domain.RiskAssessment{
		Volatility:     stdev * annualizer,
		ValueAtRisk:    valueAtRisk,
		ConditionalVaR: cvar,
		SharpeRatio:    (mean - s.config.RiskFreeRate/s.config.PeriodsPerYear) / stdev * annualizer,
	}
	if k, ok := KellyFraction(in.TradeReturns); ok {
		a.KellyFraction = k
		a.HasKelly = true
	}

	a.RiskScore = s.points(a, in.Conditions)
	a.RiskLevel = LevelForScore(a.RiskScore)
	return a, nil
}

func (s *Scorer) points(a domain.RiskAssessment, cond *domain.MarketConditions) int {
	score := 0
	switch {
	case a.Volatility > s.config.HighVolatility:
		score += 2
	case a.Volatility > s.config.ElevatedVolatility:
		score++
	}
	switch {
	case a.ValueAtRisk > s.config.HighVaR:
		score += 2
	case a.ValueAtRisk > s.config.ElevatedVaR:
		score++
	}
	switch {
	case a.SharpeRatio < 0:
		score += 2
	case a.SharpeRatio < s.config.PoorSharpe:
		score++
	}
	if cond != nil {
		if cond.HasVolatilityIndex && cond.VolatilityIndex > s.config.VolatilityIndexThreshold {
			score++
		}
		if cond.HasTrendStrength && cond.TrendStrength < s.config.TrendStrengthThreshold {
			score++
		}
	}
	return score
}

// LevelForScore maps an additive risk score to a RiskLevel:
// 0-1 VeryLow, 2-3 Low, 4-5 Medium, 6-7 High, 8+ VeryHigh.
func LevelForScore(score int) domain.RiskLevel {
	switch {
	case score <= 1:
		return domain.RiskVeryLow
	case score <= 3:
		return domain.RiskLow
	case score <= 5:
		return domain.RiskMedium
	case score <= 7:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

// MeanStdDev returns the mean and the population standard deviation (divisor n).
func MeanStdDev(values []float64) (mean, stdev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// HistoricalVaR returns the historical-simulation VaR and CVaR at the given confidence.
// The cutoff is index floor((1-confidence)*n) of the ascending returns; both values are
// negated so that a loss is positive.
func HistoricalVaR(returns []float64, confidence float64) (valueAtRisk, cvar float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	var tail float64
	for _, r := range sorted[:idx+1] {
		tail += r
	}
	return -sorted[idx], -tail / float64(idx+1)
}

// KellyFraction computes winRate - (1-winRate)/(avgWin/avgLoss) over realized trade returns.
// ok is false when there are no wins or no losses, in which case the ratio is undefined.
// The result may be negative; callers clamp it.
func KellyFraction(tradeReturns []float64) (kelly float64, ok bool) {
	var wins, losses int
	var sumWin, sumLoss float64
	for _, r := range tradeReturns {
		switch {
		case r > 0:
			wins++
			sumWin += r
		case r < 0:
			losses++
			sumLoss += -r
		}
	}
	if wins == 0 || losses == 0 {
		return 0, false
	}
	winRate := float64(wins) / float64(len(tradeReturns))
	payoff := (sumWin / float64(wins)) / (sumLoss / float64(losses))
	return winRate - (1-winRate)/payoff, true
}
