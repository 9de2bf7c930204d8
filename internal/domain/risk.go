package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is an ordered classification of the current risk score.
type RiskLevel int

const (
	RiskVeryLow RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskVeryHigh
)

// String returns the string representation of the RiskLevel.
func (l RiskLevel) String() string {
	switch l {
	case RiskVeryLow:
		return "VERY_LOW"
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskVeryHigh:
		return "VERY_HIGH"
	default:
		return "UNKNOWN"
	}
}

// ParseRiskLevel converts a string level to RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case "VERY_LOW":
		return RiskVeryLow, nil
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	case "VERY_HIGH":
		return RiskVeryHigh, nil
	default:
		return RiskVeryLow, fmt.Errorf("unknown risk level %q", s)
	}
}

// MarketConditions carries optional external inputs to the risk score.
// An input only contributes when its Has flag is set.
type MarketConditions struct {
	VolatilityIndex    float64 // e.g. VIX
	TrendStrength      float64 // e.g. ADX
	HasVolatilityIndex bool
	HasTrendStrength   bool
}

// MarketConditionsFromBar reads the named indicators from a bar.
// Returns nil when the bar carries neither.
func MarketConditionsFromBar(b Bar, volatilityIndexKey, trendStrengthKey string) *MarketConditions {
	vix, hasVix := b.Indicator(volatilityIndexKey)
	adx, hasADX := b.Indicator(trendStrengthKey)
	if !hasVix && !hasADX {
		return nil
	}
	return &MarketConditions{
		VolatilityIndex:    vix,
		TrendStrength:      adx,
		HasVolatilityIndex: hasVix,
		HasTrendStrength:   hasADX,
	}
}

// RiskAssessment is recomputed every step and never persisted.
type RiskAssessment struct {
	Volatility     float64 // Annualized
	ValueAtRisk    float64 // 95% historical, positive number = loss
	ConditionalVaR float64 // Mean loss beyond the VaR cutoff
	SharpeRatio    float64 // Annualized
	KellyFraction  float64 // 0 when unknown
	HasKelly       bool
	RiskScore      int
	RiskLevel      RiskLevel
}
