package domain

import "time"

// EquityPoint is the account state after processing one bar.
type EquityPoint struct {
	Time    time.Time
	Capital float64 // Cash not tied up in the position
	Equity  float64 // Capital plus mark-to-market value of the open position
}

// DrawdownPoint is the fractional decline from the running equity peak.
type DrawdownPoint struct {
	Time     time.Time
	Drawdown float64 // Always in [0, 1]
}

// Equities extracts the equity values from an equity curve.
func Equities(curve []EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Equity
	}
	return out
}
