package domain

import "time"

// Trade represents a completed round trip. Trades are immutable once recorded.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Profit     float64    // (ExitPrice - EntryPrice) * Size
	Return     float64    // Profit relative to account equity at entry
	ExitReason ExitReason // Reason why the position was closed
}

// IsWin reports whether the trade made money.
func (t Trade) IsWin() bool {
	return t.Profit > 0
}

// Duration returns how long the position was held.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// TradeReturns extracts per-trade returns from a ledger.
func TradeReturns(trades []Trade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.Return
	}
	return out
}
