package domain

import "time"

// Position is the open position owned by the simulator during a run.
type Position struct {
	Direction         Direction
	EntryTime         time.Time
	EntryPrice        float64
	Size              float64 // Units held
	StopLossPrice     float64
	TakeProfitPrice   float64
	TrailingStopPrice float64 // 0 when trailing is disabled
	EquityAtEntry     float64 // Account equity just before the entry, used for Trade.Return
	Leverage          float64 // Multiplier chosen by the sizer, 1 when leverage is off
}

// IsOpen checks if the position holds any units.
func (p *Position) IsOpen() bool {
	return p != nil && p.Direction != Flat && p.Size > 0
}

// Notional returns the position value at the given price.
func (p *Position) Notional(price float64) float64 {
	if !p.IsOpen() {
		return 0
	}
	return p.Size * price
}
