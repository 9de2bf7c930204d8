package domain

import "fmt"

// Direction is the side of a position. The simulator only opens Long positions;
// Short is reserved so extensions don't need to change the type.
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitStopLoss         ExitReason = "STOP_LOSS"
	ExitTakeProfit       ExitReason = "TAKE_PROFIT"
	ExitTrailingStop     ExitReason = "TRAILING_STOP"
	ExitForecastReversal ExitReason = "FORECAST_REVERSAL" // Forecast fell below the exit threshold
	ExitRiskGate         ExitReason = "RISK_GATE"         // Risk level reached the gate while open
	ExitEndOfSeries      ExitReason = "END_OF_SERIES"     // Forced close on the last bar
)

// EndOfSeriesPolicy controls what happens to a position still open after the last bar.
type EndOfSeriesPolicy string

const (
	// MarkToMarket leaves the position open; its value is reflected in the final equity point.
	MarkToMarket EndOfSeriesPolicy = "mark_to_market"
	// ForceClose closes the position at the last close with ExitEndOfSeries.
	ForceClose EndOfSeriesPolicy = "force_close"
)

// ParseEndOfSeriesPolicy converts a string to an EndOfSeriesPolicy.
// An empty string maps to MarkToMarket.
func ParseEndOfSeriesPolicy(s string) (EndOfSeriesPolicy, error) {
	switch EndOfSeriesPolicy(s) {
	case "", MarkToMarket:
		return MarkToMarket, nil
	case ForceClose:
		return ForceClose, nil
	default:
		return "", fmt.Errorf("unknown end-of-series policy %q", s)
	}
}
