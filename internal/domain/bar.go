package domain

import (
	"math"
	"time"
)

// Bar is one time-ordered observation of an instrument. Open, High and Low are
// optional; a zero value means the field is absent.
type Bar struct {
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Indicators map[string]float64 // Named per-bar indicators, e.g. "rsi", "vix", "adx"
}

// Indicator returns the named indicator value and whether it is present.
func (b Bar) Indicator(name string) (float64, bool) {
	if b.Indicators == nil {
		return 0, false
	}
	v, ok := b.Indicators[name]
	return v, ok
}

// LowOrClose returns Low when present, otherwise Close.
func (b Bar) LowOrClose() float64 {
	if b.Low > 0 {
		return b.Low
	}
	return b.Close
}

// HighOrClose returns High when present, otherwise Close.
func (b Bar) HighOrClose() float64 {
	if b.High > 0 {
		return b.High
	}
	return b.Close
}

// HasValidClose reports whether Close is a finite positive number.
func (b Bar) HasValidClose() bool {
	return b.Close > 0 && !math.IsInf(b.Close, 0) && !math.IsNaN(b.Close)
}

// Closes extracts the close prices from a bar slice.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SimpleReturns converts consecutive prices into simple returns p[i]/p[i-1]-1.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out = append(out, prices[i]/prices[i-1]-1)
	}
	return out
}
