package strategies

import (
	"context"
	"fmt"
	"math"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
)

// ForecastFunc is the plain-function form of a forecaster.
type ForecastFunc func(ctx context.Context, window []domain.Bar) (float64, error)

// Func adapts a ForecastFunc into a versioned ports.Forecaster.
type Func struct {
	version string
	fn      ForecastFunc
}

// NewFunc wraps fn under the given version label.
func NewFunc(version string, fn ForecastFunc) *Func {
	return &Func{version: version, fn: fn}
}

// Constant returns a forecaster that always predicts price. Useful for fixtures.
func Constant(price float64) *Func {
	return NewFunc(fmt.Sprintf("constant-%g", price), func(context.Context, []domain.Bar) (float64, error) {
		return price, nil
	})
}

// Forecast implements ports.Forecaster.
func (f *Func) Forecast(ctx context.Context, window []domain.Bar) (float64, error) {
	return f.fn(ctx, window)
}

// Version implements ports.Forecaster.
func (f *Func) Version() string {
	return f.version
}

var _ ports.Forecaster = (*Func)(nil)

// lastClose returns the close of the final bar in the window.
func lastClose(window []domain.Bar) (float64, error) {
	if len(window) == 0 {
		return 0, fmt.Errorf("%w: empty forecast window", ports.ErrInsufficientData)
	}
	c := window[len(window)-1].Close
	if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, fmt.Errorf("%w: invalid close %v", ports.ErrDataError, c)
	}
	return c, nil
}
