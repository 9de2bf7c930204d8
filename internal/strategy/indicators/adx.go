package indicators

import (
	"context"
	"fmt"
	"math"

	"riskBacktester/internal/domain"
)

// ADX implements Wilder's Average Directional Index, a trend-strength measure in [0, 100].
type ADX struct {
	BaseIndicator
}

// NewADX creates a new ADX indicator instance
func NewADX(config IndicatorConfig) *ADX {
	return &ADX{BaseIndicator: BaseIndicator{Config: config}}
}

// Name returns the name of the indicator
func (a *ADX) Name() string {
	return "ADX"
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (a *ADX) RequiredDataPoints() int {
	return 2 * a.Config.Period
}

// Calculate computes the ADX for the last bar.
func (a *ADX) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := a.Config.Period
	if period <= 0 || len(bars) < a.RequiredDataPoints() {
		return 0, fmt.Errorf("not enough data points for ADX calculation: need %d, got %d", a.RequiredDataPoints(), len(bars))
	}

	tr := trueRanges(bars)
	var smTR, smPlus, smMinus float64
	var dxs []float64

	for i := 1; i < len(bars); i++ {
		up := bars[i].HighOrClose() - bars[i-1].HighOrClose()
		down := bars[i-1].LowOrClose() - bars[i].LowOrClose()
		plusDM, minusDM := 0.0, 0.0
		if up > down && up > 0 {
			plusDM = up
		}
		if down > up && down > 0 {
			minusDM = down
		}

		if i <= period {
			smTR += tr[i]
			smPlus += plusDM
			smMinus += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM
			smMinus = smMinus - smMinus/float64(period) + minusDM
		}

		dx := 0.0
		if smTR > 0 {
			plusDI := 100 * smPlus / smTR
			minusDI := 100 * smMinus / smTR
			if sum := plusDI + minusDI; sum > 0 {
				dx = 100 * math.Abs(plusDI-minusDI) / sum
			}
		}
		dxs = append(dxs, dx)
	}

	if len(dxs) < period {
		return 0, fmt.Errorf("not enough directional movement values for ADX: need %d, got %d", period, len(dxs))
	}

	adx := 0.0
	for _, dx := range dxs[:period] {
		adx += dx
	}
	adx /= float64(period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx, nil
}
