package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/domain"
)

var testStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func barsFromCloses(start time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: c}
	}
	return bars
}

func TestRSI_Calculate(t *testing.T) {
	tests := []struct {
		name    string
		period  int
		closes  []float64
		want    float64
		wantErr bool
	}{
		// Changes +2,-1,+2,-1,+2: seed gain 4/3 loss 1/3, then two Wilder steps give RS 3.4.
		{name: "wilder smoothing", period: 3, closes: []float64{100, 102, 101, 103, 102, 104}, want: 77.272727},
		{name: "exactly period plus one bars", period: 3, closes: []float64{100, 102, 101, 103}, want: 80},
		{name: "only gains", period: 3, closes: []float64{100, 102, 104, 106}, want: 100},
		{name: "only losses", period: 3, closes: []float64{106, 104, 102, 100}, want: 0},
		{name: "flat", period: 3, closes: []float64{100, 100, 100, 100}, want: 50},
		{name: "period equals bar count", period: 6, closes: []float64{100, 102, 101, 103, 102, 104}, wantErr: true},
		{name: "zero period", period: 0, closes: []float64{100, 101}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}})
			got, err := rsi.Calculate(context.Background(), barsFromCloses(testStart, tt.closes...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-4)
		})
	}
}

func TestRSI_RequiredDataPoints(t *testing.T) {
	rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	assert.Equal(t, 15, rsi.RequiredDataPoints())
	assert.Equal(t, "RSI", rsi.Name())
}

func TestRSI_Thresholds(t *testing.T) {
	rsi := NewRSI(RSIConfig{
		IndicatorConfig: IndicatorConfig{Period: 14},
		Overbought:      70,
		Oversold:        30,
	})

	tests := []struct {
		value      float64
		overbought bool
		oversold   bool
	}{
		{value: 75, overbought: true},
		{value: 70, overbought: true},
		{value: 69.99},
		{value: 30, oversold: true},
		{value: 12, oversold: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.overbought, rsi.IsOverbought(tt.value), "overbought at %v", tt.value)
		assert.Equal(t, tt.oversold, rsi.IsOversold(tt.value), "oversold at %v", tt.value)
	}
}
