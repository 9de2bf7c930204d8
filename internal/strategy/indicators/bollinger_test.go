package indicators

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBollinger_Calculate(t *testing.T) {
	// Last five closes are 1..5: mean 3, population deviation sqrt(2).
	bars := barsFromCloses(testStart, 50, 1, 2, 3, 4, 5)

	tests := []struct {
		name string
		band BollingerBand
		want float64
	}{
		{name: "upper", band: BollingerUpper, want: 3 + 2*math.Sqrt2},
		{name: "middle", band: BollingerMiddle, want: 3},
		{name: "lower", band: BollingerLower, want: 3 - 2*math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bb := NewBollinger(BollingerConfig{IndicatorConfig: IndicatorConfig{Period: 5}, Band: tt.band})
			got, err := bb.Calculate(context.Background(), bars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestBollinger_FlatSeriesCollapses(t *testing.T) {
	bars := barsFromCloses(testStart, 100, 100, 100, 100)
	bb := NewBollinger(BollingerConfig{IndicatorConfig: IndicatorConfig{Period: 4}, Width: 3, Band: BollingerUpper})

	got, err := bb.Calculate(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	_, err = bb.Calculate(context.Background(), bars[:3])
	assert.Error(t, err)
	assert.Equal(t, 4, bb.RequiredDataPoints())
}
