package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
)

func bars(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: c}
	}
	return out
}

func TestFunc_Forecast(t *testing.T) {
	f := Constant(101)
	v, err := f.Forecast(context.Background(), bars(100))
	require.NoError(t, err)
	assert.Equal(t, 101.0, v)
	assert.Equal(t, "constant-101", f.Version())
}

func TestLinearTrend(t *testing.T) {
	lt, err := NewLinearTrend(4, 1)
	require.NoError(t, err)

	v, err := lt.Forecast(context.Background(), bars(100, 101, 102, 103))
	require.NoError(t, err)
	assert.InDelta(t, 104.0, v, 1e-9)

	// Not enough history: forecast equals the last close.
	v, err = lt.Forecast(context.Background(), bars(100, 101))
	require.NoError(t, err)
	assert.Equal(t, 101.0, v)

	_, err = lt.Forecast(context.Background(), nil)
	assert.ErrorIs(t, err, ports.ErrInsufficientData)

	_, err = NewLinearTrend(1, 1)
	assert.Error(t, err)
}

func TestDrift(t *testing.T) {
	d, err := NewDrift(2)
	require.NoError(t, err)

	// returns over the last two steps: +10%, -10% -> mean 0
	v, err := d.Forecast(context.Background(), bars(50, 100, 110, 99))
	require.NoError(t, err)
	assert.InDelta(t, 99.0, v, 1e-9)
}

func TestMACrossover(t *testing.T) {
	_, err := NewMACrossover(MACrossoverConfig{FastMAPeriod: 5, SlowMAPeriod: 3})
	assert.Error(t, err)

	m, err := NewMACrossover(MACrossoverConfig{FastMAPeriod: 2, SlowMAPeriod: 4})
	require.NoError(t, err)
	assert.Equal(t, "ma-crossover-2-4-rsi0", m.Version())

	up, err := m.Forecast(context.Background(), bars(100, 102, 104, 106, 108))
	require.NoError(t, err)
	assert.Greater(t, up, 108.0)

	down, err := m.Forecast(context.Background(), bars(108, 106, 104, 102, 100))
	require.NoError(t, err)
	assert.Less(t, down, 100.0)

	warm, err := m.Forecast(context.Background(), bars(100, 102))
	require.NoError(t, err)
	assert.Equal(t, 102.0, warm)
}

func TestMACrossover_OverboughtFlattens(t *testing.T) {
	m, err := NewMACrossover(MACrossoverConfig{FastMAPeriod: 2, SlowMAPeriod: 4, RSIPeriod: 3, RSIOverbought: 70})
	require.NoError(t, err)

	// Straight rally -> RSI 100 -> bullish forecast suppressed.
	v, err := m.Forecast(context.Background(), bars(100, 102, 104, 106, 108))
	require.NoError(t, err)
	assert.Equal(t, 108.0, v)
}
