package utils

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
)

func TestReadBars(t *testing.T) {
	input := `timestamp,open,high,low,close,volume,vix,adx
2024-01-01T00:00:00Z,100,101,99,100.5,10,18.5,
2024-01-01T01:00:00Z,100.5,102,100,101.5,12,,25
`
	bars, err := ReadBars(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 99.0, bars[0].Low)

	vix, ok := bars[0].Indicator("vix")
	assert.True(t, ok)
	assert.Equal(t, 18.5, vix)
	_, ok = bars[0].Indicator("adx")
	assert.False(t, ok)

	adx, ok := bars[1].Indicator("adx")
	assert.True(t, ok)
	assert.Equal(t, 25.0, adx)
}

func TestReadBars_CloseOnlyWithEpochMillis(t *testing.T) {
	bars, err := ReadBars(strings.NewReader("open_time,close,symbol\n1704067200000,42000,BTCUSDT\n"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 42000.0, bars[0].Close)
	assert.Zero(t, bars[0].High)
	assert.Nil(t, bars[0].Indicators)
}

func TestReadBars_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty file", input: "", wantErr: ports.ErrInsufficientData},
		{name: "header only", input: "timestamp,close\n", wantErr: ports.ErrInsufficientData},
		{name: "missing close", input: "timestamp,open\n2024-01-01,1\n", wantErr: ports.ErrDataError},
		{name: "missing timestamp", input: "close\n1\n", wantErr: ports.ErrDataError},
		{name: "bad number", input: "timestamp,close\n2024-01-01,abc\n", wantErr: ports.ErrDataError},
		{name: "bad timestamp", input: "timestamp,close\nyesterday,1\n", wantErr: ports.ErrDataError},
		{name: "ragged row", input: "timestamp,close\n2024-01-01,1,2\n", wantErr: ports.ErrDataError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBars(strings.NewReader(tt.input))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestBarsCSVRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		{Timestamp: at, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, Indicators: map[string]float64{"rsi_14": 55}},
		{Timestamp: at.Add(time.Hour), Close: 1.6},
	}
	path := filepath.Join(t.TempDir(), "out", "bars.csv")
	require.NoError(t, WriteBarsToCSV(bars, path))

	got, err := ReadBarsFromCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, bars[0], got[0])
	assert.Equal(t, bars[1].Close, got[1].Close)
	assert.Nil(t, got[1].Indicators)
}

func TestTradesCSVRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		{EntryTime: at, ExitTime: at.Add(3 * time.Hour), EntryPrice: 100, ExitPrice: 96, Size: 10, Profit: -40, Return: -0.004, ExitReason: domain.ExitStopLoss},
	}
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, WriteTradesToCSV(trades, path))

	got, err := ReadTradesFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, trades, got)
}

func TestWriteEquityToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")
	require.NoError(t, WriteEquityToCSV([]domain.EquityPoint{{Time: time.Unix(0, 0).UTC(), Capital: 1, Equity: 2}}, path))

	_, err := ReadTradesFromCSV(path)
	assert.True(t, errors.Is(err, ports.ErrDataError))
}
