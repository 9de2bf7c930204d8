package cmd

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/utils"
)

func writeWaveCSV(t *testing.T, n int) string {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100 + 5*math.Sin(float64(i)/6) + float64(i)*0.05
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c * 1.004,
			Low:       c * 0.996,
			Close:     c,
			Volume:    10,
		}
	}
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, utils.WriteBarsToCSV(bars, path))
	return path
}

// resetFlags restores defaults since flag values live in package variables.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBarQueryFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   barQueryFlags
		wantErr bool
	}{
		{name: "csv path wins", flags: barQueryFlags{csvPath: "bars.csv"}},
		{name: "fetch range", flags: barQueryFlags{from: "2024-01-01", to: "2024-02-01"}},
		{name: "missing range", flags: barQueryFlags{from: "2024-01-01"}, wantErr: true},
		{name: "bad start", flags: barQueryFlags{from: "yesterday", to: "2024-02-01"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.flags.query()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.flags.csvPath == "" {
				assert.True(t, q.End.After(q.Start))
			}
		})
	}
}

func TestParamFlagsApply(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	var p paramFlags
	p.bind(c)
	require.NoError(t, c.Flags().Parse([]string{"--stop-loss", "0.03", "--entry-threshold", "0.001"}))

	base := domain.DefaultStrategyParameters()
	base.InitialCapital = 5000
	got := p.apply(c, base)

	assert.Equal(t, 5000.0, got.InitialCapital, "unset flags keep the configured value")
	assert.Equal(t, 0.03, got.StopLossPct)
	assert.Equal(t, 0.001, got.EntryThresholdPct)
	assert.Equal(t, base.TakeProfitPct, got.TakeProfitPct)
}

func TestRunThenAnalyze(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "runs.db"))
	t.Setenv("SYMBOL", "ETHUSDT")
	t.Setenv("LOG_LEVEL", "ERROR")

	bars := writeWaveCSV(t, 200)
	outDir := t.TempDir()

	out, err := execute(t, "run", "--bars", bars, "--out", outDir, "--persist", "--montecarlo")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Backtest ETHUSDT (ma-crossover-8-21-rsi14)")
	assert.Contains(t, out, "Run ID: ")

	tradesFile := filepath.Join(outDir, "trades.csv")
	for _, f := range []string{tradesFile, filepath.Join(outDir, "equity.csv")} {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	out, err = execute(t, "analyze", tradesFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "File: trades.csv")

	out, err = execute(t, "runs")
	require.NoError(t, err, out)
	assert.Contains(t, out, "ETHUSDT")
}

func TestRunRequiresInput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	_, err := execute(t, "run", "--from", "2024-01-01")
	assert.Error(t, err)
}
