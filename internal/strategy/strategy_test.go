package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/ports"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantVersion string
		wantErr     bool
	}{
		{name: "default is ma crossover", wantVersion: "ma-crossover-8-21-rsi14"},
		{name: "empty kind falls back to ma crossover", mutate: func(c *Config) { c.Kind = "" }, wantVersion: "ma-crossover-8-21-rsi14"},
		{name: "linear trend", mutate: func(c *Config) { c.Kind = KindLinearTrend }, wantVersion: "linear-trend-20-h1"},
		{name: "drift", mutate: func(c *Config) { c.Kind = "DRIFT" }, wantVersion: "drift-20"},
		{name: "unknown kind", mutate: func(c *Config) { c.Kind = "lstm" }, wantErr: true},
		{name: "invalid periods", mutate: func(c *Config) { c.FastMAPeriod = 30 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			f, err := New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, f.Version())
		})
	}
}
