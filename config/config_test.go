package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/adapters/logger"
	"riskBacktester/internal/domain"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultStrategyParameters(), cfg.Params)
	assert.Equal(t, 20, cfg.ReturnWindow)
	assert.Equal(t, domain.MarkToMarket, cfg.EndOfSeries)
	assert.Zero(t, cfg.ExitThresholdPct)
	assert.False(t, cfg.ExitOnRiskGate)
	assert.Equal(t, domain.RiskHigh, cfg.Sizer.GateLevel)
	assert.False(t, cfg.Sizer.EnableLeverage)
	assert.Equal(t, 1000, cfg.MonteCarloIterations)
	assert.Equal(t, uint64(1), cfg.MonteCarloSeed)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("INITIAL_CAPITAL", "25000")
	t.Setenv("STOP_LOSS_PCT", "0.03")
	t.Setenv("RISK_GATE_LEVEL", "medium")
	t.Setenv("ENABLE_LEVERAGE", "true")
	t.Setenv("LEVERAGE_CAP", "3")
	t.Setenv("END_OF_SERIES", "force_close")
	t.Setenv("MONTE_CARLO_SEED", "42")
	t.Setenv("EXIT_THRESHOLD_PCT", "0.01")
	t.Setenv("EXIT_ON_RISK_GATE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 25000.0, cfg.Params.InitialCapital)
	assert.Equal(t, 0.03, cfg.Params.StopLossPct)
	assert.Equal(t, domain.RiskMedium, cfg.Sizer.GateLevel)
	assert.True(t, cfg.Sizer.EnableLeverage)
	assert.Equal(t, 3.0, cfg.Sizer.LeverageCap)
	assert.Equal(t, domain.ForceClose, cfg.EndOfSeries)
	assert.Equal(t, uint64(42), cfg.MonteCarloSeed)
	assert.Equal(t, 0.01, cfg.ExitThresholdPct)
	assert.True(t, cfg.ExitOnRiskGate)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unparsable float", key: "MAX_RISK_PER_TRADE", val: "lots"},
		{name: "stop loss out of range", key: "STOP_LOSS_PCT", val: "1.2"},
		{name: "negative capital", key: "INITIAL_CAPITAL", val: "-5"},
		{name: "short return window", key: "RETURN_WINDOW", val: "1"},
		{name: "unknown risk level", key: "RISK_GATE_LEVEL", val: "EXTREME"},
		{name: "unknown end of series", key: "END_OF_SERIES", val: "liquidate"},
		{name: "zero iterations", key: "MONTE_CARLO_ITERATIONS", val: "0"},
		{name: "leverage cap below one", key: "LEVERAGE_CAP", val: "0.5"},
		{name: "negative exit threshold", key: "EXIT_THRESHOLD_PCT", val: "-0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			cfg, err := LoadConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}
