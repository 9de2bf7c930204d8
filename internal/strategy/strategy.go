package strategy

import (
	"fmt"
	"strings"

	"riskBacktester/internal/ports"
	"riskBacktester/internal/strategy/strategies"
)

// Forecaster kinds understood by New.
const (
	KindMACrossover = "ma_crossover"
	KindLinearTrend = "linear_trend"
	KindDrift       = "drift"
)

// Config holds parameters for the reference forecasters.
type Config struct {
	Kind          string  `yaml:"kind" json:"kind"`
	FastMAPeriod  int     `yaml:"fast_ma_period" json:"fastMaPeriod"`
	SlowMAPeriod  int     `yaml:"slow_ma_period" json:"slowMaPeriod"`
	RSIPeriod     int     `yaml:"rsi_period" json:"rsiPeriod"` // 0 disables the overbought filter
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsiOverbought"`
	Lookback      int     `yaml:"lookback" json:"lookback"` // linear_trend and drift
	Horizon       int     `yaml:"horizon" json:"horizon"`
}

// DefaultConfig returns an MA crossover configuration.
func DefaultConfig() Config {
	return Config{
		Kind:          KindMACrossover,
		FastMAPeriod:  8,
		SlowMAPeriod:  21,
		RSIPeriod:     14,
		RSIOverbought: 70,
		Lookback:      20,
		Horizon:       1,
	}
}

// New builds the forecaster described by cfg. All reference forecasters are
// stateless and safe to share across parallel runs.
func New(cfg Config) (ports.Forecaster, error) {
	var (
		f   ports.Forecaster
		err error
	)
	switch strings.ToLower(cfg.Kind) {
	case "", KindMACrossover:
		f, err = strategies.NewMACrossover(strategies.MACrossoverConfig{
			FastMAPeriod:  cfg.FastMAPeriod,
			SlowMAPeriod:  cfg.SlowMAPeriod,
			RSIPeriod:     cfg.RSIPeriod,
			RSIOverbought: cfg.RSIOverbought,
		})
	case KindLinearTrend:
		f, err = strategies.NewLinearTrend(cfg.Lookback, cfg.Horizon)
	case KindDrift:
		f, err = strategies.NewDrift(cfg.Lookback)
	default:
		return nil, fmt.Errorf("%w: unknown forecaster kind %q", ports.ErrConfigurationError, cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	return f, nil
}
