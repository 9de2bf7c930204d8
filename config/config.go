package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"riskBacktester/internal/adapters/logger"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	// Strategy Parameters
	Params domain.StrategyParameters

	// Simulation
	ReturnWindow     int // Trailing returns fed to the risk scorer
	EndOfSeries      domain.EndOfSeriesPolicy
	ExitThresholdPct float64 // > 0 enables the forecast-reversal exit
	ExitOnRiskGate   bool    // Close open positions when the risk gate trips

	// Position sizing
	Sizer risk.SizerConfig

	// Monte Carlo
	MonteCarloIterations int
	MonteCarloSeed       uint64

	// Market data
	Symbol    string
	Interval  string
	APIKey    string // Optional; public kline endpoints work without keys
	SecretKey string
	IsTestnet bool

	// Database
	DBPath string

	// HTTP API
	HTTPAddr string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	defaults := domain.DefaultStrategyParameters()

	cfg.Params.InitialCapital, err = getEnvAsFloatRequired("INITIAL_CAPITAL", defaults.InitialCapital)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CAPITAL: %v", err))
	}
	cfg.Params.MaxRiskPerTrade, err = getEnvAsFloatRequired("MAX_RISK_PER_TRADE", defaults.MaxRiskPerTrade)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RISK_PER_TRADE: %v", err))
	}
	cfg.Params.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", defaults.StopLossPct)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	}
	cfg.Params.TakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_PCT", defaults.TakeProfitPct)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	}
	cfg.Params.TrailingStopPct, err = getEnvAsFloatRequired("TRAILING_STOP_PCT", defaults.TrailingStopPct)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_STOP_PCT: %v", err))
	}
	cfg.Params.EntryThresholdPct, err = getEnvAsFloatRequired("ENTRY_THRESHOLD_PCT", defaults.EntryThresholdPct)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ENTRY_THRESHOLD_PCT: %v", err))
	}
	if len(errs) == 0 {
		if err := cfg.Params.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Simulation
	cfg.ReturnWindow, err = getEnvAsIntRequired("RETURN_WINDOW", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RETURN_WINDOW: %v", err))
	} else if cfg.ReturnWindow < 2 {
		errs = append(errs, "RETURN_WINDOW must be at least 2")
	}

	cfg.EndOfSeries, err = domain.ParseEndOfSeriesPolicy(getEnv("END_OF_SERIES", string(domain.MarkToMarket)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid END_OF_SERIES: %v", err))
	}

	cfg.ExitThresholdPct, err = getEnvAsFloatRequired("EXIT_THRESHOLD_PCT", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXIT_THRESHOLD_PCT: %v", err))
	} else if cfg.ExitThresholdPct < 0 || cfg.ExitThresholdPct >= 1 {
		errs = append(errs, "EXIT_THRESHOLD_PCT must be in [0, 1)")
	}
	cfg.ExitOnRiskGate = getEnvAsBool("EXIT_ON_RISK_GATE", false)

	// Position sizing
	cfg.Sizer = risk.DefaultSizerConfig()
	cfg.Sizer.GateLevel, err = domain.ParseRiskLevel(getEnv("RISK_GATE_LEVEL", cfg.Sizer.GateLevel.String()))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_GATE_LEVEL: %v", err))
	}

	cfg.Sizer.MaxPositionFraction, err = getEnvAsFloatRequired("MAX_POSITION_FRACTION", cfg.Sizer.MaxPositionFraction)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_FRACTION: %v", err))
	} else if cfg.Sizer.MaxPositionFraction <= 0 || cfg.Sizer.MaxPositionFraction > 1 {
		errs = append(errs, "MAX_POSITION_FRACTION must be in (0, 1]")
	}

	cfg.Sizer.EnableLeverage = getEnvAsBool("ENABLE_LEVERAGE", false)
	cfg.Sizer.UseKelly = getEnvAsBool("USE_KELLY", false)

	cfg.Sizer.LeverageCap, err = getEnvAsFloatRequired("LEVERAGE_CAP", cfg.Sizer.LeverageCap)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE_CAP: %v", err))
	} else if cfg.Sizer.LeverageCap < 1 {
		errs = append(errs, "LEVERAGE_CAP must be at least 1")
	}

	cfg.Sizer.TargetVolatility, err = getEnvAsFloatRequired("TARGET_VOLATILITY", cfg.Sizer.TargetVolatility)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TARGET_VOLATILITY: %v", err))
	} else if cfg.Sizer.TargetVolatility <= 0 {
		errs = append(errs, "TARGET_VOLATILITY must be positive")
	}

	// Monte Carlo
	cfg.MonteCarloIterations, err = getEnvAsIntRequired("MONTE_CARLO_ITERATIONS", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MONTE_CARLO_ITERATIONS: %v", err))
	} else if cfg.MonteCarloIterations <= 0 {
		errs = append(errs, "MONTE_CARLO_ITERATIONS must be positive")
	}

	seed, err := getEnvAsIntRequired("MONTE_CARLO_SEED", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MONTE_CARLO_SEED: %v", err))
	} else if seed < 0 {
		errs = append(errs, "MONTE_CARLO_SEED cannot be negative")
	}
	cfg.MonteCarloSeed = uint64(max(seed, 0))

	// Market data
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	cfg.Interval = getEnv("INTERVAL", "1h")
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/backtests.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// HTTP API
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
