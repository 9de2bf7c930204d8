package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"riskBacktester/config"
	"riskBacktester/internal/adapters/binanceclient"
	"riskBacktester/internal/adapters/logger"
	"riskBacktester/internal/adapters/sqlite"
	"riskBacktester/internal/app"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/strategy"
)

var (
	cfg       *config.Config
	appLogger *logger.StdLogger

	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Risk-gated backtesting and Monte Carlo research tool",
	Long: `Backtester replays historical bars through a price forecaster, gates and sizes
entries with a risk score, and reports performance metrics.

It provides tools for:
  - Running single backtests from CSV or exchange data
  - Sweeping strategy parameters over a grid
  - Resampling trade returns with Monte Carlo
  - Serving the engine over HTTP

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			cfg.LogLevel = logger.ParseLevel(logLevelFlag)
		}
		appLogger = logger.NewStdLogger(cfg.LogLevel)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// forecasterFlags binds the forecaster settings shared by run and sweep.
func forecasterFlags(cmd *cobra.Command, fc *strategy.Config) {
	def := strategy.DefaultConfig()
	cmd.Flags().StringVar(&fc.Kind, "forecaster", def.Kind, "forecaster kind (ma_crossover, linear_trend, drift)")
	cmd.Flags().IntVar(&fc.FastMAPeriod, "fast", def.FastMAPeriod, "ma_crossover: fast EMA period")
	cmd.Flags().IntVar(&fc.SlowMAPeriod, "slow", def.SlowMAPeriod, "ma_crossover: slow SMA period")
	cmd.Flags().IntVar(&fc.RSIPeriod, "rsi", def.RSIPeriod, "ma_crossover: RSI period, 0 disables the overbought filter")
	cmd.Flags().Float64Var(&fc.RSIOverbought, "rsi-overbought", def.RSIOverbought, "ma_crossover: RSI overbought level")
	cmd.Flags().IntVar(&fc.Lookback, "lookback", def.Lookback, "linear_trend/drift: bars in the fit window")
	cmd.Flags().IntVar(&fc.Horizon, "horizon", def.Horizon, "linear_trend: bars ahead to project")
}

// barQueryFlags binds the input selection shared by run, sweep and fetch.
type barQueryFlags struct {
	csvPath  string
	symbol   string
	interval string
	from     string
	to       string
}

func (f *barQueryFlags) bind(cmd *cobra.Command, withCSV bool) {
	if withCSV {
		cmd.Flags().StringVar(&f.csvPath, "bars", "", "path to a bar CSV (timestamp,open,high,low,close,volume[,indicators...])")
	}
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "symbol to fetch (default SYMBOL)")
	cmd.Flags().StringVar(&f.interval, "interval", "", "kline interval to fetch (default INTERVAL)")
	cmd.Flags().StringVar(&f.from, "from", "", "fetch start (RFC3339, date or epoch)")
	cmd.Flags().StringVar(&f.to, "to", "", "fetch end, exclusive (RFC3339, date or epoch)")
}

func (f *barQueryFlags) query() (app.BarQuery, error) {
	q := app.BarQuery{CSVPath: f.csvPath, Symbol: f.symbol, Interval: f.interval}
	if q.CSVPath != "" {
		return q, nil
	}
	if f.from == "" || f.to == "" {
		return q, fmt.Errorf("either --bars or both --from and --to are required")
	}
	var err error
	if q.Start, err = parseTime(f.from); err != nil {
		return q, fmt.Errorf("invalid --from: %w", err)
	}
	if q.End, err = parseTime(f.to); err != nil {
		return q, fmt.Errorf("invalid --to: %w", err)
	}
	return q, nil
}

func (f *barQueryFlags) symbolOrDefault() string {
	if f.symbol != "" {
		return f.symbol
	}
	return cfg.Symbol
}

// serviceDeps controls which adapters newService opens.
type serviceDeps struct {
	repo   bool
	source bool
}

// newService wires the application service. The returned cleanup closes opened adapters.
func newService(deps serviceDeps) (*app.BacktestService, func(), error) {
	var (
		repo    ports.ResultRepository
		source  ports.BarSource
		cleanup = func() {}
	)

	if deps.repo {
		r, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database repository: %w", err)
		}
		repo = r
		cleanup = func() {
			if err := r.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing database repository")
			}
		}
	}

	if deps.source {
		c, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize Binance client: %w", err)
		}
		source = c
	}

	svc, err := app.NewBacktestService(cfg, appLogger, repo, source)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
