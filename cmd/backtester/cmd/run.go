package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"riskBacktester/internal/app"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/strategy"
	"riskBacktester/internal/utils"
)

var (
	runBars       barQueryFlags
	runForecaster strategy.Config
	runParams     paramFlags

	runIndicators bool
	runMonteCarlo bool
	runPersist    bool
	runOutDir     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest",
	Long: `Run replays bars from a CSV file or the exchange through the selected forecaster
and prints the performance summary. Optionally resamples the trade returns,
persists the run and writes the ledger and equity curve to CSV.`,
	Example: `  backtester run --bars data/BTCUSDT_1h.csv --montecarlo
  backtester run --from 2024-01-01 --to 2024-04-01 --forecaster linear_trend --lookback 30 --persist`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runBars.bind(runCmd, true)
	forecasterFlags(runCmd, &runForecaster)
	runParams.bind(runCmd)
	runCmd.Flags().BoolVar(&runIndicators, "indicators", false, "attach the default indicator feed before simulating")
	runCmd.Flags().BoolVar(&runMonteCarlo, "montecarlo", false, "resample trade returns")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "store the run in the results database")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "directory for trades.csv and equity.csv")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	query, err := runBars.query()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(serviceDeps{repo: runPersist, source: query.CSVPath == ""})
	if err != nil {
		return err
	}
	defer cleanup()

	bars, err := svc.LoadBars(ctx, query)
	if err != nil {
		return err
	}
	params := runParams.apply(cmd, cfg.Params)

	report, err := svc.RunBacktest(ctx, app.BacktestRequest{
		Symbol:           runBars.symbolOrDefault(),
		Bars:             bars,
		Forecaster:       runForecaster,
		Params:           &params,
		AttachIndicators: runIndicators,
		MonteCarlo:       runMonteCarlo,
		Persist:          runPersist,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, report)
	printExitReasons(out, report.Result.Ledger)
	if report.MonteCarlo != nil {
		printMonteCarlo(out, report.MonteCarlo)
	}

	if runOutDir != "" {
		tradesFile := filepath.Join(runOutDir, "trades.csv")
		if err := utils.WriteTradesToCSV(report.Result.Ledger, tradesFile); err != nil {
			return err
		}
		equityFile := filepath.Join(runOutDir, "equity.csv")
		if err := utils.WriteEquityToCSV(report.Result.EquityCurve, equityFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nWrote %s and %s\n", tradesFile, equityFile)
	}
	return nil
}

// paramFlags overrides individual strategy parameters from the command line.
type paramFlags struct {
	initialCapital    float64
	maxRiskPerTrade   float64
	stopLossPct       float64
	takeProfitPct     float64
	trailingStopPct   float64
	entryThresholdPct float64
}

func (p *paramFlags) bind(cmd *cobra.Command) {
	def := domain.DefaultStrategyParameters()
	cmd.Flags().Float64Var(&p.initialCapital, "capital", def.InitialCapital, "initial capital (default INITIAL_CAPITAL)")
	cmd.Flags().Float64Var(&p.maxRiskPerTrade, "max-risk", def.MaxRiskPerTrade, "max fraction of equity risked per trade")
	cmd.Flags().Float64Var(&p.stopLossPct, "stop-loss", def.StopLossPct, "stop-loss distance as a fraction of entry")
	cmd.Flags().Float64Var(&p.takeProfitPct, "take-profit", def.TakeProfitPct, "take-profit distance as a fraction of entry")
	cmd.Flags().Float64Var(&p.trailingStopPct, "trailing-stop", def.TrailingStopPct, "trailing-stop distance, 0 disables")
	cmd.Flags().Float64Var(&p.entryThresholdPct, "entry-threshold", def.EntryThresholdPct, "minimum forecast move to enter")
}

// apply starts from base and replaces only the flags the user set.
func (p *paramFlags) apply(cmd *cobra.Command, base domain.StrategyParameters) domain.StrategyParameters {
	flags := cmd.Flags()
	if flags.Changed("capital") {
		base.InitialCapital = p.initialCapital
	}
	if flags.Changed("max-risk") {
		base.MaxRiskPerTrade = p.maxRiskPerTrade
	}
	if flags.Changed("stop-loss") {
		base.StopLossPct = p.stopLossPct
	}
	if flags.Changed("take-profit") {
		base.TakeProfitPct = p.takeProfitPct
	}
	if flags.Changed("trailing-stop") {
		base.TrailingStopPct = p.trailingStopPct
	}
	if flags.Changed("entry-threshold") {
		base.EntryThresholdPct = p.entryThresholdPct
	}
	return base
}
