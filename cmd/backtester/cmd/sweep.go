package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskBacktester/internal/strategy"
	"riskBacktester/internal/strategy/optimization"
)

var (
	sweepBars       barQueryFlags
	sweepForecaster strategy.Config

	sweepGridFile   string
	sweepTop        int
	sweepIndicators bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Backtest every combination of a parameter grid",
	Long: `Sweep runs one backtest per combination of the parameter grid and ranks the
runs by Sharpe ratio. The grid is read from a YAML or JSON file; without one
the built-in grid over risk, stop-loss, take-profit, trailing stop and entry
threshold is used.`,
	Example: `  backtester sweep --bars data/BTCUSDT_1h.csv --grid grid.yaml --top 20`,
	RunE:    runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepBars.bind(sweepCmd, true)
	forecasterFlags(sweepCmd, &sweepForecaster)
	sweepCmd.Flags().StringVarP(&sweepGridFile, "grid", "g", "", "grid file (YAML or JSON)")
	sweepCmd.Flags().IntVar(&sweepTop, "top", 10, "number of ranked results to print, 0 prints all")
	sweepCmd.Flags().BoolVar(&sweepIndicators, "indicators", false, "attach the default indicator feed before simulating")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	query, err := sweepBars.query()
	if err != nil {
		return err
	}

	grid := optimization.DefaultGrid(cfg.Params)
	if sweepGridFile != "" {
		loaded, err := optimization.LoadGrid(sweepGridFile)
		if err != nil {
			return err
		}
		grid = *loaded
	}

	svc, cleanup, err := newService(serviceDeps{source: query.CSVPath == ""})
	if err != nil {
		return err
	}
	defer cleanup()

	bars, err := svc.LoadBars(ctx, query)
	if err != nil {
		return err
	}

	results, err := svc.Sweep(ctx, bars, sweepForecaster, grid, sweepIndicators)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no valid parameter combinations in grid")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Evaluated %d combinations\n\n", len(results))
	printSweep(cmd.OutOrStdout(), results, sweepTop)
	return nil
}
