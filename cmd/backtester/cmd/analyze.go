package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/utils"
)

var (
	analyzeMonteCarlo bool
	analyzeIterations int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <trades.csv>...",
	Short: "Summarize exported trade ledgers by exit reason",
	Long: `Analyze reads ledgers written by "run --out" and prints the exit reason
breakdown of each. With --montecarlo the per-trade returns are resampled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeMonteCarlo, "montecarlo", false, "resample each ledger's trade returns")
	analyzeCmd.Flags().IntVar(&analyzeIterations, "iterations", 0, "resampling iterations (default MONTE_CARLO_ITERATIONS)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	svc, cleanup, err := newService(serviceDeps{})
	if err != nil {
		return err
	}
	defer cleanup()

	for _, file := range args {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			appLogger.Error(ctx, err, "Error reading trades", map[string]interface{}{"file": file})
			continue
		}
		fmt.Fprintf(out, "\nFile: %s (%d trades)\n", filepath.Base(file), len(trades))
		printExitReasons(out, trades)

		if analyzeMonteCarlo && len(trades) > 0 {
			mc, err := svc.RunMonteCarlo(ctx, domain.TradeReturns(trades), analyzeIterations, nil)
			if err != nil {
				return fmt.Errorf("resample %s: %w", file, err)
			}
			printMonteCarlo(out, mc)
		}
	}
	return nil
}
