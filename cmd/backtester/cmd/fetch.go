package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskBacktester/internal/utils"
)

var (
	fetchBars barQueryFlags
	fetchOut  string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download klines from Binance futures into a bar CSV",
	Example: `  backtester fetch --symbol ETHUSDT --interval 15m --from 2024-01-01 --to 2024-02-01 -o data/ETHUSDT_15m.csv`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchBars.bind(fetchCmd, false)
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output CSV path")
	fetchCmd.MarkFlagRequired("from")
	fetchCmd.MarkFlagRequired("to")
	fetchCmd.MarkFlagRequired("out")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	query, err := fetchBars.query()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(serviceDeps{source: true})
	if err != nil {
		return err
	}
	defer cleanup()

	bars, err := svc.LoadBars(ctx, query)
	if err != nil {
		return err
	}
	if err := utils.WriteBarsToCSV(bars, fetchOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bars to %s\n", len(bars), fetchOut)
	return nil
}
