package cmd

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List stored runs, or show one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := newService(serviceDeps{repo: true})
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		details, err := svc.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		r := details.Run
		fmt.Fprintf(out, "Run %s  %s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Symbol, r.ForecasterVersion)
		fmt.Fprintf(out, "Params: %+v\n", r.Params)
		fmt.Fprintf(out, "Equity points: %d\n", len(details.Equity))
		printExitReasons(out, details.Trades)
		return nil
	}

	runs, err := svc.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCreated\tSymbol\tForecaster\tTrades\tReturn\tPF\tSharpe\tMaxDD")
	for _, r := range runs {
		pf := fmt.Sprintf("%.2f", r.ProfitFactor)
		if math.IsInf(r.ProfitFactor, 1) {
			pf = "inf"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f%%\t%s\t%.3f\t%.2f%%\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.ForecasterVersion,
			r.TotalTrades, pct(r.TotalReturn), pf, r.SharpeRatio, pct(r.MaxDrawdown))
	}
	return tw.Flush()
}
