package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"riskBacktester/internal/app"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/strategy/analytics"
	"riskBacktester/internal/strategy/optimization"
)

func printSummary(w io.Writer, report *app.BacktestReport) {
	res := report.Result
	m := res.Summary

	fmt.Fprintf(w, "Backtest %s (%s)\n", report.Symbol, res.ForecasterVersion)
	if report.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trades\t%d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(tw, "Win rate\t%.2f%%\n", pct(m.WinRate))
	fmt.Fprintf(tw, "Net profit\t%.2f\n", m.NetProfit)
	fmt.Fprintf(tw, "Final equity\t%.2f\n", m.FinalEquity)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", pct(m.TotalReturn))
	fmt.Fprintf(tw, "Profit factor\t%s\n", formatProfitFactor(m))
	fmt.Fprintf(tw, "Expectancy\t%.2f\n", m.Expectancy)
	fmt.Fprintf(tw, "Sharpe\t%.3f\n", m.SharpeRatio)
	fmt.Fprintf(tw, "Sortino\t%.3f\n", m.SortinoRatio)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", pct(m.MaxDrawdown))
	fmt.Fprintf(tw, "Max consecutive losses\t%d\n", m.MaxConsecutiveLosses)
	if res.UnassessedBars > 0 {
		fmt.Fprintf(tw, "Bars without risk assessment\t%d\n", res.UnassessedBars)
	}
	if res.OpenPosition != nil {
		fmt.Fprintf(tw, "Open position\t%.6f @ %.2f\n", res.OpenPosition.Size, res.OpenPosition.EntryPrice)
	}
	tw.Flush()
}

func formatProfitFactor(m *analytics.PerformanceMetrics) string {
	if m.HasInfiniteProfitFactor() {
		return "inf"
	}
	return fmt.Sprintf("%.2f", m.ProfitFactor)
}

// printExitReasons prints trade count and profit per exit reason.
func printExitReasons(w io.Writer, trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}
	counts := make(map[domain.ExitReason]int)
	profit := make(map[domain.ExitReason]float64)
	for _, t := range trades {
		counts[t.ExitReason]++
		profit[t.ExitReason] += t.Profit
	}

	reasons := make([]domain.ExitReason, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	fmt.Fprintln(w, "\nExit reason breakdown:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Reason\tCount\tTotal PnL\tAvg PnL")
	for _, r := range reasons {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", r, counts[r], profit[r], profit[r]/float64(counts[r]))
	}
	tw.Flush()
}

func printMonteCarlo(w io.Writer, mc *app.MonteCarloReport) {
	fmt.Fprintf(w, "\nMonte Carlo (%d iterations, seed %d):\n", mc.Iterations, mc.Seed)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Mean\t%.2f%%\n", mc.Stats.Mean)
	fmt.Fprintf(tw, "5th percentile\t%.2f%%\n", mc.Stats.P5)
	fmt.Fprintf(tw, "Median\t%.2f%%\n", mc.Stats.Median)
	fmt.Fprintf(tw, "95th percentile\t%.2f%%\n", mc.Stats.P95)
	fmt.Fprintf(tw, "Probability of loss\t%.2f%%\n", pct(mc.Stats.ProbabilityLoss))
	tw.Flush()

	fmt.Fprintln(w, "\nReturn\tFrequency")
	for _, b := range mc.Histogram {
		fmt.Fprintf(w, "%+.1f%%\t%.4f\n", b.Center, b.Frequency)
	}
}

func printSweep(w io.Writer, results []optimization.OptimizationResult, top int) {
	if top <= 0 || top > len(results) {
		top = len(results)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Rank\tScore\tTrades\tReturn\tMaxDD\tRisk\tSL\tTP\tTrail\tEntry")
	for i, r := range results[:top] {
		p := r.Parameters
		fmt.Fprintf(tw, "%d\t%.3f\t%d\t%.2f%%\t%.2f%%\t%.3f\t%.3f\t%.3f\t%.3f\t%.4f\n",
			i+1, r.Score, r.Metrics.TotalTrades, pct(r.Metrics.TotalReturn), pct(r.Metrics.MaxDrawdown),
			p.MaxRiskPerTrade, p.StopLossPct, p.TakeProfitPct, p.TrailingStopPct, p.EntryThresholdPct)
	}
	tw.Flush()
}
