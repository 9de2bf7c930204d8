package httpapi

import (
	"math"
	"time"

	"riskBacktester/internal/app"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/strategy"
	"riskBacktester/internal/strategy/analytics"
	"riskBacktester/internal/strategy/montecarlo"
)

// BarDTO is a bar on the wire.
type BarDTO struct {
	Timestamp  time.Time          `json:"timestamp"`
	Open       float64            `json:"open,omitempty"`
	High       float64            `json:"high,omitempty"`
	Low        float64            `json:"low,omitempty"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// BacktestRequest is the body of POST /api/v1/backtest.
type BacktestRequest struct {
	Symbol           string                     `json:"symbol"`
	Bars             []BarDTO                   `json:"bars"`
	Forecaster       strategy.Config            `json:"forecaster"`
	Params           *domain.StrategyParameters `json:"params,omitempty"`
	AttachIndicators bool                       `json:"attachIndicators"`
	MonteCarlo       bool                       `json:"monteCarlo"`
	Persist          bool                       `json:"persist"`
}

// MonteCarloRequest is the body of POST /api/v1/montecarlo. Either per-trade
// returns or a trade ledger may be given; returns win when both are present.
type MonteCarloRequest struct {
	Returns    []float64  `json:"returns,omitempty"`
	Trades     []TradeDTO `json:"trades,omitempty"`
	Iterations int        `json:"iterations,omitempty"`
	Seed       *uint64    `json:"seed,omitempty"`
}

// TradeDTO is a closed trade on the wire.
type TradeDTO struct {
	EntryTime  time.Time `json:"entryTime"`
	ExitTime   time.Time `json:"exitTime"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Size       float64   `json:"size"`
	Profit     float64   `json:"profit"`
	Return     float64   `json:"return"`
	ExitReason string    `json:"exitReason"`
}

// EquityDTO is one equity curve point.
type EquityDTO struct {
	Time     time.Time `json:"time"`
	Capital  float64   `json:"capital"`
	Equity   float64   `json:"equity"`
	Drawdown float64   `json:"drawdown"`
}

// PositionDTO is a position left open at the end of the series.
type PositionDTO struct {
	EntryTime         time.Time `json:"entryTime"`
	EntryPrice        float64   `json:"entryPrice"`
	Size              float64   `json:"size"`
	StopLossPrice     float64   `json:"stopLossPrice"`
	TakeProfitPrice   float64   `json:"takeProfitPrice"`
	TrailingStopPrice float64   `json:"trailingStopPrice"`
	Leverage          float64   `json:"leverage"`
}

// MetricsDTO carries the performance summary. JSON has no infinity, so an
// unbounded profit factor is sent as null with ProfitFactorInfinite set.
type MetricsDTO struct {
	TotalTrades          int                `json:"totalTrades"`
	WinningTrades        int                `json:"winningTrades"`
	LosingTrades         int                `json:"losingTrades"`
	WinRate              float64            `json:"winRate"`
	NetProfit            float64            `json:"netProfit"`
	ProfitFactor         *float64           `json:"profitFactor"`
	ProfitFactorInfinite bool               `json:"profitFactorInfinite"`
	AverageWin           float64            `json:"averageWin"`
	AverageLoss          float64            `json:"averageLoss"`
	Expectancy           float64            `json:"expectancy"`
	FinalEquity          float64            `json:"finalEquity"`
	TotalReturn          float64            `json:"totalReturn"`
	SharpeRatio          float64            `json:"sharpeRatio"`
	SortinoRatio         float64            `json:"sortinoRatio"`
	MaxDrawdown          float64            `json:"maxDrawdown"`
	MaxConsecutiveWins   int                `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int                `json:"maxConsecutiveLosses"`
	MonthlyReturns       map[string]float64 `json:"monthlyReturns,omitempty"`
	ExitReasons          map[string]int     `json:"exitReasons,omitempty"`
}

// MonteCarloResponse is the resampled return distribution.
type MonteCarloResponse struct {
	Iterations int              `json:"iterations"`
	Seed       uint64           `json:"seed"`
	Histogram  []montecarlo.Bin `json:"histogram"`
	Stats      montecarlo.Stats `json:"stats"`
}

// BacktestResponse is the body returned by POST /api/v1/backtest.
type BacktestResponse struct {
	RunID             string                    `json:"runId,omitempty"`
	Symbol            string                    `json:"symbol,omitempty"`
	ForecasterVersion string                    `json:"forecasterVersion"`
	Params            domain.StrategyParameters `json:"params"`
	Summary           MetricsDTO                `json:"summary"`
	Trades            []TradeDTO                `json:"trades"`
	Equity            []EquityDTO               `json:"equity"`
	OpenPosition      *PositionDTO              `json:"openPosition,omitempty"`
	UnassessedBars    int                       `json:"unassessedBars"`
	MonteCarlo        *MonteCarloResponse       `json:"monteCarlo,omitempty"`
}

// RunSummaryDTO is a persisted run's headline record.
type RunSummaryDTO struct {
	ID                   string                    `json:"id"`
	CreatedAt            time.Time                 `json:"createdAt"`
	Symbol               string                    `json:"symbol"`
	ForecasterVersion    string                    `json:"forecasterVersion"`
	Params               domain.StrategyParameters `json:"params"`
	TotalTrades          int                       `json:"totalTrades"`
	FinalEquity          float64                   `json:"finalEquity"`
	TotalReturn          float64                   `json:"totalReturn"`
	WinRate              float64                   `json:"winRate"`
	ProfitFactor         *float64                  `json:"profitFactor"`
	ProfitFactorInfinite bool                      `json:"profitFactorInfinite"`
	Expectancy           float64                   `json:"expectancy"`
	SharpeRatio          float64                   `json:"sharpeRatio"`
	SortinoRatio         float64                   `json:"sortinoRatio"`
	MaxDrawdown          float64                   `json:"maxDrawdown"`
}

// RunDetailsResponse is the body returned by GET /api/v1/runs/:id.
type RunDetailsResponse struct {
	Run    RunSummaryDTO `json:"run"`
	Trades []TradeDTO    `json:"trades"`
	Equity []EquityDTO   `json:"equity"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func toDomainBars(in []BarDTO) []domain.Bar {
	bars := make([]domain.Bar, len(in))
	for i, b := range in {
		bars[i] = domain.Bar{
			Timestamp:  b.Timestamp,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			Indicators: b.Indicators,
		}
	}
	return bars
}

func toDomainTrades(in []TradeDTO) []domain.Trade {
	trades := make([]domain.Trade, len(in))
	for i, t := range in {
		trades[i] = domain.Trade{
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			Profit:     t.Profit,
			Return:     t.Return,
			ExitReason: domain.ExitReason(t.ExitReason),
		}
	}
	return trades
}

func fromTrades(in []domain.Trade) []TradeDTO {
	out := make([]TradeDTO, len(in))
	for i, t := range in {
		out[i] = TradeDTO{
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			Profit:     t.Profit,
			Return:     t.Return,
			ExitReason: string(t.ExitReason),
		}
	}
	return out
}

// fromEquity pairs each equity point with its drawdown; drawdown may be shorter or nil.
func fromEquity(curve []domain.EquityPoint, drawdown []domain.DrawdownPoint) []EquityDTO {
	out := make([]EquityDTO, len(curve))
	peak := 0.0
	for i, p := range curve {
		out[i] = EquityDTO{Time: p.Time, Capital: p.Capital, Equity: p.Equity}
		if i < len(drawdown) {
			out[i].Drawdown = drawdown[i].Drawdown
			continue
		}
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		out[i].Drawdown = analytics.DrawdownAt(peak, p.Equity)
	}
	return out
}

func profitFactor(pf float64) (*float64, bool) {
	if math.IsInf(pf, 1) {
		return nil, true
	}
	return &pf, false
}

func fromMetrics(m *analytics.PerformanceMetrics) MetricsDTO {
	pf, inf := profitFactor(m.ProfitFactor)
	reasons := make(map[string]int, len(m.ExitReasons))
	for k, v := range m.ExitReasons {
		reasons[string(k)] = v
	}
	return MetricsDTO{
		TotalTrades:          m.TotalTrades,
		WinningTrades:        m.WinningTrades,
		LosingTrades:         m.LosingTrades,
		WinRate:              m.WinRate,
		NetProfit:            m.NetProfit,
		ProfitFactor:         pf,
		ProfitFactorInfinite: inf,
		AverageWin:           m.AverageWin,
		AverageLoss:          m.AverageLoss,
		Expectancy:           m.Expectancy,
		FinalEquity:          m.FinalEquity,
		TotalReturn:          m.TotalReturn,
		SharpeRatio:          m.SharpeRatio,
		SortinoRatio:         m.SortinoRatio,
		MaxDrawdown:          m.MaxDrawdown,
		MaxConsecutiveWins:   m.MaxConsecutiveWins,
		MaxConsecutiveLosses: m.MaxConsecutiveLosses,
		MonthlyReturns:       m.MonthlyReturns,
		ExitReasons:          reasons,
	}
}

func fromMonteCarlo(r *app.MonteCarloReport) *MonteCarloResponse {
	if r == nil {
		return nil
	}
	return &MonteCarloResponse{Iterations: r.Iterations, Seed: r.Seed, Histogram: r.Histogram, Stats: r.Stats}
}

func fromReport(r *app.BacktestReport) BacktestResponse {
	res := r.Result
	resp := BacktestResponse{
		RunID:             r.RunID,
		Symbol:            r.Symbol,
		ForecasterVersion: res.ForecasterVersion,
		Params:            res.Params,
		Summary:           fromMetrics(res.Summary),
		Trades:            fromTrades(res.Ledger),
		Equity:            fromEquity(res.EquityCurve, res.DrawdownCurve),
		UnassessedBars:    res.UnassessedBars,
		MonteCarlo:        fromMonteCarlo(r.MonteCarlo),
	}
	if p := res.OpenPosition; p.IsOpen() {
		resp.OpenPosition = &PositionDTO{
			EntryTime:         p.EntryTime,
			EntryPrice:        p.EntryPrice,
			Size:              p.Size,
			StopLossPrice:     p.StopLossPrice,
			TakeProfitPrice:   p.TakeProfitPrice,
			TrailingStopPrice: p.TrailingStopPrice,
			Leverage:          p.Leverage,
		}
	}
	return resp
}

func fromRunRecord(r *ports.RunRecord) RunSummaryDTO {
	pf, inf := profitFactor(r.ProfitFactor)
	return RunSummaryDTO{
		ID:                   r.ID,
		CreatedAt:            r.CreatedAt,
		Symbol:               r.Symbol,
		ForecasterVersion:    r.ForecasterVersion,
		Params:               r.Params,
		TotalTrades:          r.TotalTrades,
		FinalEquity:          r.FinalEquity,
		TotalReturn:          r.TotalReturn,
		WinRate:              r.WinRate,
		ProfitFactor:         pf,
		ProfitFactorInfinite: inf,
		Expectancy:           r.Expectancy,
		SharpeRatio:          r.SharpeRatio,
		SortinoRatio:         r.SortinoRatio,
		MaxDrawdown:          r.MaxDrawdown,
	}
}
