package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"riskBacktester/internal/app"
	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/strategy/backtesting"
)

// Backtester is the application surface the handlers need.
type Backtester interface {
	RunBacktest(ctx context.Context, req app.BacktestRequest) (*app.BacktestReport, error)
	RunMonteCarlo(ctx context.Context, returns []float64, iterations int, seed *uint64) (*app.MonteCarloReport, error)
	GetRun(ctx context.Context, id string) (*app.RunDetails, error)
	ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error)
}

// maxMonteCarloIterations bounds a single HTTP resampling request.
const maxMonteCarloIterations = 100000

// Handler serves the backtest API.
type Handler struct {
	svc    Backtester
	logger ports.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc Backtester, logger ports.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RunBacktest handles POST /api/v1/backtest
func (h *Handler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	report, err := h.svc.RunBacktest(c.Request.Context(), app.BacktestRequest{
		Symbol:           req.Symbol,
		Bars:             toDomainBars(req.Bars),
		Forecaster:       req.Forecaster,
		Params:           req.Params,
		AttachIndicators: req.AttachIndicators,
		MonteCarlo:       req.MonteCarlo,
		Persist:          req.Persist,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromReport(report))
}

// RunMonteCarlo handles POST /api/v1/montecarlo
func (h *Handler) RunMonteCarlo(c *gin.Context) {
	var req MonteCarloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Iterations < 0 || req.Iterations > maxMonteCarloIterations {
		badRequest(c, "INVALID_CONFIG", "iterations must be between 0 (configured default) and "+strconv.Itoa(maxMonteCarloIterations))
		return
	}

	returns := req.Returns
	if len(returns) == 0 {
		returns = domain.TradeReturns(toDomainTrades(req.Trades))
	}

	report, err := h.svc.RunMonteCarlo(c.Request.Context(), returns, req.Iterations, req.Seed)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromMonteCarlo(report))
}

// GetRun handles GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	details, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunDetailsResponse{
		Run:    fromRunRecord(details.Run),
		Trades: fromTrades(details.Trades),
		Equity: fromEquity(details.Equity, nil),
	})
}

// ListRuns handles GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequest(c, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]RunSummaryDTO, len(runs))
	for i, r := range runs {
		out[i] = fromRunRecord(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}})
}

// writeError maps engine sentinels to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, ports.ErrConfigurationError), errors.Is(err, ports.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, ports.ErrInsufficientData):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_DATA"
	case errors.Is(err, ports.ErrDataError):
		status, code = http.StatusUnprocessableEntity, "DATA_ERROR"
	case errors.Is(err, ports.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, code = http.StatusServiceUnavailable, "CANCELED"
	}

	detail := ErrorDetail{Code: code, Message: err.Error()}
	var barErr *backtesting.BarError
	if errors.As(err, &barErr) {
		detail.Details = map[string]interface{}{"barIndex": barErr.Index, "timestamp": barErr.Timestamp}
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), err, "API request failed", map[string]interface{}{"path": c.Request.URL.Path})
	}
	c.JSON(status, ErrorResponse{Error: detail})
}
