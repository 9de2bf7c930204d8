package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"riskBacktester/internal/ports"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Service        Backtester
	Logger         ports.Logger
	AllowedOrigins []string
	Release        bool // gin release mode
}

// Server exposes the backtest service over HTTP.
type Server struct {
	engine *gin.Engine
	logger ports.Logger
}

// NewServer builds the router.
func NewServer(cfg Config) *Server {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply middleware
	router.Use(ErrorHandler(cfg.Logger))
	router.Use(CORS(cfg.AllowedOrigins))
	router.Use(RequestLogger(cfg.Logger))

	h := NewHandler(cfg.Service, cfg.Logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", h.RunBacktest)
		api.POST("/montecarlo", h.RunMonteCarlo)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "NOT_FOUND", Message: "Not found"}})
	})

	return &Server{engine: router, logger: cfg.Logger}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting API server", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info(context.Background(), "Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
