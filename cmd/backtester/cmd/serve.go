package cmd

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"riskBacktester/internal/adapters/httpapi"
)

var (
	serveAddr    string
	serveOrigins string
	serveDebug   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backtest engine over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	serveCmd.Flags().StringVar(&serveOrigins, "origins", "*", "comma-separated CORS origins")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "run gin in debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := newService(serviceDeps{repo: true})
	if err != nil {
		return err
	}
	defer cleanup()

	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	server := httpapi.NewServer(httpapi.Config{
		Service:        svc,
		Logger:         appLogger,
		AllowedOrigins: strings.Split(serveOrigins, ","),
		Release:        !serveDebug,
	})
	return server.Run(ctx, addr)
}
