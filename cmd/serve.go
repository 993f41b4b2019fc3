package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shiftcheck/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeStore, err := openService(ctx, providers{schedules: true, worklogs: true})
	if err != nil {
		return err
	}
	defer closeStore()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	h := server.New(svc, cfg.Validation, logger).Handler(cfg.Server.AllowedOrigins)
	return server.Run(ctx, addr, h, logger)
}
