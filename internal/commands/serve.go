package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/tax-declaration-converter/internal/api"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		port      int
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("static") {
				a.cfg.Server.StaticDir = staticDir
			}

			conv, err := a.converter()
			if err != nil {
				return err
			}

			app := api.NewApp(&api.Handler{
				Converter: conv,
				Report:    a.cfg.Report,
				StaticDir: a.cfg.Server.StaticDir,
				Logger:    a.logger,
			}, a.cfg.Server.MaxUploadMB)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			errc := make(chan error, 1)
			go func() { errc <- app.Listen(addr) }()
			a.logger.Info("listening", "addr", addr, "credit_data", a.cfg.CreditData.Path != "")

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides config and SERVER_PORT)")
	cmd.Flags().StringVar(&staticDir, "static", "", "directory of the web frontend to serve on /")

	return cmd
}
