package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"assessment-backend/infrastructure/di"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API in the foreground",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from SERVER_ADDRESS)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// serve keeps the metrics endpoint, unlike the one-shot commands
	return withServingContainer(cmd, func(ctx context.Context, c *di.Container) error {
		addr := c.Config.ServerAddress
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           c.Router.Setup(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		background := make(chan struct{})
		go func() {
			defer close(background)
			c.RunBackground(ctx)
		}()

		serveErr := make(chan error, 1)
		go func() {
			c.Logger.Info("Starting server", zap.String("address", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		var err error
		select {
		case <-ctx.Done():
		case err = <-serveErr:
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			c.Logger.Error("Server shutdown error", zap.Error(shutdownErr))
		}
		<-background
		return err
	})
}
