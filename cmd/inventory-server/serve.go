package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM. In-flight requests get
server.shutdown_timeout to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, logger, err := flags.openContainer(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer c.Close()

			srv := c.Server()
			if addr != "" {
				srv.Addr = addr
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrap(err, "listen")
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.Config().Server.ShutdownTimeout.Std())
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, "shutdown")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
