package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/opbridge/pkg/adapters/http"
	"github.com/aretw0/opbridge/pkg/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long: `Starts the bridge with an admin API: health, info, one-shot dispatch,
subscription listing and cancellation, an SSE event feed and Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		s, err := openSession(cmd, func(cfg *config.Config) {
			if addr != "" {
				cfg.Admin.Addr = addr
			}
		})
		if err != nil {
			return err
		}
		defer s.Close()

		handler := httpAdapter.NewAdminHandler(s.host.Bridge,
			httpAdapter.WithMetrics(s.host.Metrics.Handler()),
			httpAdapter.WithEvents(s.host.Events),
			httpAdapter.WithLogger(s.logger),
		)
		srv := &http.Server{
			Addr:              s.cfg.Admin.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			s.printer.Message("Starting opbridge admin server on %s (kinds: %s)", srv.Addr, s.host.Bridge.Kinds())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-s.Context().Done():
			s.printer.Message("Start shutdown... Signal: %v", s.signals.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Warn("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			s.printer.Message("opbridge admin server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from config, :8080)")
}
