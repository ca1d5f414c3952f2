package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/Digital-Shane/mediameta/internal/api"
	"github.com/Digital-Shane/mediameta/internal/config"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 60 * time.Second // Fan-out waits on every enabled source
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 75 * time.Second // Must exceed serverRequestTimeout
	serverIdleTimeout      = 60 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the metadata source API over HTTP",
	Long: `Serve the metadata source API over HTTP.

Source endpoints live under /api/sources and alias search under /api/aliases.
Sources that provide their own routes, such as the bangumi OAuth callback,
are mounted under /api/metadata/{source}. Callers identify themselves with
the X-User-ID and X-Username headers.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default :8080)")
	bindFlags(v, serveCmd, map[string]string{config.KeyListen: "listen"})
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", app.settings.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.settings.Listen, err)
	}
	return serve(ctx, listener)
}

// serve runs the API on listener until ctx is done, then shuts down
// gracefully.
func serve(ctx context.Context, listener net.Listener) error {
	log := app.log.Named("http")
	router := api.NewServer(app.registry, app.store,
		api.WithLogger(log),
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware(log),
		),
	)

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server listening", "address", listener.Addr().String(), "sources", app.registry.LoadedNames())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}
	log.Info("server shutdown complete")
	return nil
}
