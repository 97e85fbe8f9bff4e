package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/canvas/internal/httpapi"
	"github.com/mesh-intelligence/canvas/internal/sqlite"
	"github.com/mesh-intelligence/canvas/pkg/editor"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site editing HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.settings.ListenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from config, :8080)")
	return cmd
}

// serve runs the API until ctx is done. When ready is non-nil it receives
// the bound address once the listener is open.
func (a *app) serve(ctx context.Context, addr string, ready chan<- string) error {
	cfg, err := a.backendConfig()
	if err != nil {
		return userError(err)
	}

	logger := slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{Level: parseLevel(a.settings.LogLevel)}))
	backend := sqlite.NewBackend(sqlite.WithLogger(logger))
	if err := backend.Attach(cfg); err != nil {
		return sysError(fmt.Errorf("attach backend: %w", err))
	}
	defer func() {
		if err := backend.Detach(); err != nil {
			logger.Error("detach backend", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return sysError(fmt.Errorf("listen %s: %w", addr, err))
	}
	srv := &http.Server{
		Handler:           httpapi.New(editor.New(backend, editor.WithLogger(logger)), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", "addr", ln.Addr().String(), "data_dir", cfg.DataDir)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if ready != nil {
		ready <- ln.Addr().String()
	}

	if err := g.Wait(); err != nil {
		return sysError(fmt.Errorf("serve: %w", err))
	}
	return nil
}
