package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

// DirectoryConfig configures the in-memory development directory.
type DirectoryConfig struct {
	Addr           string
	GRPCAddr       string // optional gRPC health endpoint
	HealthInterval time.Duration
}

// RunDirectory serves an in-memory directory until ctx is cancelled. It is
// meant for local development and end-to-end tests, not production.
func RunDirectory(ctx context.Context, cfg DirectoryConfig, logger *slog.Logger) error {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 5 * time.Second
	}

	remote := directory.NewMemory()
	handler := directory.NewServer(remote, directory.ServerOptions{Logger: logger})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           slogx.HTTPMiddleware(logger)(handler),
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("directory listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("directory server failed: %w", err)
		}
		return nil
	})

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = srv.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
		}
		hs := directory.NewHealthServer(remote, logger)
		g.Go(func() error {
			return hs.Serve(ctx, lis, cfg.HealthInterval)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
