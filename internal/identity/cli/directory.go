package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/idsync/internal/identity/app"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

type DirectoryOptions struct {
	*RootOptions
	Addr     string
	GRPCAddr string
}

func NewDirectoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DirectoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Run an in-memory development directory",
		Long: `Run an in-memory remote directory for local development.

Example:
  idsync directory --addr :8081 --grpc-addr :9091`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slogx.New(slogx.Config{
				Service: "idsync-directory",
				Version: app.BuildVersion,
				Env:     "dev",
				Level:   "info",
				Format:  "text",
				Output:  cmd.ErrOrStderr(),
			})

			return app.RunDirectory(ctx, app.DirectoryConfig{
				Addr:     opts.Addr,
				GRPCAddr: opts.GRPCAddr,
			}, logger)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8081", "HTTP listen address")
	cmd.Flags().StringVar(&opts.GRPCAddr, "grpc-addr", "", "optional gRPC health listen address")

	return cmd
}
