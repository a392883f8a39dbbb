// Package cli implements the idsync command line.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	ConfigFile string
	Server     string

	// ReadPassword overrides the terminal prompt (for testing).
	ReadPassword PasswordReader
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const defaultServer = "http://localhost:8080"

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "idsync",
		Short: "Offline-first identity synchronization",
		Long: `idsync keeps identities on this device and a remote directory in step.

It registers and signs in identities while offline, queues the changes and
publishes them once the directory is reachable again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	server := os.Getenv("IDSYNC_SERVER")
	if server == "" {
		server = defaultServer
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file (overrides $IDSYNC_CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "engine API base URL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDirectoryCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))

	return cmd
}

func (o *RootOptions) client() *idsyncsdk.SDKClient {
	return idsyncsdk.NewSDKClient(o.Server)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}
