package cli

import (
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/idsync/internal/identity/app"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local engine API with background sync",
		Long: `Run the identity engine: the local HTTP API, the connectivity monitor and
the sync orchestrator. Configuration comes from --config (or
$IDSYNC_CONFIG_FILE) overlaid by IDSYNC_* environment variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(rootOpts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}

			application, err := app.New(cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize application", err)
			}
			return application.Run()
		},
	}

	return cmd
}
