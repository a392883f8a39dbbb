package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show sync queue and connectivity status",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			st, err := rootOpts.client().SyncStatus(cmd.Context())
			if err != nil {
				return out.Fail("failed to read status", err)
			}

			return out.Success(st, func(w io.Writer) {
				fmt.Fprintf(w, "pending:      %d\n", st.Pending)
				fmt.Fprintf(w, "failed:       %d\n", st.Failed)
				fmt.Fprintf(w, "unsynced:     %d\n", st.Unsynced)
				fmt.Fprintf(w, "in progress:  %t\n", st.InProgress)
				if st.LastSyncAt != nil {
					fmt.Fprintf(w, "last sync:    %s\n", st.LastSyncAt.Format("2006-01-02 15:04:05Z07:00"))
				} else {
					fmt.Fprintln(w, "last sync:    never")
				}
				fmt.Fprintf(w, "connected:    %t (%s)\n", st.Connectivity.Connected, st.Connectivity.Quality)
				fmt.Fprintf(w, "reachable:    %t\n", st.Connectivity.Reachable)
			})
		},
	}

	return cmd
}

type DrainOptions struct {
	*RootOptions
	RetryFailed bool
}

func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DrainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Drain the sync queue once",
		Long: `Drain the sync queue once. With --retry-failed, operations that failed
permanently are moved back to pending first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			client := opts.client()

			requeued := 0
			if opts.RetryFailed {
				res, err := client.RetryFailed(cmd.Context())
				if err != nil {
					return out.Fail("failed to requeue failed operations", err)
				}
				requeued = res.Requeued
			}

			report, err := client.SyncRun(cmd.Context())
			if err != nil {
				return out.Fail("drain failed", err)
			}

			return out.Success(report, func(w io.Writer) {
				if opts.RetryFailed {
					fmt.Fprintf(w, "requeued %d failed operation(s)\n", requeued)
				}
				fmt.Fprintf(w, "processed %d: %d synced, %d retrying, %d failed, %d remaining\n",
					report.Processed, report.Succeeded, report.Retried, report.Failed, report.Remaining)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.RetryFailed, "retry-failed", false, "requeue permanently failed operations first")

	return cmd
}
