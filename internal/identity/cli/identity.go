package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
)

type RegisterOptions struct {
	*RootOptions
	Email            string
	Username         string
	Phone            string
	Name             string
	SecurityQuestion string
	SecurityAnswer   string
}

func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an identity",
		Long: `Register an identity with the engine. The password is read from the
terminal without echo, or from the first line of stdin when piped.

Example:
  idsync register --email ann@example.com --username ann`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Username, "username", "", "username (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.SecurityQuestion, "security-question", "", "recovery question")
	cmd.Flags().StringVar(&opts.SecurityAnswer, "security-answer", "", "recovery answer")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runRegister(opts *RegisterOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	password, err := opts.passwordReader()("Password: ", cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read password", err)
	}

	res, err := opts.client().Register(cmd.Context(), idsyncsdk.RegisterRequest{
		Email:            opts.Email,
		Username:         opts.Username,
		Password:         password,
		Phone:            opts.Phone,
		Name:             opts.Name,
		SecurityQuestion: opts.SecurityQuestion,
		SecurityAnswer:   opts.SecurityAnswer,
	})
	if err != nil {
		return out.Fail("registration failed", err)
	}

	return out.Success(res, func(w io.Writer) { renderResult(w, res) })
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "login <email-or-username>",
		Short:         "Sign in with an email or username",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			password, err := rootOpts.passwordReader()("Password: ", cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read password", err)
			}

			res, err := rootOpts.client().Login(cmd.Context(), args[0], password)
			if err != nil {
				return out.Fail("login failed", err)
			}

			if err := out.Success(res, func(w io.Writer) { renderResult(w, res) }); err != nil {
				return err
			}
			if res.RequiresResolution {
				return NewExitError(ExitFailure, "login requires conflict resolution")
			}
			return nil
		},
	}

	return cmd
}

// renderResult prints a Result for humans.
func renderResult(w io.Writer, res *idsyncsdk.Result) {
	mark := "✓"
	if !res.Success {
		mark = "!"
	}
	if res.Mode != "" {
		fmt.Fprintf(w, "%s %s (%s)\n", mark, res.Message, res.Mode)
	} else {
		fmt.Fprintf(w, "%s %s\n", mark, res.Message)
	}

	if id := res.Identity; id != nil {
		fmt.Fprintf(w, "  id:       %s\n", id.ID)
		fmt.Fprintf(w, "  email:    %s\n", id.Email)
		fmt.Fprintf(w, "  username: %s\n", id.Username)
		fmt.Fprintf(w, "  synced:   %t\n", id.SyncedToServer)
	}

	if res.RequiresResolution {
		fmt.Fprintf(w, "  conflict: %s (%s)\n", res.ConflictID, res.ConflictType)
		for _, c := range res.Conflicts {
			fmt.Fprintf(w, "    %-10s local=%q remote=%q\n", c.Field, c.Local, c.Remote)
		}
	}
	if res.SessionToken != "" {
		fmt.Fprintf(w, "  session:  %s\n", res.SessionToken)
	}
}
