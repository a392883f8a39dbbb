package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "directory", "register", "login", "status", "drain"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("IDSYNC_SERVER", "")
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	require.Equal(t, "text", format.DefValue)

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	require.Equal(t, defaultServer, server.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestServerFlagDefaultsFromEnv(t *testing.T) {
	t.Setenv("IDSYNC_SERVER", "http://engine.local:9000")
	cmd := NewRootCommand()
	require.Equal(t, "http://engine.local:9000", cmd.PersistentFlags().Lookup("server").DefValue)
}

func TestDirectoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	dir, _, err := cmd.Find([]string{"directory"})
	require.NoError(t, err)

	require.Equal(t, ":8081", dir.Flags().Lookup("addr").DefValue)
	require.Equal(t, "", dir.Flags().Lookup("grpc-addr").DefValue)
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRegisterRequiresFlags(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"register", "--email", "ann@example.com"})

	err := cmd.Execute()
	require.ErrorContains(t, err, "username")
}
