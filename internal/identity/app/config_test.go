package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads; empty means unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigFileEnv,
		"IDSYNC_DATABASE_FILE", "IDSYNC_PEPPER_FILE", "IDSYNC_MASTER_KEY_FILE",
		"IDSYNC_DIRECTORY_URL", "IDSYNC_HEALTH_GRPC_ADDR", "IDSYNC_LINK_DETECTION",
		"IDSYNC_REMOTE_TIMEOUT", "IDSYNC_SYNC_INTERVAL", "IDSYNC_SYNC_SETTLE_DELAY",
		"IDSYNC_PROBE_INTERVAL", "IDSYNC_RETRY_BASE", "IDSYNC_RETRY_MULTIPLIER",
		"IDSYNC_RETRY_MAX_DELAY", "IDSYNC_MAX_RETRIES", "IDSYNC_PHONE_MAX_ACCOUNTS",
		"IDSYNC_PASSWORD_HISTORY", "IDSYNC_CONFLICT_RETRIES", "IDSYNC_CONFLICT_TTL",
		"IDSYNC_RATE_LIMIT_CREDENTIALS", "IDSYNC_RATE_LIMIT_OPERATIONS", "IDSYNC_RATE_LIMIT_POLLING",
		"IDSYNC_KEYRING_SERVICE",
		"IDSYNC_KEYRING_DISABLED", "IDSYNC_SESSION_TTL", "IDSYNC_ISSUER",
		"ENV", "LOG_LEVEL", "LOG_FORMAT", "PORT", "SHUTDOWN_GRACE_PERIOD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_file: /var/lib/idsync/idsync.db
directory_url: https://directory.example.com
remote_timeout: 3s
retry_multiplier: 1.5
max_retries: 7
keyring_disabled: true
port: 9090
rate_limit_credentials: 3/30s
rate_limit_polling: "off"
`), 0o600))

	clearEnv(t)
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("IDSYNC_MAX_RETRIES", "9")
	t.Setenv("IDSYNC_SYNC_INTERVAL", "30")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("IDSYNC_RATE_LIMIT_OPERATIONS", "50/2m")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "/var/lib/idsync/idsync.db", cfg.DatabaseFile)
	require.Equal(t, "https://directory.example.com", cfg.DirectoryURL)
	require.Equal(t, 3*time.Second, cfg.RemoteTimeout)
	require.InDelta(t, 1.5, cfg.RetryMultiplier, 0.0001)
	require.True(t, cfg.KeyringDisabled)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, RateLimit{Requests: 3, Window: 30 * time.Second}, cfg.CredentialsLimit)
	require.Equal(t, RateLimit{}, cfg.PollingLimit)
	require.Equal(t, RateLimit{Requests: 50, Window: 2 * time.Minute}, cfg.OperationsLimit)

	// environment wins over the file
	require.Equal(t, 9, cfg.MaxRetries)
	require.Equal(t, 30*time.Second, cfg.SyncInterval)
	require.Equal(t, "text", cfg.LogFormat)

	// untouched keys keep their defaults
	require.Equal(t, 4, cfg.PhoneMaxAccounts)
	require.Equal(t, "idsync", cfg.Issuer)
}

func TestLoadConfig_ExplicitPathAndErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [not, a, number]\n"), 0o600))
	_, err = LoadConfig(bad)
	require.ErrorContains(t, err, "failed to parse config file")

	badLimit := filepath.Join(t.TempDir(), "limit.yaml")
	require.NoError(t, os.WriteFile(badLimit, []byte("rate_limit_credentials: lots/1m\n"), 0o600))
	_, err = LoadConfig(badLimit)
	require.ErrorContains(t, err, "invalid request count")
}

func TestLoadConfig_MalformedEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("IDSYNC_PASSWORD_HISTORY", "many")
	t.Setenv("IDSYNC_REMOTE_TIMEOUT", "soon")
	t.Setenv("IDSYNC_KEYRING_DISABLED", "perhaps")
	t.Setenv("IDSYNC_RATE_LIMIT_CREDENTIALS", "5 per minute")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.PasswordHistory)
	require.Equal(t, 5*time.Second, cfg.RemoteTimeout)
	require.False(t, cfg.KeyringDisabled)
	require.Equal(t, RateLimit{Requests: 5, Window: time.Minute}, cfg.CredentialsLimit)
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		in   string
		want RateLimit
	}{
		{"5/1m", RateLimit{Requests: 5, Window: time.Minute}},
		{" 100 / 30s ", RateLimit{Requests: 100, Window: 30 * time.Second}},
		{"10s", RateLimit{Requests: 1, Window: 10 * time.Second}},
		{"off", RateLimit{}},
		{"0", RateLimit{}},
	}
	for _, tt := range tests {
		got, err := ParseRateLimit(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "x/1m", "-1/1m", "5/soon", "5/0s"} {
		_, err := ParseRateLimit(bad)
		require.Error(t, err, bad)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative directory url", func(c *Config) { c.DirectoryURL = "directory.local" }, "directory_url"},
		{"unknown link detection", func(c *Config) { c.LinkDetection = "magic" }, "link_detection"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"port out of range", func(c *Config) { c.Port = 70000 }, "port"},
		{"zero timeout", func(c *Config) { c.RemoteTimeout = 0 }, "remote_timeout must be positive"},
		{"max below base", func(c *Config) { c.RetryMaxDelay = time.Millisecond }, "retry_max_delay must not be below"},
		{"shrinking multiplier", func(c *Config) { c.RetryMultiplier = 0.5 }, "retry_multiplier"},
		{"no retries", func(c *Config) { c.MaxRetries = 0 }, "max_retries must be at least 1"},
		{"no phone accounts", func(c *Config) { c.PhoneMaxAccounts = 0 }, "phone_max_accounts"},
		{"missing database", func(c *Config) { c.DatabaseFile = "" }, "database_file is required"},
		{"limit without window", func(c *Config) { c.OperationsLimit = RateLimit{Requests: 3} }, "rate_limit_operations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
