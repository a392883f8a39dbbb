package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the variable holding the optional YAML config path.
const ConfigFileEnv = "IDSYNC_CONFIG_FILE"

type Config struct {
	DatabaseFile   string `yaml:"database_file"`    // SQLite database file (default: ./idsync.db)
	PepperFile     string `yaml:"pepper_file"`      // Pepper for password hashing (default: ./pepper)
	MasterKeyFile  string `yaml:"master_key_file"`  // Device master key material (default: ./master.key)
	DirectoryURL   string `yaml:"directory_url"`    // Remote directory base URL
	HealthGRPCAddr string `yaml:"health_grpc_addr"` // Optional: probe reachability over gRPC health instead of HTTP
	LinkDetection  string `yaml:"link_detection"`   // auto (inspect interfaces) or static (assume a link) (default: auto)

	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	SettleDelay   time.Duration `yaml:"sync_settle_delay"`
	ProbeInterval time.Duration `yaml:"probe_interval"`

	RetryBase       time.Duration `yaml:"retry_base"`
	RetryMultiplier float64       `yaml:"retry_multiplier"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay"`

	MaxRetries       int `yaml:"max_retries"`
	PhoneMaxAccounts int `yaml:"phone_max_accounts"`
	PasswordHistory  int `yaml:"password_history"`
	ConflictRetries  int `yaml:"conflict_retries"`

	ConflictTTL time.Duration `yaml:"conflict_ttl"` // How long an unresolved login conflict stays open

	// Request budgets per client, written as "requests/window". Zero
	// requests turns a budget off.
	CredentialsLimit RateLimit `yaml:"rate_limit_credentials"` // register, login, reset, password change, delete (default: 5/1m)
	OperationsLimit  RateLimit `yaml:"rate_limit_operations"`  // conflicts, sync run, phone lookup (default: 20/1m)
	PollingLimit     RateLimit `yaml:"rate_limit_polling"`     // sync status and health (default: 100/1m)

	KeyringService  string `yaml:"keyring_service"`
	KeyringDisabled bool   `yaml:"keyring_disabled"`

	SessionTTL time.Duration `yaml:"session_ttl"`
	Issuer     string        `yaml:"issuer"`

	Env                 string        `yaml:"env"`        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        `yaml:"log_level"`  // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        `yaml:"log_format"` // Log format (json, text) (default: json)
	Port                int           `yaml:"port"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseFile:        "idsync.db",
		PepperFile:          "pepper",
		MasterKeyFile:       "master.key",
		DirectoryURL:        "http://localhost:8081",
		LinkDetection:       "auto",
		RemoteTimeout:       5 * time.Second,
		SyncInterval:        time.Minute,
		SettleDelay:         2 * time.Second,
		ProbeInterval:       15 * time.Second,
		RetryBase:           time.Second,
		RetryMultiplier:     2,
		RetryMaxDelay:       5 * time.Minute,
		MaxRetries:          5,
		PhoneMaxAccounts:    4,
		PasswordHistory:     5,
		ConflictRetries:     3,
		ConflictTTL:         15 * time.Minute,
		CredentialsLimit:    RateLimit{Requests: 5, Window: time.Minute},
		OperationsLimit:     RateLimit{Requests: 20, Window: time.Minute},
		PollingLimit:        RateLimit{Requests: 100, Window: time.Minute},
		KeyringService:      "idsync",
		SessionTTL:          15 * time.Minute,
		Issuer:              "idsync",
		Env:                 "dev",
		LogLevel:            "info",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// LoadConfig starts from the defaults, overlays the YAML file at path (or
// $IDSYNC_CONFIG_FILE when path is empty) and then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.DatabaseFile = getEnvOrDefault("IDSYNC_DATABASE_FILE", cfg.DatabaseFile)
	cfg.PepperFile = getEnvOrDefault("IDSYNC_PEPPER_FILE", cfg.PepperFile)
	cfg.MasterKeyFile = getEnvOrDefault("IDSYNC_MASTER_KEY_FILE", cfg.MasterKeyFile)
	cfg.DirectoryURL = getEnvOrDefault("IDSYNC_DIRECTORY_URL", cfg.DirectoryURL)
	cfg.HealthGRPCAddr = getEnvOrDefault("IDSYNC_HEALTH_GRPC_ADDR", cfg.HealthGRPCAddr)
	cfg.LinkDetection = getEnvOrDefault("IDSYNC_LINK_DETECTION", cfg.LinkDetection)

	cfg.RemoteTimeout = getEnvDurationOrDefault("IDSYNC_REMOTE_TIMEOUT", cfg.RemoteTimeout)
	cfg.SyncInterval = getEnvDurationOrDefault("IDSYNC_SYNC_INTERVAL", cfg.SyncInterval)
	cfg.SettleDelay = getEnvDurationOrDefault("IDSYNC_SYNC_SETTLE_DELAY", cfg.SettleDelay)
	cfg.ProbeInterval = getEnvDurationOrDefault("IDSYNC_PROBE_INTERVAL", cfg.ProbeInterval)

	cfg.RetryBase = getEnvDurationOrDefault("IDSYNC_RETRY_BASE", cfg.RetryBase)
	cfg.RetryMultiplier = getEnvFloatOrDefault("IDSYNC_RETRY_MULTIPLIER", cfg.RetryMultiplier)
	cfg.RetryMaxDelay = getEnvDurationOrDefault("IDSYNC_RETRY_MAX_DELAY", cfg.RetryMaxDelay)

	cfg.MaxRetries = getEnvIntOrDefault("IDSYNC_MAX_RETRIES", cfg.MaxRetries)
	cfg.PhoneMaxAccounts = getEnvIntOrDefault("IDSYNC_PHONE_MAX_ACCOUNTS", cfg.PhoneMaxAccounts)
	cfg.PasswordHistory = getEnvIntOrDefault("IDSYNC_PASSWORD_HISTORY", cfg.PasswordHistory)
	cfg.ConflictRetries = getEnvIntOrDefault("IDSYNC_CONFLICT_RETRIES", cfg.ConflictRetries)
	cfg.ConflictTTL = getEnvDurationOrDefault("IDSYNC_CONFLICT_TTL", cfg.ConflictTTL)

	cfg.CredentialsLimit = getEnvRateLimitOrDefault("IDSYNC_RATE_LIMIT_CREDENTIALS", cfg.CredentialsLimit)
	cfg.OperationsLimit = getEnvRateLimitOrDefault("IDSYNC_RATE_LIMIT_OPERATIONS", cfg.OperationsLimit)
	cfg.PollingLimit = getEnvRateLimitOrDefault("IDSYNC_RATE_LIMIT_POLLING", cfg.PollingLimit)

	cfg.KeyringService = getEnvOrDefault("IDSYNC_KEYRING_SERVICE", cfg.KeyringService)
	cfg.KeyringDisabled = getEnvBoolOrDefault("IDSYNC_KEYRING_DISABLED", cfg.KeyringDisabled)

	cfg.SessionTTL = getEnvDurationOrDefault("IDSYNC_SESSION_TTL", cfg.SessionTTL)
	cfg.Issuer = getEnvOrDefault("IDSYNC_ISSUER", cfg.Issuer)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)

	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("database_file is required"))
	}
	if u, err := url.Parse(c.DirectoryURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("directory_url %q is not an absolute URL", c.DirectoryURL))
	}
	switch c.LinkDetection {
	case "auto", "static":
	default:
		errs = append(errs, fmt.Errorf("link_detection must be auto or static, got %q", c.LinkDetection))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or text, got %q", c.LogFormat))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"remote_timeout", c.RemoteTimeout},
		{"sync_interval", c.SyncInterval},
		{"sync_settle_delay", c.SettleDelay},
		{"probe_interval", c.ProbeInterval},
		{"retry_base", c.RetryBase},
		{"retry_max_delay", c.RetryMaxDelay},
		{"session_ttl", c.SessionTTL},
		{"conflict_ttl", c.ConflictTTL},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}
	if c.RetryMaxDelay < c.RetryBase {
		errs = append(errs, errors.New("retry_max_delay must not be below retry_base"))
	}
	if c.RetryMultiplier < 1 {
		errs = append(errs, errors.New("retry_multiplier must be at least 1"))
	}

	for _, n := range []struct {
		name string
		v    int
	}{
		{"max_retries", c.MaxRetries},
		{"phone_max_accounts", c.PhoneMaxAccounts},
		{"password_history", c.PasswordHistory},
		{"conflict_retries", c.ConflictRetries},
	} {
		if n.v < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1", n.name))
		}
	}

	for _, l := range []struct {
		name string
		v    RateLimit
	}{
		{"rate_limit_credentials", c.CredentialsLimit},
		{"rate_limit_operations", c.OperationsLimit},
		{"rate_limit_polling", c.PollingLimit},
	} {
		if l.v.Requests < 0 || (l.v.Requests > 0 && l.v.Window <= 0) {
			errs = append(errs, fmt.Errorf("%s %q is not a valid requests/window budget", l.name, l.v))
		}
	}

	return errors.Join(errs...)
}

// RateLimit is a per-client request budget such as "5/1m".
type RateLimit httpx.RateLimit

// ParseRateLimit reads "requests/window". A bare window means one request
// and "off" or "0" disables the budget.
func ParseRateLimit(s string) (RateLimit, error) {
	s = strings.TrimSpace(s)
	if s == "off" || s == "0" {
		return RateLimit{}, nil
	}
	reqs, window, found := strings.Cut(s, "/")
	if !found {
		reqs, window = "1", s
	}
	n, err := strconv.Atoi(strings.TrimSpace(reqs))
	if err != nil || n < 0 {
		return RateLimit{}, fmt.Errorf("invalid request count in rate limit %q", s)
	}
	d, err := time.ParseDuration(strings.TrimSpace(window))
	if err != nil || d <= 0 {
		return RateLimit{}, fmt.Errorf("invalid window in rate limit %q", s)
	}
	return RateLimit{Requests: n, Window: d}, nil
}

func (l RateLimit) String() string { return httpx.RateLimit(l).String() }

func (l *RateLimit) UnmarshalYAML(n *yaml.Node) error {
	var raw string
	if err := n.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseRateLimit(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvRateLimitOrDefault(key string, defaultValue RateLimit) RateLimit {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if l, err := ParseRateLimit(value); err == nil {
		return l
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
