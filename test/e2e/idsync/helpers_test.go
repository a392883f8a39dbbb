package idsync_test

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/app"
	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

/*
 * End-to-end helpers. Each test gets its own in-memory directory served over
 * HTTP and its own engine with a fresh database, so rate limit buckets and
 * queues never leak between tests.
 */

const (
	testEmail    = "ann@example.com"
	testUsername = "ann"
	testPassword = "correct-horse-1"
	testAnswer   = "Rex"
)

type engine struct {
	client    *idsyncsdk.SDKClient
	directory *directory.Memory
	app       *app.Application
}

func setupEngine(t *testing.T, opts ...func(*app.Config)) *engine {
	t.Helper()
	keyring.MockInit()

	logger := slogx.Discard()

	mem := directory.NewMemory()
	dirSrv := httptest.NewServer(directory.NewServer(mem, directory.ServerOptions{Logger: logger}))
	t.Cleanup(dirSrv.Close)

	dir := t.TempDir()
	cfg := app.DefaultConfig()
	cfg.DatabaseFile = filepath.Join(dir, "idsync.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.MasterKeyFile = filepath.Join(dir, "master.key")
	cfg.DirectoryURL = dirSrv.URL
	cfg.LinkDetection = "static"
	cfg.RemoteTimeout = 2 * time.Second
	cfg.ProbeInterval = time.Hour
	cfg.SyncInterval = time.Hour
	cfg.SettleDelay = 10 * time.Millisecond
	cfg.RetryBase = 10 * time.Millisecond
	cfg.RetryMaxDelay = 50 * time.Millisecond
	for _, opt := range opts {
		opt(&cfg)
	}

	application, err := app.New(cfg, app.WithLogger(logger))
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	application.Start()
	t.Cleanup(func() {
		srv.Close()
		if err := application.Stop(); err != nil {
			t.Logf("failed to stop engine: %v", err)
		}
	})

	return &engine{
		client:    idsyncsdk.NewSDKClient(srv.URL),
		directory: mem,
		app:       application,
	}
}

// registerAnn registers the default test identity and asserts it succeeded.
func registerAnn(t *testing.T, e *engine, phone string) *idsyncsdk.Result {
	t.Helper()
	res, err := e.client.Register(t.Context(), idsyncsdk.RegisterRequest{
		Email:            testEmail,
		Username:         testUsername,
		Password:         testPassword,
		Phone:            phone,
		Name:             "Ann",
		SecurityQuestion: "first pet?",
		SecurityAnswer:   testAnswer,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Identity)
	return res
}

// requireAPIError asserts err is an APIError with status and code.
func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *idsyncsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status: %v", err)
	require.Equal(t, code, apiErr.Code)
}
