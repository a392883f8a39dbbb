package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/connectivity"
	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	httpapi "github.com/aussiebroadwan/idsync/internal/identity/http"
	"github.com/aussiebroadwan/idsync/internal/identity/schedule"
	"github.com/aussiebroadwan/idsync/internal/identity/secure"
	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/jwtx"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the identity engine and its HTTP API.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         *sqlite.Store
	sealer     *cryptox.Sealer
	secure     *secure.Chain
	remote     directory.Remote
	grpcProber *connectivity.GRPCProber // nil when probing over HTTP
	monitor    *connectivity.Monitor
	scheduler  *schedule.Scheduler
	signer     *jwtx.SessionSigner

	service *service.Service

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "idsync",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSecurity(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initRemote(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeResources()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP API without starting a listener.
func (app *Application) Handler() http.Handler { return app.router }

func (app *Application) Service() *service.Service { return app.service }

// Start launches the connectivity monitor and the sync orchestrator.
func (app *Application) Start() {
	app.monitor.Refresh(context.Background())
	app.monitor.Start()
	app.service.Start()
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.Start()

	app.logger.Info("idsync starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"directory", app.cfg.DirectoryURL,
		"secure_backends", app.secure.Backends(),
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.stopBackground()
			app.closeResources()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down idsync...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopBackground()
	if err := app.closeResources(); err != nil {
		return err
	}

	app.logger.Info("idsync stopped")
	return nil
}

// Stop halts background work and closes resources without touching the
// HTTP server. It pairs with Start for embedded use.
func (app *Application) Stop() error {
	app.stopBackground()
	return app.closeResources()
}

func (app *Application) stopBackground() {
	app.service.Stop()
	app.monitor.Stop()
}

func (app *Application) closeResources() error {
	if app.grpcProber != nil {
		if err := app.grpcProber.Close(); err != nil {
			app.logger.Error("error closing health client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the local store and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.FileDSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSecurity loads the device master key and builds the secure storage
// chain: OS keyring first, encrypted local table as the fallback.
func (app *Application) initSecurity() error {
	key, err := cryptox.LoadOrCreateMasterKey(app.cfg.MasterKeyFile)
	if err != nil {
		return err
	}
	sealer, err := cryptox.NewSealer(key)
	if err != nil {
		return err
	}
	app.sealer = sealer

	var backends []secure.Backend
	if !app.cfg.KeyringDisabled {
		backends = append(backends, secure.NewKeyring(app.cfg.KeyringService))
	}
	backends = append(backends, secure.NewEncrypted(app.db.Secrets(), sealer))
	app.secure = secure.NewChain(app.logger, backends...)

	app.signer, err = jwtx.NewEphemeralSessionSigner(app.cfg.Issuer, app.cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize session keys: %w", err)
	}
	return nil
}

// initRemote builds the directory client and the connectivity monitor.
func (app *Application) initRemote() error {
	client := directory.NewClient(app.cfg.DirectoryURL, app.cfg.RemoteTimeout)
	app.remote = client

	var prober connectivity.Prober = connectivity.HTTPProber{Pinger: client}
	if app.cfg.HealthGRPCAddr != "" {
		gp, err := connectivity.NewGRPCProber(app.cfg.HealthGRPCAddr, directory.HealthService)
		if err != nil {
			return err
		}
		app.grpcProber = gp
		prober = gp
	}

	var link connectivity.LinkDetector = connectivity.NewInterfaceDetector()
	if app.cfg.LinkDetection == "static" {
		link = connectivity.StaticLink{Connected: true, Quality: domain.QualityUnknown}
	}

	app.scheduler = schedule.New(schedule.Policy{
		Base:       app.cfg.RetryBase,
		Multiplier: app.cfg.RetryMultiplier,
		MaxDelay:   app.cfg.RetryMaxDelay,
	}, app.logger)

	app.monitor = connectivity.New(link, prober, app.scheduler, connectivity.Options{
		ProbeTimeout: app.cfg.RemoteTimeout,
		Interval:     app.cfg.ProbeInterval,
		Logger:       app.logger,
	})
	return nil
}

// initServices builds the engine.
func (app *Application) initServices() error {
	svc, err := service.New(service.Deps{
		Store:     app.db,
		Remote:    app.remote,
		Monitor:   app.monitor,
		Secure:    app.secure,
		Sealer:    app.sealer,
		Scheduler: app.scheduler,
		Sessions:  app.signer,
		Logger:    app.logger,
		Config: service.Config{
			MaxRetries:       app.cfg.MaxRetries,
			PhoneMaxAccounts: app.cfg.PhoneMaxAccounts,
			PasswordHistory:  app.cfg.PasswordHistory,
			ConflictRetries:  app.cfg.ConflictRetries,
			RemoteTimeout:    app.cfg.RemoteTimeout,
			SettleDelay:      app.cfg.SettleDelay,
			SyncInterval:     app.cfg.SyncInterval,
			ConflictTTL:      app.cfg.ConflictTTL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize identity service: %w", err)
	}
	app.service = svc
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer.Verifier(),
		BuildVersion,
		app.db,
		app.monitor,
		httpapi.RateLimits{
			Credentials: httpx.RateLimit(app.cfg.CredentialsLimit),
			Operations:  httpx.RateLimit(app.cfg.OperationsLimit),
			Polling:     httpx.RateLimit(app.cfg.PollingLimit),
		},
		app.logger,
	)

	router.Service = app.service
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
