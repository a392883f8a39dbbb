// Package service is the identity engine: registration, login
// reconciliation, conflict resolution and the offline operation queue.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/connectivity"
	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/schedule"
	"github.com/aussiebroadwan/idsync/internal/identity/secure"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/aussiebroadwan/idsync/pkg/jwtx"
)

var (
	ErrCannotVerify         = errors.New("cannot verify credentials: no local record and directory unreachable")
	ErrNotFound             = errors.New("identity not found")
	ErrWrongCredential      = errors.New("wrong credentials")
	ErrAccountDisabled      = errors.New("account disabled")
	ErrRateLimited          = errors.New("too many attempts")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrWeakPassword         = errors.New("password must be at least 8 characters and mix letters and digits")
	ErrInvalidAuthMethod    = errors.New("unsupported auth method")
	ErrEmailTaken           = errors.New("email already registered")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrPhoneUnavailable     = errors.New("phone number has reached its account limit")
	ErrPasswordReused       = errors.New("password was used recently")
	ErrIncompleteResolution = errors.New("every conflicting field needs exactly one resolution")
	ErrConflictNotFound     = errors.New("conflict not found")
	ErrConflictBusy         = errors.New("conflict is already being resolved")
	ErrSyncInProgress       = errors.New("sync already in progress")
	ErrDirectoryUnreachable = errors.New("directory unreachable")
)

type Config struct {
	MaxRetries       int
	PhoneMaxAccounts int
	PasswordHistory  int
	ConflictRetries  int
	DrainBatch       int

	RemoteTimeout time.Duration
	SettleDelay   time.Duration
	SyncInterval  time.Duration
	ConflictTTL   time.Duration
}

var DefaultConfig = Config{
	MaxRetries:       5,
	PhoneMaxAccounts: 4,
	PasswordHistory:  5,
	ConflictRetries:  3,
	DrainBatch:       100,
	RemoteTimeout:    5 * time.Second,
	SettleDelay:      2 * time.Second,
	SyncInterval:     time.Minute,
	ConflictTTL:      15 * time.Minute,
}

func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.MaxRetries > 0 {
		d.MaxRetries = c.MaxRetries
	}
	if c.PhoneMaxAccounts > 0 {
		d.PhoneMaxAccounts = c.PhoneMaxAccounts
	}
	if c.PasswordHistory > 0 {
		d.PasswordHistory = c.PasswordHistory
	}
	if c.ConflictRetries > 0 {
		d.ConflictRetries = c.ConflictRetries
	}
	if c.DrainBatch > 0 {
		d.DrainBatch = c.DrainBatch
	}
	if c.RemoteTimeout > 0 {
		d.RemoteTimeout = c.RemoteTimeout
	}
	if c.SettleDelay > 0 {
		d.SettleDelay = c.SettleDelay
	}
	if c.SyncInterval > 0 {
		d.SyncInterval = c.SyncInterval
	}
	if c.ConflictTTL > 0 {
		d.ConflictTTL = c.ConflictTTL
	}
	return d
}

// Connectivity is the subset of connectivity.Monitor the engine consults.
type Connectivity interface {
	State() domain.ConnectivityState
	IsConnected(ctx context.Context) bool
	IsReachable(ctx context.Context) bool
	Subscribe() (<-chan connectivity.Transition, func())
}

type Deps struct {
	Store     store.Store
	Remote    directory.Remote
	Monitor   Connectivity
	Secure    *secure.Chain
	Sealer    *cryptox.Sealer
	Scheduler *schedule.Scheduler
	Sessions  *jwtx.SessionSigner // optional
	Logger    *slog.Logger
	Config    Config
}

// Service is the engine's single entry point. One instance per process.
type Service struct {
	// Now is the clock used for every timestamp the engine writes.
	Now func() time.Time

	store    store.Store
	remote   directory.Remote
	monitor  Connectivity
	sealer   *cryptox.Sealer
	sched    *schedule.Scheduler
	sessions *jwtx.SessionSigner
	logger   *slog.Logger
	cfg      Config

	creds        *Credentials
	queue        *Queue
	orchestrator *Orchestrator
	events       *broadcaster

	conflictsMu sync.Mutex
	conflicts   map[string]*conflictTicket
}

func New(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("service: store is required")
	case d.Remote == nil:
		return nil, errors.New("service: remote is required")
	case d.Monitor == nil:
		return nil, errors.New("service: monitor is required")
	case d.Secure == nil:
		return nil, errors.New("service: secure storage is required")
	case d.Sealer == nil:
		return nil, errors.New("service: sealer is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Scheduler == nil {
		d.Scheduler = schedule.New(schedule.DefaultPolicy, d.Logger)
	}

	s := &Service{
		Now:       time.Now,
		store:     d.Store,
		remote:    d.Remote,
		monitor:   d.Monitor,
		sealer:    d.Sealer,
		sched:     d.Scheduler,
		sessions:  d.Sessions,
		logger:    d.Logger,
		cfg:       d.Config.withDefaults(),
		events:    newBroadcaster(),
		conflicts: make(map[string]*conflictTicket),
	}

	s.creds = &Credentials{
		Store:      d.Store,
		Secure:     d.Secure,
		HistoryCap: s.cfg.PasswordHistory,
		Logger:     d.Logger,
	}
	s.queue = &Queue{
		Store:         d.Store,
		Remote:        d.Remote,
		Sealer:        d.Sealer,
		Scheduler:     d.Scheduler,
		Logger:        d.Logger,
		MaxRetries:    s.cfg.MaxRetries,
		Batch:         s.cfg.DrainBatch,
		RemoteTimeout: s.cfg.RemoteTimeout,
		Now:           func() time.Time { return s.now() },
		emit:          s.events.publish,
	}
	s.orchestrator = &Orchestrator{
		Queue:       s.queue,
		Monitor:     d.Monitor,
		Scheduler:   d.Scheduler,
		Logger:      d.Logger,
		SettleDelay: s.cfg.SettleDelay,
		Interval:    s.cfg.SyncInterval,
		emit:        s.events.publish,
	}
	return s, nil
}

func (s *Service) now() time.Time { return s.Now().UTC() }

func (s *Service) Credentials() *Credentials { return s.creds }
func (s *Service) Queue() *Queue { return s.queue }
func (s *Service) Orchestrator() *Orchestrator { return s.orchestrator }

// Start runs the background sync triggers.
func (s *Service) Start() { s.orchestrator.Start() }

func (s *Service) Stop() { s.orchestrator.Stop() }

// SyncNow drains the queue once. See Orchestrator.SyncNow.
func (s *Service) SyncNow(ctx context.Context) (DrainReport, error) {
	return s.orchestrator.SyncNow(ctx)
}

// remoteCtx bounds a single remote call.
func (s *Service) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.RemoteTimeout)
}

// reachable reports whether the directory answers a probe, assuming the
// link is up.
func (s *Service) reachable(ctx context.Context) (connected, reachable bool) {
	connected = s.monitor.IsConnected(ctx)
	if !connected {
		return false, false
	}
	return true, s.monitor.IsReachable(ctx)
}

// isUnavailable reports errors that mean "treat the directory as
// unreachable" rather than a real answer.
func isUnavailable(err error) bool {
	if errors.Is(err, directory.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	cat, ok := directory.CategoryOf(err)
	return ok && cat == directory.CategoryNetwork
}

// mapAuthError converts provider failures to service errors. Network
// failures come back unchanged so callers can degrade.
func mapAuthError(err error) error {
	cat, ok := directory.CategoryOf(err)
	if !ok {
		return err
	}
	switch cat {
	case directory.CategoryWrongCredential:
		return ErrWrongCredential
	case directory.CategoryDisabled:
		return ErrAccountDisabled
	case directory.CategoryRateLimited:
		return ErrRateLimited
	}
	return err
}

func (s *Service) issueSession(ident domain.Identity, mode domain.Mode) string {
	if s.sessions == nil {
		return ""
	}
	subject := ident.ID
	if subject == "" {
		subject = ident.RemoteID
	}
	token, err := s.sessions.Issue(subject, ident.Email, ident.Username, string(mode), s.now())
	if err != nil {
		s.logger.Error("failed to issue session token", "identity_id", subject, "error", err)
		return ""
	}
	return token
}

func publicOf(ident domain.Identity) *domain.PublicIdentity {
	p := ident.Public()
	return &p
}
