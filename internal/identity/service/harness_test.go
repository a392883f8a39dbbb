package service

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/connectivity"
	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/schedule"
	"github.com/aussiebroadwan/idsync/internal/identity/secure"
	"github.com/aussiebroadwan/idsync/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/aussiebroadwan/idsync/pkg/jwtx"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type testLink struct{ down atomic.Bool }

func (l *testLink) Link(context.Context) (bool, domain.QualityTier, error) {
	if l.down.Load() {
		return false, domain.QualityNone, nil
	}
	return true, domain.QualityWiFi, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc     *Service
	store   *sqlite.Store
	mem     *directory.Memory
	link    *testLink
	clock   *testClock
	monitor *connectivity.Monitor
	signer  *jwtx.SessionSigner
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := slogx.Discard()

	st, err := sqlite.NewStore(sqlite.FileDSN(filepath.Join(dir, "idsync.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	key, err := cryptox.LoadOrCreateMasterKey(filepath.Join(dir, "master.key"))
	require.NoError(t, err)
	sealer, err := cryptox.NewSealer(key)
	require.NoError(t, err)

	mem := directory.NewMemory()
	link := &testLink{}
	mon := connectivity.New(link, connectivity.HTTPProber{Pinger: mem}, nil, connectivity.Options{Logger: logger})

	signer, err := jwtx.NewEphemeralSessionSigner("idsync-test", time.Minute)
	require.NoError(t, err)

	sched := schedule.New(schedule.Policy{Base: time.Millisecond, Multiplier: 2, MaxDelay: 8 * time.Millisecond}, logger)

	svc, err := New(Deps{
		Store:     st,
		Remote:    mem,
		Monitor:   mon,
		Secure:    secure.NewChain(logger, secure.NewEncrypted(st.Secrets(), sealer)),
		Sealer:    sealer,
		Scheduler: sched,
		Sessions:  signer,
		Logger:    logger,
		Config:    cfg,
	})
	require.NoError(t, err)

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.Now = clock.Now

	return &harness{
		svc:     svc,
		store:   st,
		mem:     mem,
		link:    link,
		clock:   clock,
		monitor: mon,
		signer:  signer,
	}
}

// offline takes the link down; online restores it and the directory.
func (h *harness) offline() { h.link.down.Store(true) }

func (h *harness) online() {
	h.link.down.Store(false)
	h.mem.SetOffline(false)
}

// unreachable keeps the link but makes the directory fail.
func (h *harness) unreachable() {
	h.link.down.Store(false)
	h.mem.SetOffline(true)
}

func (h *harness) register(t *testing.T, email, username, password string) domain.Result {
	t.Helper()
	res, err := h.svc.Register(context.Background(), RegisterInput{
		Email:            email,
		Username:         username,
		Password:         password,
		SecurityQuestion: "first pet?",
		SecurityAnswer:   "Rex",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

func (h *harness) countOps(t *testing.T, status domain.OperationStatus) int {
	t.Helper()
	n, err := h.store.Operations().CountByStatus(context.Background(), status)
	require.NoError(t, err)
	return n
}
