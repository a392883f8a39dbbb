package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func pendingOps(t *testing.T, h *harness) []domain.Operation {
	t.Helper()
	ops, err := h.store.Operations().ListDue(context.Background(), h.clock.Now().Add(24*time.Hour), 100)
	require.NoError(t, err)
	return ops
}

func TestQueue_DrainIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	h.offline()
	res := h.register(t, "a@x.com", "ann", "correct-horse-1")

	// A second create for the same identity, as left behind by a crash
	// between the remote write and the queue delete.
	ident, err := h.store.Identities().Get(ctx, res.Identity.ID)
	require.NoError(t, err)
	sealed, err := h.svc.sealer.SealString("correct-horse-1")
	require.NoError(t, err)
	_, err = h.svc.Queue().Enqueue(ctx, ident.ID, domain.CreatePayload{Identity: ident, SealedPassword: sealed})
	require.NoError(t, err)
	require.Equal(t, 2, h.countOps(t, domain.OpStatusPending))
	require.Len(t, pendingOps(t, h), 1, "the duplicate waits behind the first create")

	report, err := h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, DrainReport{Processed: 2, Succeeded: 2}, report)

	report, err = h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, DrainReport{}, report)

	require.Equal(t, 1, h.mem.Len())
	doc, err := h.mem.Get(ctx, domain.RemoteIDFor("a@x.com"))
	require.NoError(t, err)
	require.Equal(t, "ann", doc.Username)
}

func TestQueue_EnqueueCreateSkipsDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	h.offline()
	res := h.register(t, "a@x.com", "ann", "correct-horse-1")
	ident, err := h.store.Identities().Get(ctx, res.Identity.ID)
	require.NoError(t, err)

	require.NoError(t, h.svc.Queue().EnqueueCreate(ctx, ident, "correct-horse-1"))
	require.Equal(t, 1, h.countOps(t, domain.OpStatusPending))
}

func TestQueue_RetriesThenFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{MaxRetries: 3})

	var attempts atomic.Int32
	h.mem.SetFailure(func(op string) error {
		if op == "createaccount" {
			attempts.Add(1)
			return directory.ErrUnavailable
		}
		return nil
	})

	h.offline()
	h.register(t, "a@x.com", "ann", "correct-horse-1")

	events, cancel := h.svc.Subscribe()
	defer cancel()

	ops := pendingOps(t, h)
	require.Len(t, ops, 1)
	opID := ops[0].ID

	report, err := h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Retried)

	op, err := h.store.Operations().Get(ctx, opID)
	require.NoError(t, err)
	require.Equal(t, 1, op.RetryCount)
	require.True(t, op.NextRetryAt.After(h.clock.Now()), "next attempt is scheduled in the future")
	require.Contains(t, op.LastError, "unavailable")

	// Not due yet.
	report, err = h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Processed)

	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
		_, err := h.svc.Queue().Drain(ctx)
		require.NoError(t, err)
	}

	require.EqualValues(t, 3, attempts.Load())
	require.Equal(t, 1, h.countOps(t, domain.OpStatusFailed))
	require.Zero(t, h.countOps(t, domain.OpStatusPending))

	op, err = h.store.Operations().Get(ctx, opID)
	require.NoError(t, err)
	require.Equal(t, domain.OpStatusFailed, op.Status)
	require.Equal(t, 3, op.RetryCount)

	var failed int
	for done := false; !done; {
		select {
		case e := <-events:
			if e.Kind == domain.EventOperationFailed {
				failed++
				require.Equal(t, opID, e.OperationID)
			}
		default:
			done = true
		}
	}
	require.Equal(t, 1, failed)
}

func TestQueue_PermanentFailureAndRetryFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	h.offline()
	h.register(t, "a@x.com", "ann", "correct-horse-1")

	squatter := domain.Identity{Email: "z@x.com", Username: "ANN", AuthMethod: domain.AuthMethodEmail}
	require.NoError(t, h.mem.Upsert(ctx, squatter.Document()))

	report, err := h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed, "a taken username is not retried")

	ops := pendingOps(t, h)
	require.Empty(t, ops)
	require.Equal(t, 1, h.countOps(t, domain.OpStatusFailed))

	require.NoError(t, h.mem.Delete(ctx, squatter.Document().RemoteID))

	n, err := h.svc.RetryFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	report, err = h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)

	local, err := h.store.Identities().GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, local.SyncedToServer)
}

func TestQueue_UpdateWaitsForFailedCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	h.offline()
	res := h.register(t, "a@x.com", "ann", "password-0")
	changed, err := h.svc.ChangePassword(ctx, res.Identity.ID, "password-0", "password-1")
	require.NoError(t, err)
	require.Equal(t, domain.ModeQueued, changed.Mode)
	require.Equal(t, 2, h.countOps(t, domain.OpStatusPending))
	h.online()

	var failures atomic.Int32
	h.mem.SetFailure(func(op string) error {
		if op == "createaccount" && failures.Add(1) == 1 {
			return directory.ErrUnavailable
		}
		return nil
	})

	report, err := h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, DrainReport{Processed: 1, Retried: 1, Remaining: 2}, report,
		"the password update is not attempted before its account exists")
	require.Zero(t, h.countOps(t, domain.OpStatusFailed))

	h.clock.Advance(time.Second)
	report, err = h.svc.Queue().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, DrainReport{Processed: 2, Succeeded: 2}, report)

	require.NoError(t, h.mem.SignIn(ctx, "a@x.com", "password-1"))
	cat, ok := directory.CategoryOf(h.mem.SignIn(ctx, "a@x.com", "password-0"))
	require.True(t, ok)
	require.Equal(t, directory.CategoryWrongCredential, cat)
}

func TestQueue_UnknownPayloadIsPermanent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})

	err := h.svc.Queue().dispatch(context.Background(), domain.Operation{
		ID:        "op-1",
		Kind:      "PROFILE_PATCH",
		LastError: "unknown operation kind",
	})
	require.ErrorIs(t, err, domain.ErrUnknownOperation)
	var perm *backoff.PermanentError
	require.True(t, errors.As(err, &perm))

	_, err = h.svc.Queue().Enqueue(context.Background(), "id-1", nil)
	require.ErrorIs(t, err, domain.ErrUnknownOperation)
}

func TestQueue_CredentialUpdateReplays(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	res := h.register(t, "a@x.com", "ann", "password-0")
	require.Equal(t, domain.ModeSynced, res.Mode)

	h.offline()
	changed, err := h.svc.ChangePassword(ctx, res.Identity.ID, "password-0", "password-1")
	require.NoError(t, err)
	require.Equal(t, domain.ModeQueued, changed.Mode)

	// The provider still has the old password until the queue drains.
	require.NoError(t, h.mem.SignIn(ctx, "a@x.com", "password-0"))

	h.online()
	report, err := h.svc.SyncNow(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)
	require.NoError(t, h.mem.SignIn(ctx, "a@x.com", "password-1"))

	// Replaying after success is harmless.
	sealedNext, err := h.svc.sealer.SealString("password-1")
	require.NoError(t, err)
	sealedCur, err := h.svc.sealer.SealString("password-0")
	require.NoError(t, err)
	err = h.svc.Queue().updateCredential(ctx, res.Identity.ID, domain.CredentialPayload{
		Email:         "a@x.com",
		RemoteID:      domain.RemoteIDFor("a@x.com"),
		SealedCurrent: sealedCur,
		SealedNext:    sealedNext,
	})
	require.NoError(t, err)
}

func TestSyncNow_Events(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	h.offline()
	h.register(t, "a@x.com", "ann", "correct-horse-1")
	h.online()

	events, cancel := h.svc.Subscribe()
	defer cancel()

	_, err := h.svc.SyncNow(ctx)
	require.NoError(t, err)

	var kinds []domain.EventKind
	for done := false; !done; {
		select {
		case e := <-events:
			kinds = append(kinds, e.Kind)
		default:
			done = true
		}
	}
	require.Equal(t, []domain.EventKind{
		domain.EventDrainStarted,
		domain.EventOperationSynced,
		domain.EventDrainFinished,
	}, kinds)
}

func TestSyncNow_RejectsConcurrentRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, Config{})

	h.svc.Orchestrator().running.Store(true)
	_, err := h.svc.SyncNow(ctx)
	require.ErrorIs(t, err, ErrSyncInProgress)

	h.svc.Orchestrator().running.Store(false)
	_, err = h.svc.SyncNow(ctx)
	require.NoError(t, err)
}
