package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/schedule"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/aussiebroadwan/idsync/pkg/idx"
	"github.com/cenkalti/backoff/v4"
)

// DrainReport summarizes one pass over the queue.
type DrainReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Queue persists remote writes that could not be made inline and replays
// them with capped exponential backoff.
type Queue struct {
	Store         store.Store
	Remote        directory.Remote
	Sealer        *cryptox.Sealer
	Scheduler     *schedule.Scheduler
	Logger        *slog.Logger
	MaxRetries    int
	Batch         int
	RemoteTimeout time.Duration
	Now           func() time.Time

	emit func(domain.Event)
}

func (q *Queue) now() time.Time {
	if q.Now == nil {
		return time.Now().UTC()
	}
	return q.Now()
}

func (q *Queue) publish(e domain.Event) {
	if q.emit != nil {
		q.emit(e)
	}
}

// Enqueue persists a new pending operation due immediately.
func (q *Queue) Enqueue(ctx context.Context, identityID string, payload domain.OperationPayload) (domain.Operation, error) {
	if payload == nil {
		return domain.Operation{}, fmt.Errorf("%w: nil payload", domain.ErrUnknownOperation)
	}
	now := q.now()
	op := domain.Operation{
		ID:          idx.NewAt(now).String(),
		Kind:        payload.Kind(),
		IdentityID:  identityID,
		Payload:     payload,
		Status:      domain.OpStatusPending,
		RetryCount:  0,
		MaxRetries:  q.MaxRetries,
		NextRetryAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.Store.Operations().Enqueue(ctx, op); err != nil {
		return domain.Operation{}, fmt.Errorf("failed to enqueue %s: %w", op.Kind, err)
	}
	q.Logger.Info("operation queued", "operation_id", op.ID, "kind", op.Kind, "identity_id", identityID)
	return op, nil
}

// EnqueueCreate queues an IDENTITY_CREATE unless one is already pending.
func (q *Queue) EnqueueCreate(ctx context.Context, ident domain.Identity, password string) error {
	pending, err := q.Store.Operations().ExistsPending(ctx, ident.ID, domain.OpIdentityCreate)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	sealed, err := q.Sealer.SealString(password)
	if err != nil {
		return err
	}
	_, err = q.Enqueue(ctx, ident.ID, domain.CreatePayload{Identity: ident, SealedPassword: sealed})
	return err
}

// Drain processes due operations one at a time. Failures are rescheduled
// or, once out of attempts, marked failed. The store only hands out an
// identity's oldest operation, so Drain lists again after a pass that made
// progress. An identity with a failure in this call is not touched again.
func (q *Queue) Drain(ctx context.Context) (DrainReport, error) {
	var report DrainReport
	blocked := make(map[string]bool)

	for ctx.Err() == nil {
		ops, err := q.Store.Operations().ListDue(ctx, q.now(), q.Batch)
		if err != nil {
			return report, fmt.Errorf("failed to list due operations: %w", err)
		}

		progressed := false
		for _, op := range ops {
			if ctx.Err() != nil {
				break
			}
			if blocked[op.IdentityID] {
				continue
			}
			report.Processed++

			err := q.dispatch(ctx, op)
			if err == nil {
				if err := q.Store.Operations().Delete(ctx, op.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
					return report, fmt.Errorf("failed to remove completed operation: %w", err)
				}
				progressed = true
				report.Succeeded++
				q.Logger.Info("operation synced", "operation_id", op.ID, "kind", op.Kind)
				q.publish(domain.Event{
					Kind:        domain.EventOperationSynced,
					OperationID: op.ID,
					IdentityID:  op.IdentityID,
					At:          q.now(),
				})
				continue
			}

			blocked[op.IdentityID] = true
			failed, err := q.recordFailure(ctx, op, err)
			if err != nil {
				return report, err
			}
			if failed {
				report.Failed++
			} else {
				report.Retried++
			}
		}
		if !progressed {
			break
		}
	}

	remaining, err := q.Store.Operations().CountByStatus(ctx, domain.OpStatusPending)
	if err != nil {
		return report, err
	}
	report.Remaining = remaining
	return report, nil
}

// recordFailure reschedules op or marks it failed. The delay uses the retry
// count before this failure.
func (q *Queue) recordFailure(ctx context.Context, op domain.Operation, cause error) (bool, error) {
	retryCount := op.RetryCount + 1
	msg := cause.Error()

	var perm *backoff.PermanentError
	if errors.As(cause, &perm) || retryCount >= op.MaxRetries {
		if err := q.Store.Operations().MarkFailed(ctx, op.ID, retryCount, msg, q.now()); err != nil {
			return false, fmt.Errorf("failed to mark operation failed: %w", err)
		}
		q.Logger.Error("operation failed permanently",
			"operation_id", op.ID, "kind", op.Kind, "attempts", retryCount, "error", cause)
		q.publish(domain.Event{
			Kind:        domain.EventOperationFailed,
			OperationID: op.ID,
			IdentityID:  op.IdentityID,
			Err:         msg,
			At:          q.now(),
		})
		return true, nil
	}

	now := q.now()
	next := now.Add(q.Scheduler.Delay(op.RetryCount))
	if err := q.Store.Operations().MarkRetry(ctx, op.ID, retryCount, next, msg, now); err != nil {
		return false, fmt.Errorf("failed to reschedule operation: %w", err)
	}
	q.Logger.Warn("operation will be retried",
		"operation_id", op.ID, "kind", op.Kind, "retry_count", retryCount, "next_retry_at", next, "error", cause)
	return false, nil
}

func (q *Queue) dispatch(ctx context.Context, op domain.Operation) error {
	switch p := op.Payload.(type) {
	case domain.CreatePayload:
		password, err := q.Sealer.OpenString(p.SealedPassword)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unseal password: %w", err))
		}
		identityID := op.IdentityID
		if identityID == "" {
			identityID = p.Identity.ID
		}
		return classifyRemote(q.Push(ctx, identityID, password))
	case domain.CredentialPayload:
		return classifyRemote(q.updateCredential(ctx, op.IdentityID, p))
	case domain.DeletePayload:
		return classifyRemote(q.deleteRemote(ctx, p))
	default:
		reason := op.LastError
		if reason == "" {
			reason = string(op.Kind)
		}
		return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrUnknownOperation, reason))
	}
}

// classifyRemote marks answers that retrying cannot change as permanent.
func classifyRemote(err error) error {
	if err == nil {
		return nil
	}
	if cat, ok := directory.CategoryOf(err); ok {
		if cat == directory.CategoryWrongCredential || cat == directory.CategoryDisabled {
			return backoff.Permanent(err)
		}
		return err
	}
	if errors.Is(err, directory.ErrInvalid) || errors.Is(err, directory.ErrAlreadyExists) {
		return backoff.Permanent(err)
	}
	return err
}

func (q *Queue) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := q.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultConfig.RemoteTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Push creates the provider account, writes the current local row to the
// directory and marks the row synced. The account comes first so a document
// is only written once the email is proven ours. If the row is gone there is
// nothing to push.
func (q *Queue) Push(ctx context.Context, identityID, password string) error {
	ident, err := q.Store.Identities().Get(ctx, identityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		q.Logger.Info("identity removed before sync, skipping create", "identity_id", identityID)
		return nil
	case err != nil:
		return err
	}

	rctx, cancel := q.remoteCtx(ctx)
	err = q.Remote.CreateAccount(rctx, ident.Email, password)
	cancel()
	if errors.Is(err, directory.ErrAlreadyExists) {
		// Only ours if the same password opens it.
		rctx, cancel = q.remoteCtx(ctx)
		signInErr := q.Remote.SignIn(rctx, ident.Email, password)
		cancel()
		if signInErr != nil {
			cat, _ := directory.CategoryOf(signInErr)
			if cat == directory.CategoryWrongCredential || cat == directory.CategoryDisabled {
				return fmt.Errorf("provider account: %w: %w", ErrEmailTaken, err)
			}
			return fmt.Errorf("provider sign-in: %w", signInErr)
		}
		err = nil
	}
	if err != nil {
		return fmt.Errorf("provider account: %w", err)
	}

	doc := ident.Document()
	rctx, cancel = q.remoteCtx(ctx)
	err = q.Remote.Upsert(rctx, doc)
	cancel()
	if errors.Is(err, directory.ErrAlreadyExists) {
		return fmt.Errorf("directory upsert: %w: %w", ErrUsernameTaken, err)
	}
	if err != nil {
		return fmt.Errorf("directory upsert: %w", err)
	}

	now := q.now()
	_, err = q.Store.Identities().Update(ctx, identityID, now, func(id *domain.Identity) error {
		id.RemoteID = doc.RemoteID
		id.SyncedToServer = true
		id.LastSyncAt = &now
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (q *Queue) updateCredential(ctx context.Context, identityID string, p domain.CredentialPayload) error {
	next, err := q.Sealer.OpenString(p.SealedNext)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unseal password: %w", err))
	}
	var current string
	if len(p.SealedCurrent) > 0 {
		if current, err = q.Sealer.OpenString(p.SealedCurrent); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unseal password: %w", err))
		}
	}

	rctx, cancel := q.remoteCtx(ctx)
	err = q.Remote.UpdatePassword(rctx, p.Email, current, next)
	cancel()
	if cat, ok := directory.CategoryOf(err); ok && cat == directory.CategoryWrongCredential && current != "" {
		// A previous attempt may have landed before the operation was removed.
		rctx, cancel := q.remoteCtx(ctx)
		if q.Remote.SignIn(rctx, p.Email, next) == nil {
			err = nil
		}
		cancel()
	}
	if err != nil {
		return fmt.Errorf("provider password: %w", err)
	}

	ident, err := q.Store.Identities().Get(ctx, identityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	if !ident.SyncedToServer {
		return nil
	}

	rctx, cancel = q.remoteCtx(ctx)
	defer cancel()
	if err := q.Remote.Upsert(rctx, ident.Document()); err != nil {
		return fmt.Errorf("directory upsert: %w", err)
	}
	return nil
}

func (q *Queue) deleteRemote(ctx context.Context, p domain.DeletePayload) error {
	password, err := q.Sealer.OpenString(p.SealedPassword)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unseal password: %w", err))
	}
	remoteID := p.RemoteID
	if remoteID == "" {
		remoteID = domain.RemoteIDFor(p.Email)
	}

	rctx, cancel := q.remoteCtx(ctx)
	err = q.Remote.Delete(rctx, remoteID)
	cancel()
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("directory delete: %w", err)
	}

	rctx, cancel = q.remoteCtx(ctx)
	err = q.Remote.DeleteAccount(rctx, p.Email, password)
	cancel()
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("provider delete: %w", err)
	}
	return nil
}
