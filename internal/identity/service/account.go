package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
)

func (s *Service) getIdentity(ctx context.Context, id string) (domain.Identity, error) {
	ident, err := s.store.Identities().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	return ident, err
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, identityID, current, next string) (domain.Result, error) {
	ident, err := s.getIdentity(ctx, identityID)
	if err != nil {
		return domain.Result{}, err
	}
	if err := s.verifyLocal(ctx, ident, current); err != nil {
		return domain.Result{}, err
	}
	return s.setPassword(ctx, ident, current, next)
}

// ResetPassword is the recovery flow, authorized by the security answer.
func (s *Service) ResetPassword(ctx context.Context, email, securityAnswer, next string) (domain.Result, error) {
	ident, err := s.store.Identities().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Result{}, ErrNotFound
	}
	if err != nil {
		return domain.Result{}, err
	}
	if ident.SecurityAnswer.IsZero() {
		return domain.Result{}, ErrWrongCredential
	}
	if err := cryptox.VerifyPassword(normalizeAnswer(securityAnswer), ident.SecurityAnswer); err != nil {
		return domain.Result{}, ErrWrongCredential
	}
	return s.setPassword(ctx, ident, "", next)
}

// setPassword rotates the local hash and pushes the change to the provider,
// inline when possible. An empty current password marks a recovery reset.
func (s *Service) setPassword(ctx context.Context, ident domain.Identity, current, next string) (domain.Result, error) {
	if err := validatePassword(next); err != nil {
		return domain.Result{}, err
	}
	reused, err := s.creds.WasPreviouslyUsed(ctx, ident, next)
	if err != nil {
		return domain.Result{}, err
	}
	if reused {
		return domain.Result{}, ErrPasswordReused
	}

	h, err := cryptox.HashPassword(next)
	if err != nil {
		return domain.Result{}, err
	}
	updated, err := s.creds.Rotate(ctx, ident.ID, h, s.now())
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to update password: %w", err)
	}

	payload := domain.CredentialPayload{
		Email:    updated.Email,
		RemoteID: domain.RemoteIDFor(updated.Email),
		Password: h,
	}
	if payload.SealedNext, err = s.sealer.SealString(next); err != nil {
		return domain.Result{}, err
	}
	if current != "" {
		if payload.SealedCurrent, err = s.sealer.SealString(current); err != nil {
			return domain.Result{}, err
		}
	}

	// A pending create still carries the old password, so the update has to
	// queue behind it.
	createPending, err := s.store.Operations().ExistsPending(ctx, ident.ID, domain.OpIdentityCreate)
	if err != nil {
		return domain.Result{}, err
	}

	if updated.SyncedToServer && !createPending {
		if _, reachable := s.reachable(ctx); reachable {
			err := s.queue.updateCredential(ctx, ident.ID, payload)
			if err == nil {
				return domain.Result{
					Success:  true,
					Mode:     domain.ModeSynced,
					Message:  "password changed",
					Identity: publicOf(updated),
				}, nil
			}
			s.logger.Warn("password write-through failed, queueing", "identity_id", ident.ID, "error", err)
		}
	}

	if _, err := s.queue.Enqueue(ctx, ident.ID, payload); err != nil {
		return domain.Result{}, err
	}
	return domain.Result{
		Success:  true,
		Mode:     domain.ModeQueued,
		Message:  "password changed on this device; directory update is queued",
		Identity: publicOf(updated),
	}, nil
}

// DeleteAccount removes the identity locally and, directly or through the
// queue, from the directory and provider.
func (s *Service) DeleteAccount(ctx context.Context, identityID, password string) (domain.Result, error) {
	ident, err := s.getIdentity(ctx, identityID)
	if err != nil {
		return domain.Result{}, err
	}
	if err := s.verifyLocal(ctx, ident, password); err != nil {
		return domain.Result{}, err
	}

	sealed, err := s.sealer.SealString(password)
	if err != nil {
		return domain.Result{}, err
	}
	payload := domain.DeletePayload{
		Email:          ident.Email,
		RemoteID:       domain.RemoteIDFor(ident.Email),
		SealedPassword: sealed,
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Operations().DeleteForIdentity(ctx, ident.ID, domain.OpAccountDelete); err != nil {
			return err
		}
		if err := tx.PasswordHistory().DeleteAll(ctx, ident.ID); err != nil {
			return err
		}
		return tx.Identities().Delete(ctx, ident.ID)
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to delete identity: %w", err)
	}
	if err := s.creds.Forget(ctx, ident.ID); err != nil {
		s.logger.Warn("failed to clear stored credentials", "identity_id", ident.ID, "error", err)
	}
	s.dropConflictsFor(ident.ID)

	public := publicOf(ident)
	if _, reachable := s.reachable(ctx); reachable {
		err := s.queue.deleteRemote(ctx, payload)
		if err == nil {
			return domain.Result{Success: true, Mode: domain.ModeSynced, Message: "account deleted", Identity: public}, nil
		}
		if cat, ok := directory.CategoryOf(err); ok && cat == directory.CategoryWrongCredential {
			s.logger.Warn("provider rejected account deletion", "identity_id", ident.ID, "error", err)
		} else {
			s.logger.Warn("remote deletion failed, queueing", "identity_id", ident.ID, "error", err)
		}
	}

	if _, err := s.queue.Enqueue(ctx, ident.ID, payload); err != nil {
		return domain.Result{}, err
	}
	return domain.Result{
		Success:  true,
		Mode:     domain.ModeQueued,
		Message:  "account deleted on this device; directory deletion is queued",
		Identity: public,
	}, nil
}
