package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/aussiebroadwan/idsync/pkg/idx"
)

// Login authenticates key (an email or a username) with password,
// reconciling the local and remote records on the way.
func (s *Service) Login(ctx context.Context, key, password string) (domain.Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Result{}, ErrNotFound
	}
	kind := domain.KindOfKey(key)
	log := s.logger.With("key_kind", kind)

	var local *domain.Identity
	if id, err := s.store.Identities().GetByLoginKey(ctx, key); err == nil {
		local = &id
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Result{}, fmt.Errorf("failed to read local identity: %w", err)
	}

	connected, reachable := s.reachable(ctx)
	var remote *domain.Identity
	if reachable {
		doc, err := s.lookupRemote(ctx, key, kind, local)
		switch {
		case err == nil:
			remote = doc
		case ctx.Err() != nil:
			return domain.Result{}, ctx.Err()
		case isUnavailable(err):
			log.Warn("directory lookup failed, continuing as unreachable", "error", err)
			reachable = false
		default:
			return domain.Result{}, fmt.Errorf("directory lookup: %w", err)
		}
	}

	cls := Classify(ClassifyInput{
		Local:     local,
		Remote:    remote,
		Connected: connected,
		Reachable: reachable,
		LoginKey:  key,
		KeyKind:   kind,
	})
	log.Info("login classified", "scenario", cls.Scenario, "conflicts", len(cls.Conflicts))

	switch cls.Scenario {
	case domain.ScenarioOffline:
		if local == nil {
			return domain.Result{}, ErrCannotVerify
		}
		return s.loginLocal(ctx, *local, password, "signed in offline: no network connection")
	case domain.ScenarioLocalOnlyRemoteUnreachable:
		return s.loginLocal(ctx, *local, password, "signed in offline: directory unreachable")
	case domain.ScenarioNoDataAccessible:
		return domain.Result{}, ErrCannotVerify
	case domain.ScenarioNotFound:
		return domain.Result{}, ErrNotFound
	case domain.ScenarioRemoteOnly:
		return s.loginRemoteOnly(ctx, *remote, password)
	case domain.ScenarioLocalOnly:
		return s.loginLocalOnly(ctx, *local, password)
	case domain.ScenarioBothPresentConsistent:
		return s.loginConsistent(ctx, *local, *remote, password)
	case domain.ScenarioDataConflict, domain.ScenarioCredentialConflict:
		return s.loginConflict(ctx, *local, *remote, password, cls)
	case domain.ScenarioDifferentIdentities:
		return s.loginDifferentIdentities(ctx, *local, *remote, password)
	}
	return domain.Result{}, fmt.Errorf("unhandled login scenario %q", cls.Scenario)
}

// lookupRemote finds the remote record for key. With a local record the
// lookup goes by its email first, since email is the identity key; only a
// miss falls back to the username.
func (s *Service) lookupRemote(
	ctx context.Context,
	key string,
	kind domain.KeyKind,
	local *domain.Identity,
) (*domain.Identity, error) {
	if local != nil {
		doc, err := s.findOne(ctx, directory.FieldEmail, local.Email)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	if kind == domain.KeyEmail {
		if local != nil {
			return nil, nil
		}
		return s.findOne(ctx, directory.FieldEmail, key)
	}
	return s.findOne(ctx, directory.FieldUsername, key)
}

func (s *Service) findOne(ctx context.Context, field directory.Field, value string) (*domain.Identity, error) {
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()

	docs, err := s.remote.FindBy(rctx, field, value)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (s *Service) verifyLocal(ctx context.Context, ident domain.Identity, password string) error {
	err := s.creds.Verify(ctx, ident, password)
	if err == nil {
		return nil
	}
	if !errors.Is(err, cryptox.ErrMismatch) {
		s.logger.Error("local credential check failed", "identity_id", ident.ID, "error", err)
	}
	return ErrWrongCredential
}

func (s *Service) success(ident domain.Identity, mode domain.Mode, msg string) domain.Result {
	return domain.Result{
		Success:      true,
		Mode:         mode,
		Message:      msg,
		Identity:     publicOf(ident),
		SessionToken: s.issueSession(ident, mode),
	}
}

func (s *Service) loginLocal(ctx context.Context, local domain.Identity, password, msg string) (domain.Result, error) {
	if err := s.verifyLocal(ctx, local, password); err != nil {
		return domain.Result{}, err
	}
	return s.success(local, domain.ModeOffline, msg), nil
}

// loginRemoteOnly trusts the provider and caches the identity locally.
func (s *Service) loginRemoteOnly(ctx context.Context, remote domain.Identity, password string) (domain.Result, error) {
	rctx, cancel := s.remoteCtx(ctx)
	err := s.remote.SignIn(rctx, remote.Email, password)
	cancel()
	if err != nil {
		if isUnavailable(err) {
			return domain.Result{}, ErrCannotVerify
		}
		return domain.Result{}, mapAuthError(err)
	}

	h, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Result{}, err
	}
	now := s.now()
	ident := remote
	ident.ID = idx.NewAt(now).String()
	ident.RemoteID = domain.RemoteIDFor(remote.Email)
	ident.Password = h
	ident.SyncedToServer = true
	ident.LastSyncAt = &now
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	ident.UpdatedAt = now

	if err := s.store.Identities().Create(ctx, ident); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.logger.Warn("remote identity not cached: username in use on this device", "remote_id", ident.RemoteID)
			remote.ID = ""
			return s.success(remote, domain.ModeOnline, "signed in; not saved on this device because the username is in use here"), nil
		}
		return domain.Result{}, fmt.Errorf("failed to cache remote identity: %w", err)
	}
	if o := s.creds.StoreSecurely(ctx, ident.ID, h); !o.Stored {
		s.logger.Warn("credential kept only in the identity row", "identity_id", ident.ID, "error", o.Err)
	}

	return s.success(ident, domain.ModeSynced, "signed in and downloaded to this device"), nil
}

// loginLocalOnly verifies locally and tries to publish the record inline,
// queueing it if that fails.
func (s *Service) loginLocalOnly(ctx context.Context, local domain.Identity, password string) (domain.Result, error) {
	if err := s.verifyLocal(ctx, local, password); err != nil {
		return domain.Result{}, err
	}

	err := s.queue.Push(ctx, local.ID, password)
	if err == nil {
		if fresh, gerr := s.store.Identities().Get(ctx, local.ID); gerr == nil {
			local = fresh
		}
		return s.success(local, domain.ModeSynced, "signed in and synced to the directory"), nil
	}
	if ctx.Err() != nil {
		return domain.Result{}, ctx.Err()
	}

	s.logger.Warn("inline sync failed, queueing", "identity_id", local.ID, "error", err)
	if qerr := s.queue.EnqueueCreate(ctx, local, password); qerr != nil {
		s.logger.Error("failed to queue identity create", "identity_id", local.ID, "error", qerr)
	}
	return s.success(local, domain.ModeOffline, "signed in locally; sync to the directory is queued"), nil
}

// loginConsistent verifies locally, or with the provider when the local hash
// is stale, then refreshes the cached profile from the remote record.
func (s *Service) loginConsistent(
	ctx context.Context,
	local, remote domain.Identity,
	password string,
) (domain.Result, error) {
	var freshHash *domain.PasswordHash
	if err := s.verifyLocal(ctx, local, password); err != nil {
		rctx, cancel := s.remoteCtx(ctx)
		serr := s.remote.SignIn(rctx, local.Email, password)
		cancel()
		if serr != nil {
			if isUnavailable(serr) {
				return domain.Result{}, ErrWrongCredential
			}
			return domain.Result{}, mapAuthError(serr)
		}
		h, herr := cryptox.HashPassword(password)
		if herr != nil {
			return domain.Result{}, herr
		}
		freshHash = &h
	}

	now := s.now()
	updated, err := s.store.Identities().Update(ctx, local.ID, now, func(id *domain.Identity) error {
		id.Phone = remote.Phone
		id.Name = remote.Name
		id.Role = remote.Role
		id.SecurityQuestion = remote.SecurityQuestion
		id.AuthMethod = remote.AuthMethod
		if !remote.SecurityAnswer.IsZero() {
			id.SecurityAnswer = remote.SecurityAnswer
		}
		if freshHash != nil {
			id.Password = *freshHash
		}
		id.RemoteID = domain.RemoteIDFor(id.Email)
		id.SyncedToServer = true
		id.LastSyncAt = &now
		return nil
	})
	if err != nil {
		s.logger.Error("failed to refresh local identity", "identity_id", local.ID, "error", err)
		updated = local
	}
	if freshHash != nil {
		if o := s.creds.StoreSecurely(ctx, local.ID, *freshHash); !o.Stored {
			s.logger.Warn("credential kept only in the identity row", "identity_id", local.ID, "error", o.Err)
		}
	}

	return s.success(updated, domain.ModeOnline, "signed in"), nil
}

// loginDifferentIdentities handles a username that names one identity here
// and another in the directory. The remote identity is never cached, since
// it would shadow the local account.
func (s *Service) loginDifferentIdentities(
	ctx context.Context,
	local, remote domain.Identity,
	password string,
) (domain.Result, error) {
	if err := s.verifyLocal(ctx, local, password); err == nil {
		return s.success(local, domain.ModeOnline, "signed in to the identity stored on this device"), nil
	}

	rctx, cancel := s.remoteCtx(ctx)
	err := s.remote.SignIn(rctx, remote.Email, password)
	cancel()
	if err != nil {
		if isUnavailable(err) {
			return domain.Result{}, ErrWrongCredential
		}
		return domain.Result{}, mapAuthError(err)
	}

	remote.ID = ""
	return s.success(remote, domain.ModeOnline, "signed in to the directory identity; not saved on this device"), nil
}
