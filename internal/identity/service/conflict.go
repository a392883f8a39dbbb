package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/idx"
	"github.com/cenkalti/backoff/v4"
)

// conflictTicket is an unresolved login conflict held until the caller
// submits resolutions.
type conflictTicket struct {
	ID         string
	IdentityID string
	Scenario   domain.Scenario
	Conflicts  []domain.Conflict
	Remote     domain.Identity
	CreatedAt  time.Time

	// resolving is set while a ResolveConflict call owns the ticket.
	resolving bool
}

func (t *conflictTicket) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !now.Before(t.CreatedAt.Add(ttl))
}

func (s *Service) loginConflict(
	ctx context.Context,
	local, remote domain.Identity,
	password string,
	cls Classification,
) (domain.Result, error) {
	if err := s.verifyLocal(ctx, local, password); err != nil {
		return domain.Result{}, err
	}

	now := s.now()
	t := &conflictTicket{
		ID:         idx.NewAt(now).String(),
		IdentityID: local.ID,
		Scenario:   cls.Scenario,
		Conflicts:  cls.Conflicts,
		Remote:     remote,
		CreatedAt:  now,
	}

	// A new login supersedes any earlier ticket for the same identity.
	s.conflictsMu.Lock()
	s.evictExpiredLocked(now)
	for id, old := range s.conflicts {
		if old.IdentityID == local.ID && !old.resolving {
			delete(s.conflicts, id)
		}
	}
	s.conflicts[t.ID] = t
	s.conflictsMu.Unlock()

	s.logger.Info("login conflict opened",
		"conflict_id", t.ID, "identity_id", local.ID, "scenario", t.Scenario, "fields", conflictFields(t.Conflicts))

	return domain.Result{
		Success:            false,
		Message:            "local and directory records disagree; resolve the conflicts to continue",
		RequiresResolution: true,
		ConflictType:       t.Scenario,
		Conflicts:          t.Conflicts,
		ConflictID:         t.ID,
		Identity:           publicOf(local),
	}, nil
}

func conflictFields(cs []domain.Conflict) string {
	fields := make([]string, len(cs))
	for i, c := range cs {
		fields[i] = c.Field
	}
	return strings.Join(fields, ",")
}

// PendingConflict returns an open ticket's conflicts.
func (s *Service) PendingConflict(id string) (domain.Scenario, []domain.Conflict, bool) {
	s.conflictsMu.Lock()
	defer s.conflictsMu.Unlock()
	t, ok := s.liveTicketLocked(id)
	if !ok {
		return "", nil, false
	}
	return t.Scenario, t.Conflicts, true
}

// liveTicketLocked returns the ticket unless it has expired, in which case
// it is evicted.
func (s *Service) liveTicketLocked(id string) (*conflictTicket, bool) {
	t, ok := s.conflicts[id]
	if !ok {
		return nil, false
	}
	if t.expired(s.now(), s.cfg.ConflictTTL) && !t.resolving {
		delete(s.conflicts, id)
		return nil, false
	}
	return t, true
}

func (s *Service) evictExpiredLocked(now time.Time) {
	for id, t := range s.conflicts {
		if t.expired(now, s.cfg.ConflictTTL) && !t.resolving {
			delete(s.conflicts, id)
		}
	}
}

// claimConflict marks the ticket as being resolved. The returned release
// reopens it; a resolved ticket is dropped instead.
func (s *Service) claimConflict(id string) (*conflictTicket, func(), error) {
	s.conflictsMu.Lock()
	defer s.conflictsMu.Unlock()
	t, ok := s.liveTicketLocked(id)
	if !ok {
		return nil, nil, ErrConflictNotFound
	}
	if t.resolving {
		return nil, nil, ErrConflictBusy
	}
	t.resolving = true
	return t, func() {
		s.conflictsMu.Lock()
		t.resolving = false
		s.conflictsMu.Unlock()
	}, nil
}

// ResolveConflict merges the records per resolutions. The directory is
// written first; the local row is only overwritten after that succeeds, so
// a failure leaves the local store as it was and the ticket open for retry.
func (s *Service) ResolveConflict(
	ctx context.Context,
	conflictID string,
	resolutions []domain.Resolution,
) (domain.Result, error) {
	t, release, err := s.claimConflict(conflictID)
	if err != nil {
		return domain.Result{}, err
	}
	defer release()

	values, err := resolveValues(t.Conflicts, resolutions)
	if err != nil {
		return domain.Result{}, err
	}

	local, err := s.store.Identities().Get(ctx, t.IdentityID)
	if errors.Is(err, store.ErrNotFound) {
		s.dropConflict(conflictID)
		return domain.Result{}, ErrConflictNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to read local identity: %w", err)
	}
	if err := s.checkResolvedValues(ctx, local, t.Remote, values); err != nil {
		return domain.Result{}, err
	}

	now := s.now()
	merged := local
	for field, v := range values {
		merged.SetFieldValue(field, v)
	}
	merged.RemoteID = domain.RemoteIDFor(merged.Email)
	merged.SyncedToServer = true
	merged.LastSyncAt = &now
	merged.UpdatedAt = now

	open := domain.Result{
		Success:            false,
		RequiresResolution: true,
		ConflictType:       t.Scenario,
		Conflicts:          t.Conflicts,
		ConflictID:         t.ID,
		Identity:           publicOf(local),
	}

	err = s.sched.Retry(ctx, s.cfg.ConflictRetries, func() error {
		rctx, cancel := s.remoteCtx(ctx)
		defer cancel()
		err := s.remote.Upsert(rctx, merged.Document())
		if errors.Is(err, directory.ErrInvalid) || errors.Is(err, directory.ErrAlreadyExists) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		s.logger.Warn("conflict commit: remote write failed", "conflict_id", t.ID, "error", err)
		open.Message = "remote write failed"
		if errors.Is(err, directory.ErrAlreadyExists) {
			open.Message = "remote write failed: username already taken in the directory"
		}
		return open, nil
	}

	var updated domain.Identity
	err = s.sched.Retry(ctx, s.cfg.ConflictRetries, func() error {
		var err error
		updated, err = s.store.Identities().Update(ctx, t.IdentityID, now, func(id *domain.Identity) error {
			for field, v := range values {
				id.SetFieldValue(field, v)
			}
			id.RemoteID = merged.RemoteID
			id.SyncedToServer = true
			id.LastSyncAt = &now
			return nil
		})
		if errors.Is(err, store.ErrAlreadyExists) || errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		s.logger.Error("conflict commit: local write failed after remote write", "conflict_id", t.ID, "error", err)
		open.Message = "local write failed"
		if errors.Is(err, store.ErrAlreadyExists) {
			open.Message = "local write failed: username already taken on this device"
		}
		return open, nil
	}

	s.dropConflict(conflictID)
	s.logger.Info("login conflict resolved", "conflict_id", t.ID, "identity_id", t.IdentityID)
	return s.success(updated, domain.ModeSynced, "conflict resolved"), nil
}

// resolveValues checks that every conflicting field has exactly one
// resolution and returns the chosen value per field.
func resolveValues(conflicts []domain.Conflict, resolutions []domain.Resolution) (map[string]string, error) {
	byField := make(map[string]domain.Conflict, len(conflicts))
	for _, c := range conflicts {
		byField[c.Field] = c
	}

	values := make(map[string]string, len(conflicts))
	for _, r := range resolutions {
		c, ok := byField[r.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in conflict", ErrIncompleteResolution, r.Field)
		}
		if _, dup := values[r.Field]; dup {
			return nil, fmt.Errorf("%w: %q resolved twice", ErrIncompleteResolution, r.Field)
		}

		var v string
		switch r.Choice {
		case domain.ChoiceKeepLocal:
			v = c.Local
		case domain.ChoiceKeepRemote:
			v = c.Remote
		case domain.ChoiceCustom:
			v = strings.TrimSpace(r.Value)
		default:
			return nil, fmt.Errorf("%w: unknown choice %q for %q", ErrIncompleteResolution, r.Choice, r.Field)
		}

		switch {
		case r.Field == domain.FieldUsername && !validUsername(v):
			return nil, ErrInvalidUsername
		case r.Field == domain.FieldAuthMethod && !domain.AuthMethod(v).Valid():
			return nil, fmt.Errorf("%w: invalid auth method %q", ErrIncompleteResolution, v)
		}
		values[r.Field] = v
	}

	if len(values) != len(byField) {
		var missing []string
		for _, c := range conflicts {
			if _, ok := values[c.Field]; !ok {
				missing = append(missing, c.Field)
			}
		}
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteResolution, strings.Join(missing, ", "))
	}
	return values, nil
}

// checkResolvedValues applies the registration rules that depend on other
// records: a username must stay unique on this device and a new phone must
// be under its account cap. The identity itself is not counted.
func (s *Service) checkResolvedValues(
	ctx context.Context,
	local, remote domain.Identity,
	values map[string]string,
) error {
	if u, ok := values[domain.FieldUsername]; ok && domain.FoldKey(u) != domain.FoldKey(local.Username) {
		other, err := s.store.Identities().GetByUsername(ctx, u)
		switch {
		case err == nil && other.ID != local.ID:
			return ErrUsernameTaken
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
	}

	phone, ok := values[domain.FieldPhone]
	if !ok || phone == "" || phone == local.Phone {
		return nil
	}
	// The directory record of this identity may already carry the phone.
	var self int
	if remote.Phone == phone {
		self = 1
	}
	count, err := s.phoneCount(ctx, phone, self)
	if err != nil {
		return err
	}
	if count >= s.cfg.PhoneMaxAccounts {
		return ErrPhoneUnavailable
	}
	return nil
}

func (s *Service) dropConflict(id string) {
	s.conflictsMu.Lock()
	delete(s.conflicts, id)
	s.conflictsMu.Unlock()
}

func (s *Service) dropConflictsFor(identityID string) {
	s.conflictsMu.Lock()
	defer s.conflictsMu.Unlock()
	for id, t := range s.conflicts {
		if t.IdentityID == identityID {
			delete(s.conflicts, id)
		}
	}
}
