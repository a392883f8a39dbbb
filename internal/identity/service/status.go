package service

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

// SyncStatus summarizes the queue and connectivity.
func (s *Service) SyncStatus(ctx context.Context) (domain.Status, error) {
	ops := s.store.Operations()

	pending, err := ops.CountByStatus(ctx, domain.OpStatusPending)
	if err != nil {
		return domain.Status{}, err
	}
	failed, err := ops.CountByStatus(ctx, domain.OpStatusFailed)
	if err != nil {
		return domain.Status{}, err
	}
	unsynced, err := s.store.Identities().CountUnsynced(ctx)
	if err != nil {
		return domain.Status{}, err
	}

	return domain.Status{
		Pending:      pending,
		Failed:       failed,
		Unsynced:     unsynced,
		InProgress:   s.orchestrator.InProgress(),
		LastSyncAt:   s.orchestrator.LastSyncAt(),
		Connectivity: s.monitor.State(),
	}, nil
}

// RetryFailed moves permanently failed operations back into the queue.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	n, err := s.store.Operations().ResetFailed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("failed operations requeued", "count", n)
	}
	return n, nil
}

type Availability struct {
	Available bool `json:"available"`
	Count     int  `json:"count"`
	Max       int  `json:"max"`
}

// PhoneAvailability counts accounts using phone. The remote count is taken
// into account when the directory answers.
func (s *Service) PhoneAvailability(ctx context.Context, phone string) (Availability, error) {
	phone = strings.TrimSpace(phone)
	a := Availability{Max: s.cfg.PhoneMaxAccounts}
	if phone == "" {
		a.Available = true
		return a, nil
	}

	count, err := s.phoneCount(ctx, phone, 0)
	if err != nil {
		return Availability{}, err
	}
	a.Count = count
	a.Available = a.Count < a.Max
	return a, nil
}

// phoneCount is the larger of the local and remote counts for phone, with
// remoteSelf records subtracted from the remote side.
func (s *Service) phoneCount(ctx context.Context, phone string, remoteSelf int) (int, error) {
	local, err := s.store.Identities().CountByPhone(ctx, phone)
	if err != nil {
		return 0, err
	}
	count := local

	if _, reachable := s.reachable(ctx); reachable {
		rctx, cancel := s.remoteCtx(ctx)
		remote, err := s.remote.CountByPhone(rctx, phone)
		cancel()
		if err == nil {
			count = max(local, remote-remoteSelf)
		} else {
			s.logger.Warn("remote phone count failed, using local count", "error", err)
		}
	}
	return count, nil
}
