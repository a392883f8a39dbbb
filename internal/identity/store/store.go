package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the device-local database.
// Sub-repositories are reached through methods so a Tx-scoped Store can hand
// out repos bound to the same transaction.
type Store interface {
	Identities() Identities
	Operations() Operations
	PasswordHistory() PasswordHistory
	Secrets() Secrets

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Identities interface {
	// Create inserts a new identity. Email and username are unique
	// case-insensitively; a clash returns ErrAlreadyExists.
	Create(ctx context.Context, id domain.Identity) error

	Get(ctx context.Context, id string) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
	GetByUsername(ctx context.Context, username string) (domain.Identity, error)

	// GetByLoginKey matches key against email first, then username.
	GetByLoginKey(ctx context.Context, key string) (domain.Identity, error)

	// Update re-reads the row, applies fn and writes the result back in one
	// write transaction, stamping UpdatedAt with at. Concurrent flows
	// therefore merge into the latest record.
	Update(ctx context.Context, id string, at time.Time, fn func(*domain.Identity) error) (domain.Identity, error)

	// Replace overwrites every column of an existing row.
	Replace(ctx context.Context, id domain.Identity) error

	Delete(ctx context.Context, id string) error

	CountByPhone(ctx context.Context, phone string) (int, error)
	ListUnsynced(ctx context.Context) ([]domain.Identity, error)
	CountUnsynced(ctx context.Context) (int, error)
}

type Operations interface {
	// Enqueue persists op as given; the queue fills in ids and schedule.
	Enqueue(ctx context.Context, op domain.Operation) error

	// ListDue returns pending operations with attempts left whose
	// next_retry_at is not after now, oldest first. An operation is only due
	// once no older pending or failed operation exists for its identity, so
	// an identity's writes reach the directory in the order they were made.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Operation, error)

	Get(ctx context.Context, id string) (domain.Operation, error)
	Delete(ctx context.Context, id string) error

	// DeleteForIdentity drops pending and failed work for an identity,
	// keeping kinds listed in keep.
	DeleteForIdentity(ctx context.Context, identityID string, keep ...domain.OperationKind) error

	MarkRetry(ctx context.Context, id string, retryCount int, next time.Time, lastErr string, at time.Time) error
	MarkFailed(ctx context.Context, id string, retryCount int, lastErr string, at time.Time) error

	CountByStatus(ctx context.Context, status domain.OperationStatus) (int, error)

	// ResetFailed moves failed operations back to pending with a fresh
	// attempt budget. Returns how many were reset.
	ResetFailed(ctx context.Context, now time.Time) (int, error)

	ExistsPending(ctx context.Context, identityID string, kind domain.OperationKind) (bool, error)
}

type PasswordHistory interface {
	// Push records a prior hash and trims the list to the newest cap entries.
	Push(ctx context.Context, identityID string, h domain.PasswordHash, cap int, at time.Time) error

	// List returns prior hashes newest first.
	List(ctx context.Context, identityID string) ([]domain.PasswordHash, error)

	DeleteAll(ctx context.Context, identityID string) error
}

// Secrets is a namespaced key/value table for sealed blobs.
type Secrets interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}
