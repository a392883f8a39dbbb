package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/idsync/internal/identity/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer DB stays open

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) base() repo { return repo{q: t.tx} }

func (t *txStore) Identities() store.Identities           { return &identitiesRepo{t.base()} }
func (t *txStore) Operations() store.Operations           { return &operationsRepo{t.base()} }
func (t *txStore) PasswordHistory() store.PasswordHistory { return &historyRepo{t.base()} }
func (t *txStore) Secrets() store.Secrets                 { return &secretsRepo{t.base()} }

func (t *txStore) ApplyMigrations() error { return nil } // apply before starting a tx
