package sqlite

import (
	"context"
	"time"
)

type secretsRepo struct {
	repo
}

func (r *secretsRepo) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var v []byte
	err := r.q.QueryRowContext(ctx,
		`SELECT value FROM secrets WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&v)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return v, nil
}

func (r *secretsRepo) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO secrets (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, toNanos(time.Now()),
	)
	return err
}

func (r *secretsRepo) Delete(ctx context.Context, namespace, key string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM secrets WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}
