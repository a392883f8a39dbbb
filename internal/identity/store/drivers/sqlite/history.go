package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

type historyRepo struct {
	repo
}

func (r *historyRepo) Push(
	ctx context.Context,
	identityID string,
	h domain.PasswordHash,
	cap int,
	at time.Time,
) error {
	raw, err := marshalHash(h)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(q DBTX) error {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO password_history (identity_id, hash, created_at) VALUES (?, ?, ?)`,
			identityID, raw, toNanos(at),
		); err != nil {
			return err
		}

		_, err := q.ExecContext(ctx, `
			DELETE FROM password_history
			WHERE identity_id = ? AND id NOT IN (
				SELECT id FROM password_history
				WHERE identity_id = ?
				ORDER BY id DESC
				LIMIT ?
			)`,
			identityID, identityID, max(cap, 0),
		)
		return err
	})
}

func (r *historyRepo) List(ctx context.Context, identityID string) ([]domain.PasswordHash, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT hash FROM password_history WHERE identity_id = ? ORDER BY id DESC`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PasswordHash
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var h domain.PasswordHash
		if err := unmarshalHash(raw, &h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *historyRepo) DeleteAll(ctx context.Context, identityID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM password_history WHERE identity_id = ?`, identityID)
	return err
}
