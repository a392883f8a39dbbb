package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

const operationColumns = `id, kind, identity_id, payload, status, retry_count, max_retries,
	next_retry_at, last_error, created_at, updated_at`

type operationsRepo struct {
	repo
}

func (r *operationsRepo) Enqueue(ctx context.Context, op domain.Operation) error {
	payload, err := domain.EncodePayload(op.Payload)
	if err != nil {
		return err
	}
	status := op.Status
	if status == "" {
		status = domain.OpStatusPending
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO operations (`+operationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.Kind), op.IdentityID, payload, string(status), op.RetryCount, op.MaxRetries,
		toNanos(op.NextRetryAt), op.LastError, toNanos(op.CreatedAt), toNanos(op.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *operationsRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Operation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+operationColumns+` FROM operations AS op
		WHERE status = 'pending' AND retry_count < max_retries AND next_retry_at <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM operations AS prev
			WHERE prev.identity_id = op.identity_id
			  AND (prev.created_at < op.created_at OR (prev.created_at = op.created_at AND prev.id < op.id))
		  )
		ORDER BY created_at, id
		LIMIT ?`,
		toNanos(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *operationsRepo) Get(ctx context.Context, id string) (domain.Operation, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)
	op, err := scanOperation(row)
	if err != nil {
		return domain.Operation{}, mapNotFound(err)
	}
	return op, nil
}

func (r *operationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *operationsRepo) DeleteForIdentity(
	ctx context.Context,
	identityID string,
	keep ...domain.OperationKind,
) error {
	query := `DELETE FROM operations WHERE identity_id = ?`
	args := []any{identityID}
	if len(keep) > 0 {
		query += ` AND kind NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, k := range keep {
			args = append(args, string(k))
		}
	}
	_, err := r.q.ExecContext(ctx, query, args...)
	return err
}

func (r *operationsRepo) MarkRetry(
	ctx context.Context,
	id string,
	retryCount int,
	next time.Time,
	lastErr string,
	at time.Time,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE operations
		SET retry_count = ?, next_retry_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		retryCount, toNanos(next), lastErr, toNanos(at), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *operationsRepo) MarkFailed(
	ctx context.Context,
	id string,
	retryCount int,
	lastErr string,
	at time.Time,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE operations
		SET status = 'failed', retry_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		retryCount, lastErr, toNanos(at), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *operationsRepo) CountByStatus(ctx context.Context, status domain.OperationStatus) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations WHERE status = ?`, string(status)).Scan(&n)
	return n, err
}

func (r *operationsRepo) ResetFailed(ctx context.Context, now time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE operations
		SET status = 'pending', retry_count = 0, next_retry_at = ?, updated_at = ?
		WHERE status = 'failed'`,
		toNanos(now), toNanos(now),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *operationsRepo) ExistsPending(
	ctx context.Context,
	identityID string,
	kind domain.OperationKind,
) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM operations
			WHERE identity_id = ? AND kind = ? AND status = 'pending'
		)`,
		identityID, string(kind),
	).Scan(&exists)
	return exists, err
}

func scanOperation(s scanner) (domain.Operation, error) {
	var (
		op                 domain.Operation
		kind, status       string
		payload            []byte
		next, created, upd int64
	)
	if err := s.Scan(
		&op.ID, &kind, &op.IdentityID, &payload, &status, &op.RetryCount, &op.MaxRetries,
		&next, &op.LastError, &created, &upd,
	); err != nil {
		return domain.Operation{}, err
	}

	op.Kind = domain.OperationKind(kind)
	op.Status = domain.OperationStatus(status)
	op.NextRetryAt = fromNanos(next)
	op.CreatedAt = fromNanos(created)
	op.UpdatedAt = fromNanos(upd)

	// An undecodable payload is returned with a nil Payload so the queue can
	// fail it permanently instead of stalling on it.
	if p, err := domain.DecodePayload(op.Kind, payload); err == nil {
		op.Payload = p
	} else if op.LastError == "" {
		op.LastError = err.Error()
	}
	return op, nil
}
