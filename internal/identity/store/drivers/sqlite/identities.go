package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
)

const identityColumns = `id, remote_id, email, username, phone, password, auth_method,
	name, role, security_question, security_answer, synced_to_server, last_sync_at,
	created_at, updated_at`

type identitiesRepo struct {
	repo
}

func (r *identitiesRepo) Create(ctx context.Context, id domain.Identity) error {
	args, err := identityArgs(id)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO identities (`+identityColumns+`, email_key, username_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, domain.FoldKey(id.Email), domain.FoldKey(id.Username))...,
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) Get(ctx context.Context, id string) (domain.Identity, error) {
	return r.getOne(ctx, r.q, `id = ?`, id)
}

func (r *identitiesRepo) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	return r.getOne(ctx, r.q, `email_key = ?`, domain.FoldKey(email))
}

func (r *identitiesRepo) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	return r.getOne(ctx, r.q, `username_key = ?`, domain.FoldKey(username))
}

func (r *identitiesRepo) GetByLoginKey(ctx context.Context, key string) (domain.Identity, error) {
	id, err := r.GetByEmail(ctx, key)
	if !errors.Is(err, store.ErrNotFound) {
		return id, err
	}
	return r.GetByUsername(ctx, key)
}

func (r *identitiesRepo) Update(
	ctx context.Context,
	id string,
	at time.Time,
	fn func(*domain.Identity) error,
) (domain.Identity, error) {
	var out domain.Identity
	err := r.inTx(ctx, func(q DBTX) error {
		cur, err := r.getOne(ctx, q, `id = ?`, id)
		if err != nil {
			return err
		}
		cur.UpdatedAt = at.UTC()
		if err := fn(&cur); err != nil {
			return err
		}
		cur.ID = id
		if err := replace(ctx, q, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}

func (r *identitiesRepo) Replace(ctx context.Context, id domain.Identity) error {
	return replace(ctx, r.q, id)
}

func replace(ctx context.Context, q DBTX, id domain.Identity) error {
	args, err := identityArgs(id)
	if err != nil {
		return err
	}

	// args[0] is the id; it moves to the WHERE clause.
	res, err := q.ExecContext(ctx, `
		UPDATE identities SET
			remote_id = ?, email = ?, username = ?, phone = ?, password = ?, auth_method = ?,
			name = ?, role = ?, security_question = ?, security_answer = ?,
			synced_to_server = ?, last_sync_at = ?, created_at = ?, updated_at = ?,
			email_key = ?, username_key = ?
		WHERE id = ?`,
		append(args[1:], domain.FoldKey(id.Email), domain.FoldKey(id.Username), id.ID)...,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireAffected(res)
}

func (r *identitiesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *identitiesRepo) CountByPhone(ctx context.Context, phone string) (int, error) {
	if phone == "" {
		return 0, nil
	}
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities WHERE phone = ?`, phone).Scan(&n)
	return n, err
}

func (r *identitiesRepo) ListUnsynced(ctx context.Context) ([]domain.Identity, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE synced_to_server = 0 ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *identitiesRepo) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities WHERE synced_to_server = 0`).Scan(&n)
	return n, err
}

func (r *identitiesRepo) getOne(ctx context.Context, q DBTX, where string, arg any) (domain.Identity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE `+where, arg)
	id, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(s scanner) (domain.Identity, error) {
	var (
		id                 domain.Identity
		password, answer   string
		authMethod         string
		synced             bool
		lastSync           sql.NullInt64
		createdAt, updated int64
	)
	if err := s.Scan(
		&id.ID, &id.RemoteID, &id.Email, &id.Username, &id.Phone, &password, &authMethod,
		&id.Name, &id.Role, &id.SecurityQuestion, &answer, &synced, &lastSync,
		&createdAt, &updated,
	); err != nil {
		return domain.Identity{}, err
	}

	if err := unmarshalHash(password, &id.Password); err != nil {
		return domain.Identity{}, fmt.Errorf("identity %s password: %w", id.ID, err)
	}
	if err := unmarshalHash(answer, &id.SecurityAnswer); err != nil {
		return domain.Identity{}, fmt.Errorf("identity %s security answer: %w", id.ID, err)
	}
	id.AuthMethod = domain.AuthMethod(authMethod)
	id.SyncedToServer = synced
	id.LastSyncAt = fromNullNanos(lastSync)
	id.CreatedAt = fromNanos(createdAt)
	id.UpdatedAt = fromNanos(updated)
	return id, nil
}

// identityArgs returns values in identityColumns order.
func identityArgs(id domain.Identity) ([]any, error) {
	password, err := marshalHash(id.Password)
	if err != nil {
		return nil, err
	}
	answer, err := marshalHash(id.SecurityAnswer)
	if err != nil {
		return nil, err
	}

	return []any{
		id.ID, id.RemoteID, id.Email, id.Username, id.Phone, password, string(id.AuthMethod),
		id.Name, id.Role, id.SecurityQuestion, answer, id.SyncedToServer, toNullNanos(id.LastSyncAt),
		toNanos(id.CreatedAt), toNanos(id.UpdatedAt),
	}, nil
}

func marshalHash(h domain.PasswordHash) (string, error) {
	if h.IsZero() {
		return "", nil
	}
	b, err := json.Marshal(h)
	return string(b), err
}

func unmarshalHash(s string, h *domain.PasswordHash) error {
	if s == "" {
		*h = domain.PasswordHash{}
		return nil
	}
	return json.Unmarshal([]byte(s), h)
}
