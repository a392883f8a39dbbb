package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestMock_GetMapsNoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM identities WHERE id = \?`).
		WithArgs("01A").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Identities().Get(context.Background(), "01A")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_HistoryPushRollsBackWhenTrimFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO password_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`(?s)DELETE FROM password_history`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.PasswordHistory().Push(context.Background(), "01A", testHash("h1"), 5, time.Now())
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_UpdateRollsBackWhenWriteFails(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{
		"id", "remote_id", "email", "username", "phone", "password", "auth_method",
		"name", "role", "security_question", "security_answer", "synced_to_server", "last_sync_at",
		"created_at", "updated_at",
	}
	now := time.Now().UnixNano()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM identities WHERE id = \?`).
		WithArgs("01A").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"01A", "", "a@x.com", "alice", "", "", "email",
			"", "", "", "", false, nil, now, now,
		))
	mock.ExpectExec(`(?s)UPDATE identities SET`).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err := s.Identities().Update(context.Background(), "01A", time.Now(), func(id *domain.Identity) error {
		id.Phone = "111"
		return nil
	})
	require.ErrorContains(t, err, "database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_EnqueueRejectsNilPayload(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.Operations().Enqueue(context.Background(), domain.Operation{ID: "op1", Kind: domain.OpIdentityCreate})
	require.ErrorIs(t, err, domain.ErrUnknownOperation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_MarkFailedRequiresRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE operations\s+SET status = 'failed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Operations().MarkFailed(context.Background(), "op1", 5, "x", time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_ListDueKeepsUndecodablePayload(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UnixNano()

	mock.ExpectQuery(`(?s)SELECT .* FROM operations AS op\s+WHERE status = 'pending'.*NOT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "identity_id", "payload", "status", "retry_count", "max_retries",
			"next_retry_at", "last_error", "created_at", "updated_at",
		}).AddRow("op1", "PROFILE_PATCH", "01A", []byte(`{}`), "pending", 0, 5, now, "", now, now))

	ops, err := s.Operations().ListDue(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Nil(t, ops[0].Payload)
	require.Contains(t, ops[0].LastError, "unknown operation kind")
	require.NoError(t, mock.ExpectationsWereMet())
}
