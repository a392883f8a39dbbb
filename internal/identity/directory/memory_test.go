package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func testDoc(email, username, phone string) domain.Identity {
	return domain.Identity{
		Email:      email,
		Username:   username,
		Phone:      phone,
		AuthMethod: domain.AuthMethodEmail,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}.Document()
}

func TestMemory_UpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	doc := testDoc("alice@example.com", "alice", "111")
	require.NoError(t, m.Upsert(ctx, doc))
	require.NoError(t, m.Upsert(ctx, doc))
	require.Equal(t, 1, m.Len())

	doc.Name = "Alice"
	require.NoError(t, m.Upsert(ctx, doc))
	got, err := m.Get(ctx, doc.RemoteID)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)
}

func TestMemory_UpsertRejectsForeignKeyAndTakenUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	bad := testDoc("alice@example.com", "alice", "")
	bad.RemoteID = "not-derived"
	require.ErrorIs(t, m.Upsert(ctx, bad), ErrInvalid)

	require.NoError(t, m.Upsert(ctx, testDoc("alice@example.com", "alice", "")))
	require.ErrorIs(t, m.Upsert(ctx, testDoc("bob@example.com", "ALICE", "")), ErrAlreadyExists)
}

func TestMemory_FindByIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, testDoc("Alice@Example.com", "Alice", "111")))
	require.NoError(t, m.Upsert(ctx, testDoc("bob@example.com", "bob", "111")))

	byEmail, err := m.FindBy(ctx, FieldEmail, "alice@EXAMPLE.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)

	byUsername, err := m.FindBy(ctx, FieldUsername, "ALICE")
	require.NoError(t, err)
	require.Len(t, byUsername, 1)

	n, err := m.CountByPhone(ctx, "111")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = m.CountByPhone(ctx, "")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = m.FindBy(ctx, Field("name"), "x")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestMemory_Offline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	m.SetOffline(true)

	require.ErrorIs(t, m.Ping(ctx), ErrUnavailable)
	require.ErrorIs(t, m.Upsert(ctx, testDoc("a@example.com", "a", "")), ErrUnavailable)
	require.ErrorIs(t, m.DeleteAccount(ctx, "a@example.com", "pw"), ErrUnavailable)

	err := m.SignIn(ctx, "a@example.com", "pw")
	cat, ok := CategoryOf(err)
	require.True(t, ok)
	require.Equal(t, CategoryNetwork, cat)
	require.ErrorIs(t, err, ErrUnavailable)

	m.SetOffline(false)
	require.NoError(t, m.Ping(ctx))
}

func TestMemory_FailureHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	boom := errors.New("boom")
	m.SetFailure(func(op string) error {
		if op == "upsert" {
			return boom
		}
		return nil
	})

	require.ErrorIs(t, m.Upsert(ctx, testDoc("a@example.com", "a", "")), boom)
	require.NoError(t, m.Ping(ctx))
}

func TestMemory_Accounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateAccount(ctx, "alice@example.com", "first-pass"))
	require.ErrorIs(t, m.CreateAccount(ctx, "ALICE@example.com", "other"), ErrAlreadyExists)
	require.True(t, m.HasAccount("Alice@Example.com"))

	require.NoError(t, m.SignIn(ctx, "alice@example.com", "first-pass"))

	cat, _ := CategoryOf(m.SignIn(ctx, "alice@example.com", "wrong"))
	require.Equal(t, CategoryWrongCredential, cat)

	cat, _ = CategoryOf(m.SignIn(ctx, "nobody@example.com", "first-pass"))
	require.Equal(t, CategoryWrongCredential, cat)

	t.Run("update password", func(t *testing.T) {
		cat, _ := CategoryOf(m.UpdatePassword(ctx, "alice@example.com", "wrong", "second-pass"))
		require.Equal(t, CategoryWrongCredential, cat)

		require.NoError(t, m.UpdatePassword(ctx, "alice@example.com", "first-pass", "second-pass"))
		require.NoError(t, m.SignIn(ctx, "alice@example.com", "second-pass"))

		// Recovery reset.
		require.NoError(t, m.UpdatePassword(ctx, "alice@example.com", "", "third-pass"))
		require.NoError(t, m.SignIn(ctx, "alice@example.com", "third-pass"))

		require.ErrorIs(t, m.UpdatePassword(ctx, "nobody@example.com", "", "x"), ErrNotFound)
	})

	t.Run("disabled", func(t *testing.T) {
		require.NoError(t, m.CreateAccount(ctx, "carol@example.com", "pw"))
		m.Disable("carol@example.com")
		cat, _ := CategoryOf(m.SignIn(ctx, "carol@example.com", "pw"))
		require.Equal(t, CategoryDisabled, cat)
	})

	t.Run("delete", func(t *testing.T) {
		require.ErrorIs(t, m.DeleteAccount(ctx, "nobody@example.com", "x"), ErrNotFound)

		cat, _ := CategoryOf(m.DeleteAccount(ctx, "alice@example.com", "wrong"))
		require.Equal(t, CategoryWrongCredential, cat)
		require.True(t, m.HasAccount("alice@example.com"))

		require.NoError(t, m.DeleteAccount(ctx, "alice@example.com", "third-pass"))
		require.False(t, m.HasAccount("alice@example.com"))
	})
}

func TestMemory_CanceledContext(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.Ping(ctx), context.Canceled)
}
