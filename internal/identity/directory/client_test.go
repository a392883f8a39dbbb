package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ServerOptions) (*Memory, *Client) {
	t.Helper()

	mem := NewMemory()
	if opts.Logger == nil {
		opts.Logger = slogx.Discard()
	}
	srv := httptest.NewServer(NewServer(mem, opts))
	t.Cleanup(srv.Close)

	return mem, NewClient(srv.URL, 2*time.Second)
}

var _ Remote = (*Client)(nil)
var _ Remote = (*Memory)(nil)

func TestClient_DocumentRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem, c := newTestServer(t, ServerOptions{})

	require.NoError(t, c.Ping(ctx))

	doc := testDoc("Alice@Example.com", "alice", "111")
	doc.Name = "Alice"
	require.NoError(t, c.Upsert(ctx, doc))
	require.NoError(t, c.Upsert(ctx, doc))
	require.Equal(t, 1, mem.Len())

	got, err := c.Get(ctx, doc.RemoteID)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)
	require.Equal(t, "Alice@Example.com", got.Email)

	found, err := c.FindBy(ctx, FieldEmail, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = c.FindBy(ctx, FieldUsername, "nobody")
	require.NoError(t, err)
	require.Empty(t, found)

	n, err := c.CountByPhone(ctx, "111")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, c.Delete(ctx, doc.RemoteID))
	_, err = c.Get(ctx, doc.RemoteID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, c.Delete(ctx, doc.RemoteID), ErrNotFound)
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem, c := newTestServer(t, ServerOptions{})

	require.NoError(t, c.Upsert(ctx, testDoc("alice@example.com", "alice", "")))
	require.ErrorIs(t, c.Upsert(ctx, testDoc("bob@example.com", "alice", "")), ErrAlreadyExists)

	bad := testDoc("carol@example.com", "carol", "")
	bad.RemoteID = "not-derived"
	require.ErrorIs(t, c.Upsert(ctx, bad), ErrInvalid)

	mem.SetOffline(true)
	require.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
	_, err := c.Get(ctx, bad.RemoteID)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_AuthCategories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem, c := newTestServer(t, ServerOptions{})

	require.NoError(t, c.CreateAccount(ctx, "alice@example.com", "pw-1"))
	require.ErrorIs(t, c.CreateAccount(ctx, "alice@example.com", "pw-1"), ErrAlreadyExists)
	require.NoError(t, c.SignIn(ctx, "alice@example.com", "pw-1"))

	cat, ok := CategoryOf(c.SignIn(ctx, "alice@example.com", "nope"))
	require.True(t, ok)
	require.Equal(t, CategoryWrongCredential, cat)

	require.NoError(t, c.UpdatePassword(ctx, "alice@example.com", "pw-1", "pw-2"))
	require.NoError(t, c.SignIn(ctx, "alice@example.com", "pw-2"))

	mem.Disable("alice@example.com")
	cat, _ = CategoryOf(c.SignIn(ctx, "alice@example.com", "pw-2"))
	require.Equal(t, CategoryDisabled, cat)

	require.NoError(t, c.CreateAccount(ctx, "bob@example.com", "pw"))
	require.ErrorIs(t, c.DeleteAccount(ctx, "nobody@example.com", "pw"), ErrNotFound)
	require.NoError(t, c.DeleteAccount(ctx, "bob@example.com", "pw"))
	require.False(t, mem.HasAccount("bob@example.com"))

	mem.SetOffline(true)
	err := c.SignIn(ctx, "bob@example.com", "pw")
	cat, _ = CategoryOf(err)
	require.Equal(t, CategoryNetwork, cat)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_SignInRateLimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, c := newTestServer(t, ServerOptions{
		SignInLimit: httpx.RateLimit{Requests: 2, Window: time.Minute},
	})

	for range 2 {
		cat, _ := CategoryOf(c.SignIn(ctx, "alice@example.com", "pw"))
		require.Equal(t, CategoryWrongCredential, cat)
	}
	cat, _ := CategoryOf(c.SignIn(ctx, "alice@example.com", "pw"))
	require.Equal(t, CategoryRateLimited, cat)
}

func TestClient_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, 500*time.Millisecond)
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)

	cat, _ := CategoryOf(c.SignIn(context.Background(), "a@example.com", "pw"))
	require.Equal(t, CategoryNetwork, cat)
}

func TestClient_AuthServerErrorIsNetwork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusBadGateway, "server_error", "upstream down")
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, time.Second)

	calls := map[string]func() error{
		"create account":  func() error { return c.CreateAccount(ctx, "a@example.com", "pw") },
		"sign in":         func() error { return c.SignIn(ctx, "a@example.com", "pw") },
		"update password": func() error { return c.UpdatePassword(ctx, "a@example.com", "pw", "pw-2") },
		"delete account":  func() error { return c.DeleteAccount(ctx, "a@example.com", "pw") },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			cat, ok := CategoryOf(err)
			require.True(t, ok)
			require.Equal(t, CategoryNetwork, cat)
			require.ErrorIs(t, err, ErrUnavailable)
		})
	}

	require.ErrorIs(t, c.Upsert(ctx, domain.Identity{RemoteID: "r1"}), ErrUnavailable)
	_, ok := CategoryOf(c.Upsert(ctx, domain.Identity{RemoteID: "r1"}))
	require.False(t, ok, "directory calls keep plain sentinels")
}

func TestClient_CallerCancellation(t *testing.T) {
	t.Parallel()
	_, c := newTestServer(t, ServerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Ping(ctx), context.Canceled)
}
