package idsync_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
	"github.com/stretchr/testify/require"
)

func TestRegisterOnlineAndLogin(t *testing.T) {
	e := setupEngine(t)
	ctx := t.Context()

	res := registerAnn(t, e, "")
	require.Equal(t, domain.ModeSynced, res.Mode)
	require.True(t, res.Identity.SyncedToServer)
	require.True(t, e.directory.HasAccount(testEmail))

	login, err := e.client.Login(ctx, "ANN", testPassword)
	require.NoError(t, err)
	require.True(t, login.Success)
	require.Equal(t, domain.ModeOnline, login.Mode)
	require.NotEmpty(t, login.SessionToken)
	require.Equal(t, res.Identity.ID, login.Identity.ID)

	_, err = e.client.Login(ctx, testEmail, "wrong-password-1")
	requireAPIError(t, err, http.StatusUnauthorized, idsyncsdk.ErrorCodeInvalidCredentials)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	e := setupEngine(t)
	ctx := t.Context()

	registerAnn(t, e, "")

	_, err := e.client.Register(ctx, idsyncsdk.RegisterRequest{
		Email: "ANN@example.com", Username: "other", Password: testPassword,
	})
	requireAPIError(t, err, http.StatusConflict, idsyncsdk.ErrorCodeEmailTaken)

	_, err = e.client.Register(ctx, idsyncsdk.RegisterRequest{
		Email: "bob@example.com", Username: "Ann", Password: testPassword,
	})
	requireAPIError(t, err, http.StatusConflict, idsyncsdk.ErrorCodeUsernameTaken)

	_, err = e.client.Register(ctx, idsyncsdk.RegisterRequest{
		Email: "not-an-email", Username: "carl", Password: testPassword,
	})
	requireAPIError(t, err, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest)
}

func TestLoginUnknownIdentity(t *testing.T) {
	e := setupEngine(t)

	_, err := e.client.Login(t.Context(), "nobody@example.com", testPassword)
	requireAPIError(t, err, http.StatusNotFound, idsyncsdk.ErrorCodeNotFound)
}

// A profile edited on another device surfaces as a conflict that the
// caller resolves field by field.
func TestLoginConflictResolution(t *testing.T) {
	e := setupEngine(t)
	ctx := t.Context()

	registerAnn(t, e, "111")

	doc, err := e.directory.Get(ctx, domain.RemoteIDFor(testEmail))
	require.NoError(t, err)
	doc.Phone = "222"
	require.NoError(t, e.directory.Upsert(ctx, doc))

	res, err := e.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.RequiresResolution)
	require.Equal(t, domain.ScenarioDataConflict, res.ConflictType)
	require.NotEmpty(t, res.ConflictID)

	pending, err := e.client.GetConflict(ctx, res.ConflictID)
	require.NoError(t, err)
	require.Equal(t, res.ConflictID, pending.ConflictID)
	require.Equal(t, []idsyncsdk.Conflict{{Field: "phone", Local: "111", Remote: "222"}}, pending.Conflicts)

	_, err = e.client.ResolveConflict(ctx, res.ConflictID, nil)
	requireAPIError(t, err, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest)

	resolved, err := e.client.ResolveConflict(ctx, res.ConflictID, []idsyncsdk.Resolution{
		{Field: "phone", Choice: domain.ChoiceKeepRemote},
	})
	require.NoError(t, err)
	require.True(t, resolved.Success)
	require.Equal(t, "222", resolved.Identity.Phone)
	require.NotEmpty(t, resolved.SessionToken)

	_, err = e.client.GetConflict(ctx, res.ConflictID)
	requireAPIError(t, err, http.StatusNotFound, idsyncsdk.ErrorCodeConflictNotFound)

	again, err := e.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, again.Success)
}

func TestPhoneAvailability(t *testing.T) {
	e := setupEngine(t)
	ctx := t.Context()

	avail, err := e.client.PhoneAvailability(ctx, "555")
	require.NoError(t, err)
	require.True(t, avail.Available)
	require.Zero(t, avail.Count)
	require.Equal(t, 4, avail.Max)

	registerAnn(t, e, "555")

	avail, err = e.client.PhoneAvailability(ctx, "555")
	require.NoError(t, err)
	require.True(t, avail.Available)
	require.Equal(t, 1, avail.Count)
}
