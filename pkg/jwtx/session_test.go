package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const issuer = "idsync-test"

func TestSessionSignAndVerify(t *testing.T) {
	signer, err := jwtx.NewEphemeralSessionSigner(issuer, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, signer.KID())

	now := time.Now()
	token, err := signer.Issue("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", "a@x.com", "alice", "offline", now)
	require.NoError(t, err)

	claims, err := signer.Verifier().Verify(token)
	require.NoError(t, err)
	require.Equal(t, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", claims.Subject)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "offline", claims.Mode)
	require.Equal(t, issuer, claims.Issuer)
	require.NotEmpty(t, claims.ID)
}

func TestSessionVerifyRejects(t *testing.T) {
	signer, err := jwtx.NewEphemeralSessionSigner(issuer, time.Minute)
	require.NoError(t, err)

	t.Run("expired token", func(t *testing.T) {
		token, err := signer.Issue("sub", "", "", "online", time.Now().Add(-time.Hour))
		require.NoError(t, err)

		_, err = signer.Verifier().Verify(token)
		require.Error(t, err)
	})

	t.Run("foreign signer", func(t *testing.T) {
		other, err := jwtx.NewEphemeralSessionSigner(issuer, time.Minute)
		require.NoError(t, err)
		token, err := other.Issue("sub", "", "", "online", time.Now())
		require.NoError(t, err)

		_, err = signer.Verifier().Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		other, err := jwtx.NewEphemeralSessionSigner("someone-else", time.Minute)
		require.NoError(t, err)
		token, err := other.Issue("sub", "", "", "online", time.Now())
		require.NoError(t, err)

		v := other.Verifier()
		claims, err := v.Verify(token)
		require.NoError(t, err)
		require.ErrorIs(t, claims.ValidateIssuer(issuer), jwtx.ErrIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.Verifier().Verify("not.a.jwt")
		require.Error(t, err)
	})
}
