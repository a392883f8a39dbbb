package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionSigner mints session tokens with an Ed25519 key generated at
// startup. Restarting the process invalidates every outstanding session.
type SessionSigner struct {
	kid    string
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
	ttl    time.Duration
}

func NewEphemeralSessionSigner(issuer string, ttl time.Duration) (*SessionSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate Ed25519 key: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &SessionSigner{
		kid:    NewJTI()[:12],
		key:    priv,
		pub:    pub,
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

func (s *SessionSigner) KID() string { return s.kid }

func (s *SessionSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// Issue signs a session for subject established in the given mode.
func (s *SessionSigner) Issue(subject, email, username, mode string, now time.Time) (string, error) {
	return s.Sign(NewSessionClaims(subject, email, username, mode, s.issuer, s.ttl, now))
}

// Verifier returns a verifier that accepts tokens from this signer.
func (s *SessionSigner) Verifier() *EdDSAVerifier {
	return NewEdDSAVerifier(s.issuer, map[string]ed25519.PublicKey{s.kid: s.pub})
}
