package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// AlgorithmArgon2id is the only algorithm HashPassword produces.
const AlgorithmArgon2id = "argon2id"

var (
	ErrMismatch             = errors.New("password does not match")
	ErrUnsupportedAlgorithm = errors.New("cryptox: unsupported password algorithm")
	ErrMalformedHash        = errors.New("cryptox: malformed password hash")
)

// PasswordHash is a self-describing password hash object. Hash holds the
// PHC-encoded Argon2id string (parameters, salt and key); Salt repeats the
// salt so callers can index or compare it without parsing.
type PasswordHash struct {
	Hash      string `json:"hash"`
	Salt      string `json:"salt"`
	Algorithm string `json:"algorithm"`
}

// IsZero reports whether no hash has been set.
func (p PasswordHash) IsZero() bool { return p.Hash == "" }

// HashPassword derives an Argon2id hash with a fresh random salt.
func HashPassword(password string) (PasswordHash, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, err
	}
	key := argon2.IDKey(
		[]byte(password+GetPepper()),
		salt,
		iterations,
		memory,
		parallelism,
		keyLength,
	)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)

	return PasswordHash{
		Hash: fmt.Sprintf(
			"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
			memory,
			iterations,
			parallelism,
			b64Salt,
			base64.RawStdEncoding.EncodeToString(key),
		),
		Salt:      b64Salt,
		Algorithm: AlgorithmArgon2id,
	}, nil
}

// VerifyPassword recomputes the hash of password with the stored salt and
// parameters. It returns nil on match and ErrMismatch otherwise.
func VerifyPassword(password string, stored PasswordHash) error {
	if stored.Algorithm != AlgorithmArgon2id {
		return ErrUnsupportedAlgorithm
	}

	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(stored.Hash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return fmt.Errorf("%w: expected 6 parts", ErrMalformedHash)
	}
	if parts[1] != AlgorithmArgon2id {
		return fmt.Errorf("%w: not argon2id", ErrMalformedHash)
	}
	if parts[2] != "v=19" {
		return fmt.Errorf("%w: wrong version", ErrMalformedHash)
	}
	if stored.Salt != "" && stored.Salt != parts[4] {
		return fmt.Errorf("%w: salt mismatch", ErrMalformedHash)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}

	computed := argon2.IDKey(
		[]byte(password+GetPepper()),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}
