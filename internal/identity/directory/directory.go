// Package directory is the remote side of the engine: a document
// collection of identities plus an independent authentication provider.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

var (
	ErrUnavailable   = errors.New("directory: unavailable")
	ErrNotFound      = errors.New("directory: not found")
	ErrAlreadyExists = errors.New("directory: already exists")
	ErrInvalid       = errors.New("directory: invalid request")
)

// Field is an indexed document field usable with FindBy.
type Field string

const (
	FieldEmail    Field = "email"
	FieldUsername Field = "username"
	FieldPhone    Field = "phone"
)

func (f Field) Valid() bool {
	return f == FieldEmail || f == FieldUsername || f == FieldPhone
}

// Directory is the document collection. Documents are keyed by RemoteID
// and written as upserts only.
type Directory interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, doc domain.Identity) error
	Get(ctx context.Context, remoteID string) (domain.Identity, error)

	// FindBy returns documents whose field equals value. Email and username
	// match case-insensitively.
	FindBy(ctx context.Context, field Field, value string) ([]domain.Identity, error)

	CountByPhone(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, remoteID string) error
}

// Authenticator is the authentication provider. It is authoritative for
// password verification whenever it is reachable.
type Authenticator interface {
	CreateAccount(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error

	// UpdatePassword changes the password. An empty current password is a
	// recovery reset that the caller has already authorized.
	UpdatePassword(ctx context.Context, email, current, next string) error

	DeleteAccount(ctx context.Context, email, password string) error
}

type Remote interface {
	Directory
	Authenticator
}

// AuthCategory is the small fixed set of user-facing sign-in failures.
type AuthCategory string

const (
	CategoryWrongCredential AuthCategory = "wrong_credential"
	CategoryDisabled        AuthCategory = "disabled"
	CategoryRateLimited     AuthCategory = "rate_limited"
	CategoryNetwork         AuthCategory = "network"
)

type AuthError struct {
	Category AuthCategory
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("directory: auth %s", e.Category)
	}
	return fmt.Sprintf("directory: auth %s: %v", e.Category, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(cat AuthCategory, err error) error {
	return &AuthError{Category: cat, Err: err}
}

// CategoryOf extracts the auth category from err, if any.
func CategoryOf(err error) (AuthCategory, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Category, true
	}
	return "", false
}
