package domain

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

type AuthMethod string

const (
	AuthMethodEmail            AuthMethod = "email"
	AuthMethodExternalProvider AuthMethod = "external_provider"
	AuthMethodPhone            AuthMethod = "phone"
)

func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodEmail, AuthMethodExternalProvider, AuthMethodPhone:
		return true
	}
	return false
}

type PasswordHash = cryptox.PasswordHash

// Identity is one registered user as cached on this device. The same shape
// is used as the remote directory document, where the local-only fields are
// left empty.
type Identity struct {
	ID       string `json:"id,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`

	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone,omitempty"`

	Password   PasswordHash `json:"password"`
	AuthMethod AuthMethod   `json:"auth_method"`

	Name             string       `json:"name,omitempty"`
	Role             string       `json:"role,omitempty"`
	SecurityQuestion string       `json:"security_question,omitempty"`
	SecurityAnswer   PasswordHash `json:"security_answer"`

	SyncedToServer bool       `json:"synced_to_server"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Document returns the copy written to the remote directory. It is keyed by
// RemoteIDFor(email) so repeated upserts address the same document.
func (i Identity) Document() Identity {
	doc := i
	doc.ID = ""
	doc.RemoteID = RemoteIDFor(i.Email)
	doc.SyncedToServer = false
	doc.LastSyncAt = nil
	return doc
}

// Public strips credential material before the record leaves the engine.
func (i Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:               i.ID,
		RemoteID:         i.RemoteID,
		Email:            i.Email,
		Username:         i.Username,
		Phone:            i.Phone,
		AuthMethod:       i.AuthMethod,
		Name:             i.Name,
		Role:             i.Role,
		SecurityQuestion: i.SecurityQuestion,
		SyncedToServer:   i.SyncedToServer,
		LastSyncAt:       i.LastSyncAt,
		CreatedAt:        i.CreatedAt,
	}
}

type PublicIdentity struct {
	ID               string     `json:"id"`
	RemoteID         string     `json:"remote_id,omitempty"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	Phone            string     `json:"phone,omitempty"`
	AuthMethod       AuthMethod `json:"auth_method"`
	Name             string     `json:"name,omitempty"`
	Role             string     `json:"role,omitempty"`
	SecurityQuestion string     `json:"security_question,omitempty"`
	SyncedToServer   bool       `json:"synced_to_server"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// FoldKey normalizes an email or username for case-insensitive comparison.
func FoldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// SameEmail reports whether a and b name the same identity.
func SameEmail(a, b string) bool { return FoldKey(a) == FoldKey(b) }

var remoteNamespace = uuid.NameSpaceURL

// RemoteIDFor derives the deterministic directory key for an email.
func RemoteIDFor(email string) string {
	return uuid.NewSHA1(remoteNamespace, []byte("idsync:identity:"+FoldKey(email))).String()
}

// KeyKind tells which unique key a login string was matched against.
type KeyKind string

const (
	KeyEmail    KeyKind = "email"
	KeyUsername KeyKind = "username"
)

// KindOfKey treats anything with an @ as an email.
func KindOfKey(key string) KeyKind {
	if strings.Contains(key, "@") {
		return KeyEmail
	}
	return KeyUsername
}
