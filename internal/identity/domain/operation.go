package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type OperationKind string

const (
	OpIdentityCreate   OperationKind = "IDENTITY_CREATE"
	OpCredentialUpdate OperationKind = "CREDENTIAL_UPDATE"
	OpAccountDelete    OperationKind = "ACCOUNT_DELETE"
)

type OperationStatus string

const (
	OpStatusPending OperationStatus = "pending"
	OpStatusFailed  OperationStatus = "failed"
)

var ErrUnknownOperation = errors.New("domain: unknown operation kind")

// OperationPayload is the closed set of queued write variants. Only the
// payload types in this package implement it.
type OperationPayload interface {
	Kind() OperationKind
	operationPayload()
}

// CreatePayload pushes a locally registered identity to the directory and
// creates the provider account. The password is sealed under the device
// master key.
type CreatePayload struct {
	Identity       Identity `json:"identity"`
	SealedPassword []byte   `json:"sealed_password"`
}

// CredentialPayload changes the provider password. An empty SealedCurrent
// means a recovery reset.
type CredentialPayload struct {
	Email         string       `json:"email"`
	RemoteID      string       `json:"remote_id"`
	Password      PasswordHash `json:"password"`
	SealedCurrent []byte       `json:"sealed_current,omitempty"`
	SealedNext    []byte       `json:"sealed_next"`
}

type DeletePayload struct {
	Email          string `json:"email"`
	RemoteID       string `json:"remote_id"`
	SealedPassword []byte `json:"sealed_password"`
}

func (CreatePayload) Kind() OperationKind     { return OpIdentityCreate }
func (CredentialPayload) Kind() OperationKind { return OpCredentialUpdate }
func (DeletePayload) Kind() OperationKind     { return OpAccountDelete }

func (CreatePayload) operationPayload()     {}
func (CredentialPayload) operationPayload() {}
func (DeletePayload) operationPayload()     {}

type Operation struct {
	ID         string
	Kind       OperationKind
	IdentityID string
	Payload    OperationPayload
	Status     OperationStatus

	RetryCount  int
	MaxRetries  int
	NextRetryAt time.Time
	LastError   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exhausted reports whether no attempts remain.
func (o Operation) Exhausted() bool { return o.RetryCount >= o.MaxRetries }

func EncodePayload(p OperationPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrUnknownOperation)
	}
	return json.Marshal(p)
}

// DecodePayload restores the typed payload for kind.
func DecodePayload(kind OperationKind, raw []byte) (OperationPayload, error) {
	switch kind {
	case OpIdentityCreate:
		var p CreatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case OpCredentialUpdate:
		var p CredentialPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case OpAccountDelete:
		var p DeletePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
}
