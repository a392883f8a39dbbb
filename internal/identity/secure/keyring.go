package secure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring stores blobs in the OS keyring (Secret Service, Keychain or
// Windows Credential Manager) under Service/<identity id>.
type Keyring struct {
	Service string
}

func NewKeyring(service string) *Keyring {
	if service == "" {
		service = "idsync"
	}
	return &Keyring{Service: service}
}

func (k *Keyring) Name() string { return "keyring" }

func (k *Keyring) Put(_ context.Context, id string, blob []byte) error {
	if err := keyring.Set(k.Service, id, base64.StdEncoding.EncodeToString(blob)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (k *Keyring) Get(_ context.Context, id string) ([]byte, error) {
	v, err := keyring.Get(k.Service, id)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return base64.StdEncoding.DecodeString(v)
}

func (k *Keyring) Delete(_ context.Context, id string) error {
	err := keyring.Delete(k.Service, id)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
