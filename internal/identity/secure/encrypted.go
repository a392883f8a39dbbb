package secure

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
)

const credentialNamespace = "credential"

// Encrypted seals blobs with the device master key and keeps the
// ciphertext in the local store's secrets table.
type Encrypted struct {
	Secrets store.Secrets
	Sealer  *cryptox.Sealer
}

func NewEncrypted(secrets store.Secrets, sealer *cryptox.Sealer) *Encrypted {
	return &Encrypted{Secrets: secrets, Sealer: sealer}
}

func (e *Encrypted) Name() string { return "encrypted" }

func (e *Encrypted) Put(ctx context.Context, id string, blob []byte) error {
	sealed, err := e.Sealer.Seal(blob)
	if err != nil {
		return err
	}
	return e.Secrets.Set(ctx, credentialNamespace, id, sealed)
}

func (e *Encrypted) Get(ctx context.Context, id string) ([]byte, error) {
	sealed, err := e.Secrets.Get(ctx, credentialNamespace, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e.Sealer.Open(sealed)
}

func (e *Encrypted) Delete(ctx context.Context, id string) error {
	return e.Secrets.Delete(ctx, credentialNamespace, id)
}
