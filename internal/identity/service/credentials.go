package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/secure"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
)

// Credentials keeps hash objects in secure storage and tracks password
// history.
type Credentials struct {
	Store      store.Store
	Secure     *secure.Chain
	HistoryCap int
	Logger     *slog.Logger
}

// StoreSecurely writes h for identityID. A failed write is logged and
// reported in the outcome, never returned as an error.
func (c *Credentials) StoreSecurely(ctx context.Context, identityID string, h domain.PasswordHash) secure.Outcome {
	blob, err := json.Marshal(h)
	if err != nil {
		return secure.Outcome{Err: err}
	}
	return c.Secure.Put(ctx, identityID, blob)
}

func (c *Credentials) RetrieveSecurely(ctx context.Context, identityID string) (domain.PasswordHash, error) {
	blob, _, err := c.Secure.Get(ctx, identityID)
	if err != nil {
		return domain.PasswordHash{}, err
	}
	var h domain.PasswordHash
	if err := json.Unmarshal(blob, &h); err != nil {
		return domain.PasswordHash{}, fmt.Errorf("failed to decode stored credential: %w", err)
	}
	return h, nil
}

// Verify checks password against the identity's hash, falling back to
// secure storage when the row carries none.
func (c *Credentials) Verify(ctx context.Context, ident domain.Identity, password string) error {
	h := ident.Password
	if h.IsZero() {
		stored, err := c.RetrieveSecurely(ctx, ident.ID)
		if err != nil {
			return fmt.Errorf("no stored credential: %w", err)
		}
		h = stored
	}
	return cryptox.VerifyPassword(password, h)
}

// WasPreviouslyUsed checks the current hash and the history.
func (c *Credentials) WasPreviouslyUsed(ctx context.Context, ident domain.Identity, password string) (bool, error) {
	if !ident.Password.IsZero() && cryptox.VerifyPassword(password, ident.Password) == nil {
		return true, nil
	}

	history, err := c.Store.PasswordHistory().List(ctx, ident.ID)
	if err != nil {
		return false, err
	}
	for _, h := range history {
		if cryptox.VerifyPassword(password, h) == nil {
			return true, nil
		}
	}
	return false, nil
}

// Rotate replaces the identity's password hash and pushes the old one onto
// the history in one transaction.
func (c *Credentials) Rotate(
	ctx context.Context,
	identityID string,
	next domain.PasswordHash,
	at time.Time,
) (domain.Identity, error) {
	var out domain.Identity
	err := c.Store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.Identities().Get(ctx, identityID)
		if err != nil {
			return err
		}
		if !cur.Password.IsZero() {
			if err := tx.PasswordHistory().Push(ctx, identityID, cur.Password, c.HistoryCap, at); err != nil {
				return err
			}
		}
		out, err = tx.Identities().Update(ctx, identityID, at, func(id *domain.Identity) error {
			id.Password = next
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Identity{}, err
	}

	if o := c.StoreSecurely(ctx, identityID, next); !o.Stored {
		c.Logger.Warn("rotated credential kept only in the identity row", "identity_id", identityID, "error", o.Err)
	}
	return out, nil
}

// Forget drops the secure blob and the history.
func (c *Credentials) Forget(ctx context.Context, identityID string) error {
	var errs []error
	if err := c.Secure.Delete(ctx, identityID); err != nil {
		errs = append(errs, err)
	}
	if err := c.Store.PasswordHistory().DeleteAll(ctx, identityID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validatePassword enforces the minimum strength rule.
func validatePassword(p string) error {
	if len([]rune(p)) < 8 {
		return ErrWeakPassword
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrWeakPassword
	}
	return nil
}

// normalizeAnswer makes security answers tolerant of case and padding.
func normalizeAnswer(a string) string {
	return domain.FoldKey(strings.Join(strings.Fields(a), " "))
}
