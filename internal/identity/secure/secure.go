// Package secure stores per-identity credential blobs, preferring the OS
// keyring and falling back to ciphertext in the local database.
package secure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrNotFound    = errors.New("secure: not found")
	ErrUnavailable = errors.New("secure: backend unavailable")
)

type Backend interface {
	Name() string
	Put(ctx context.Context, id string, blob []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Outcome reports where a blob ended up. A failed store is not fatal; the
// caller decides whether reduced guarantees are acceptable.
type Outcome struct {
	Backend string
	Stored  bool
	Err     error
}

// Chain tries backends in order.
type Chain struct {
	backends []Backend
	logger   *slog.Logger
}

func NewChain(logger *slog.Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{backends: backends, logger: logger}
}

// Backends lists the configured backend names in priority order.
func (c *Chain) Backends() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name())
	}
	return names
}

// Put writes blob to the first backend that accepts it. When a fallback
// wins, copies in higher-priority backends are removed so Get never returns
// a stale blob.
func (c *Chain) Put(ctx context.Context, id string, blob []byte) Outcome {
	var errs []error
	for i, b := range c.backends {
		err := b.Put(ctx, id, blob)
		if err == nil {
			for _, prior := range c.backends[:i] {
				_ = prior.Delete(ctx, id)
			}
			return Outcome{Backend: b.Name(), Stored: true}
		}
		c.logger.Warn("secure storage write failed, trying next backend",
			"backend", b.Name(), "identity_id", id, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}

	err := errors.Join(errs...)
	if err == nil {
		err = fmt.Errorf("%w: no backends configured", ErrUnavailable)
	}
	c.logger.Error("secure storage write failed on every backend", "identity_id", id, "error", err)
	return Outcome{Err: err}
}

// Get returns the blob and the backend it came from.
func (c *Chain) Get(ctx context.Context, id string) ([]byte, string, error) {
	var errs []error
	for _, b := range c.backends {
		blob, err := b.Get(ctx, id)
		if err == nil {
			return blob, b.Name(), nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	if len(errs) > 0 {
		return nil, "", errors.Join(errs...)
	}
	return nil, "", ErrNotFound
}

// Delete removes the blob everywhere. Missing entries are fine.
func (c *Chain) Delete(ctx context.Context, id string) error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}
