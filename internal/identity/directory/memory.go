package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
)

type account struct {
	hash     cryptox.PasswordHash
	disabled bool
}

// Memory is an in-process directory and provider. It backs the dev server
// and tests, and can simulate outages.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]domain.Identity // by RemoteID
	accounts map[string]*account        // by folded email
	offline  bool
	failure  func(op string) error
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]domain.Identity),
		accounts: make(map[string]*account),
	}
}

// SetOffline makes every call fail with ErrUnavailable.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// SetFailure installs a hook consulted before every operation. A non-nil
// return is the operation's error. Op names are the method names in lower
// case, e.g. "upsert" or "signin".
func (m *Memory) SetFailure(fn func(op string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = fn
}

// Disable marks the provider account for email as disabled.
func (m *Memory) Disable(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[domain.FoldKey(email)]; ok {
		a.disabled = true
	}
}

// Len returns the number of documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) HasAccount(email string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[domain.FoldKey(email)]
	return ok
}

// check must be called with the lock held.
func (m *Memory) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.offline {
		return ErrUnavailable
	}
	if m.failure != nil {
		return m.failure(op)
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check(ctx, "ping")
}

func (m *Memory) Upsert(ctx context.Context, doc domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "upsert"); err != nil {
		return err
	}

	if doc.RemoteID == "" || doc.RemoteID != domain.RemoteIDFor(doc.Email) {
		return fmt.Errorf("%w: remote id does not match email", ErrInvalid)
	}
	for rid, other := range m.docs {
		if rid != doc.RemoteID && domain.FoldKey(other.Username) == domain.FoldKey(doc.Username) {
			return fmt.Errorf("%w: username", ErrAlreadyExists)
		}
	}

	doc.ID = ""
	doc.SyncedToServer = false
	doc.LastSyncAt = nil
	m.docs[doc.RemoteID] = doc
	return nil
}

func (m *Memory) Get(ctx context.Context, remoteID string) (domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "get"); err != nil {
		return domain.Identity{}, err
	}

	doc, ok := m.docs[remoteID]
	if !ok {
		return domain.Identity{}, ErrNotFound
	}
	return doc, nil
}

func (m *Memory) FindBy(ctx context.Context, field Field, value string) ([]domain.Identity, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: field %q", ErrInvalid, field)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "findby"); err != nil {
		return nil, err
	}

	var out []domain.Identity
	for _, doc := range m.docs {
		if matches(doc, field, value) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out, nil
}

func matches(doc domain.Identity, field Field, value string) bool {
	switch field {
	case FieldEmail:
		return domain.FoldKey(doc.Email) == domain.FoldKey(value)
	case FieldUsername:
		return domain.FoldKey(doc.Username) == domain.FoldKey(value)
	case FieldPhone:
		return value != "" && doc.Phone == value
	}
	return false
}

func (m *Memory) CountByPhone(ctx context.Context, phone string) (int, error) {
	docs, err := m.FindBy(ctx, FieldPhone, phone)
	return len(docs), err
}

func (m *Memory) Delete(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "delete"); err != nil {
		return err
	}

	if _, ok := m.docs[remoteID]; !ok {
		return ErrNotFound
	}
	delete(m.docs, remoteID)
	return nil
}

func (m *Memory) CreateAccount(ctx context.Context, email, password string) error {
	// Hash outside the lock.
	h, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "createaccount"); err != nil {
		return err
	}

	key := domain.FoldKey(email)
	if _, ok := m.accounts[key]; ok {
		return ErrAlreadyExists
	}
	m.accounts[key] = &account{hash: h}
	return nil
}

func (m *Memory) SignIn(ctx context.Context, email, password string) error {
	m.mu.RLock()
	if err := m.check(ctx, "signin"); err != nil {
		m.mu.RUnlock()
		if errors.Is(err, ErrUnavailable) {
			return authErr(CategoryNetwork, err)
		}
		return err
	}
	a, ok := m.accounts[domain.FoldKey(email)]
	var snapshot account
	if ok {
		snapshot = *a
	}
	m.mu.RUnlock()

	if !ok {
		return authErr(CategoryWrongCredential, nil)
	}
	if snapshot.disabled {
		return authErr(CategoryDisabled, nil)
	}
	if err := cryptox.VerifyPassword(password, snapshot.hash); err != nil {
		return authErr(CategoryWrongCredential, err)
	}
	return nil
}

func (m *Memory) UpdatePassword(ctx context.Context, email, current, next string) error {
	if current != "" {
		if err := m.SignIn(ctx, email, current); err != nil {
			return err
		}
	}

	h, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "updatepassword"); err != nil {
		return err
	}

	a, ok := m.accounts[domain.FoldKey(email)]
	if !ok {
		return ErrNotFound
	}
	a.hash = h
	return nil
}

func (m *Memory) DeleteAccount(ctx context.Context, email, password string) error {
	m.mu.RLock()
	err := m.check(ctx, "deleteaccount")
	_, ok := m.accounts[domain.FoldKey(email)]
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if err := m.SignIn(ctx, email, password); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, domain.FoldKey(email))
	return nil
}
