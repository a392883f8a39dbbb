package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/idsync/internal/identity/directory"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/cryptox"
	"github.com/aussiebroadwan/idsync/pkg/idx"
)

type RegisterInput struct {
	Email            string            `json:"email"`
	Username         string            `json:"username"`
	Password         string            `json:"password"`
	Phone            string            `json:"phone,omitempty"`
	Name             string            `json:"name,omitempty"`
	Role             string            `json:"role,omitempty"`
	AuthMethod       domain.AuthMethod `json:"auth_method,omitempty"`
	SecurityQuestion string            `json:"security_question,omitempty"`
	SecurityAnswer   string            `json:"security_answer,omitempty"`
}

func (in *RegisterInput) normalize() {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.TrimSpace(in.Role)
	in.SecurityQuestion = strings.TrimSpace(in.SecurityQuestion)
	if in.AuthMethod == "" {
		in.AuthMethod = domain.AuthMethodEmail
	}
}

func (in RegisterInput) validate() error {
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email || addr.Name != "" {
		return ErrInvalidEmail
	}
	if !validUsername(in.Username) {
		return ErrInvalidUsername
	}
	if !in.AuthMethod.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidAuthMethod, in.AuthMethod)
	}
	return validatePassword(in.Password)
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

// validUsername rejects names that would be read back as an email login key.
func validUsername(u string) bool {
	return u != "" && !strings.Contains(u, "@") && !strings.ContainsFunc(u, isSpace)
}

// Register creates the identity locally, then writes it through to the
// directory when reachable or queues the write.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Result, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return domain.Result{}, err
	}

	if err := s.checkLocalUnique(ctx, in.Email, in.Username); err != nil {
		return domain.Result{}, err
	}
	if in.Phone != "" {
		avail, err := s.PhoneAvailability(ctx, in.Phone)
		if err != nil {
			return domain.Result{}, err
		}
		if !avail.Available {
			return domain.Result{}, ErrPhoneUnavailable
		}
	}

	_, reachable := s.reachable(ctx)
	if reachable {
		switch err := s.checkRemoteUnique(ctx, in.Email, in.Username); {
		case err == nil:
		case isUnavailable(err):
			s.logger.Warn("directory uniqueness check failed, registering offline", "error", err)
			reachable = false
		default:
			return domain.Result{}, err
		}
	}

	pw, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Result{}, err
	}
	var answer domain.PasswordHash
	if in.SecurityAnswer != "" {
		if answer, err = cryptox.HashPassword(normalizeAnswer(in.SecurityAnswer)); err != nil {
			return domain.Result{}, err
		}
	}

	now := s.now()
	ident := domain.Identity{
		ID:               idx.NewAt(now).String(),
		Email:            in.Email,
		Username:         in.Username,
		Phone:            in.Phone,
		Password:         pw,
		AuthMethod:       in.AuthMethod,
		Name:             in.Name,
		Role:             in.Role,
		SecurityQuestion: in.SecurityQuestion,
		SecurityAnswer:   answer,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Identities().Create(ctx, ident); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with another registration.
			if cerr := s.checkLocalUnique(ctx, in.Email, in.Username); cerr != nil {
				return domain.Result{}, cerr
			}
		}
		return domain.Result{}, fmt.Errorf("failed to save identity: %w", err)
	}

	var warning string
	if o := s.creds.StoreSecurely(ctx, ident.ID, pw); !o.Stored {
		warning = "; secure credential storage unavailable"
	}

	if reachable {
		err := s.queue.Push(ctx, ident.ID, in.Password)
		if err == nil {
			if fresh, gerr := s.store.Identities().Get(ctx, ident.ID); gerr == nil {
				ident = fresh
			}
			return domain.Result{
				Success:  true,
				Mode:     domain.ModeSynced,
				Message:  "registered and synced" + warning,
				Identity: publicOf(ident),
			}, nil
		}
		if errors.Is(err, ErrEmailTaken) {
			s.rollbackRegistration(ctx, ident.ID)
			return domain.Result{}, ErrEmailTaken
		}
		if errors.Is(err, ErrUsernameTaken) {
			// The provider account was created before the document clashed.
			rctx, cancel := s.remoteCtx(ctx)
			if derr := s.remote.DeleteAccount(rctx, ident.Email, in.Password); derr != nil {
				s.logger.Warn("failed to remove provider account of rolled back registration", "error", derr)
			}
			cancel()
			s.rollbackRegistration(ctx, ident.ID)
			return domain.Result{}, ErrUsernameTaken
		}
		s.logger.Warn("write-through failed, queueing", "identity_id", ident.ID, "error", err)
	}

	if err := s.queue.EnqueueCreate(ctx, ident, in.Password); err != nil {
		return domain.Result{}, err
	}
	return domain.Result{
		Success:  true,
		Mode:     domain.ModeQueued,
		Message:  "registered on this device; sync to the directory is queued" + warning,
		Identity: publicOf(ident),
	}, nil
}

func (s *Service) checkLocalUnique(ctx context.Context, email, username string) error {
	if _, err := s.store.Identities().GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := s.store.Identities().GetByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) checkRemoteUnique(ctx context.Context, email, username string) error {
	doc, err := s.findOne(ctx, directory.FieldEmail, email)
	if err != nil {
		return err
	}
	if doc != nil {
		return ErrEmailTaken
	}
	doc, err = s.findOne(ctx, directory.FieldUsername, username)
	if err != nil {
		return err
	}
	if doc != nil {
		return ErrUsernameTaken
	}
	return nil
}

func (s *Service) rollbackRegistration(ctx context.Context, identityID string) {
	if err := s.store.Identities().Delete(ctx, identityID); err != nil {
		s.logger.Error("failed to roll back local registration", "identity_id", identityID, "error", err)
	}
	if err := s.creds.Forget(ctx, identityID); err != nil {
		s.logger.Warn("failed to clear credentials of rolled back registration", "identity_id", identityID, "error", err)
	}
}
