package idsyncsdk

import (
	"context"
	"net/http"
)

// Session holds a session token for the account endpoints. Tokens are short
// lived and not refreshed; sign in again once the engine rejects one.
type Session struct {
	client *SDKClient
	token  string
}

func (s *Session) Token() string { return s.token }

func (s *Session) ChangePassword(ctx context.Context, current, next string) (*Result, error) {
	var res Result
	err := s.client.call(ctx, http.MethodPost, "/v1/account/password", s.token,
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, &res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) DeleteAccount(ctx context.Context, password string) (*Result, error) {
	var res Result
	err := s.client.call(ctx, http.MethodDelete, "/v1/account", s.token,
		DeleteAccountRequest{Password: password}, &res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
