package idsyncsdk

import (
	"context"
	"net/http"
	"net/url"
)

func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	var res Result
	if err := c.call(ctx, http.MethodPost, "/v1/register", "", req, &res, http.StatusCreated); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login signs in with an email or username. A login that needs conflict
// resolution is a successful call with RequiresResolution set.
func (c *SDKClient) Login(ctx context.Context, key, password string) (*Result, error) {
	var res Result
	err := c.call(ctx, http.MethodPost, "/v1/login", "",
		LoginRequest{Key: key, Password: password}, &res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *SDKClient) GetConflict(ctx context.Context, conflictID string) (*PendingConflictResponse, error) {
	var out PendingConflictResponse
	path := "/v1/conflicts/" + url.PathEscape(conflictID)
	if err := c.call(ctx, http.MethodGet, path, "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveConflict submits one resolution per conflicting field. A failed
// commit comes back as a Result that still requires resolution.
func (c *SDKClient) ResolveConflict(
	ctx context.Context,
	conflictID string,
	resolutions []Resolution,
) (*Result, error) {
	var res Result
	path := "/v1/conflicts/" + url.PathEscape(conflictID) + "/resolve"
	err := c.call(ctx, http.MethodPost, path, "", ResolveRequest{Resolutions: resolutions}, &res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *SDKClient) PhoneAvailability(ctx context.Context, phone string) (*PhoneAvailabilityResponse, error) {
	var out PhoneAvailabilityResponse
	path := "/v1/phones/" + url.PathEscape(phone) + "/availability"
	if err := c.call(ctx, http.MethodGet, path, "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword is the recovery flow authorized by the security answer.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Result, error) {
	var res Result
	if err := c.call(ctx, http.MethodPost, "/v1/account/reset", "", req, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}
