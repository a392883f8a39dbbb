package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
)

// Client talks to a directory server over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

type listResponse struct {
	Items []domain.Identity `json:"items"`
}

type countResponse struct {
	Count int `json:"count"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return err
	}
	var out healthResponse
	return decodeJSON(resp, &out, http.StatusOK)
}

func (c *Client) Upsert(ctx context.Context, doc domain.Identity) error {
	if doc.RemoteID == "" {
		return fmt.Errorf("%w: missing remote id", ErrInvalid)
	}
	resp, err := c.doRequest(ctx, http.MethodPut, "/v1/identities/"+url.PathEscape(doc.RemoteID), doc)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) Get(ctx context.Context, remoteID string) (domain.Identity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/identities/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return domain.Identity{}, err
	}
	var doc domain.Identity
	if err := decodeJSON(resp, &doc, http.StatusOK); err != nil {
		return domain.Identity{}, err
	}
	return doc, nil
}

func (c *Client) FindBy(ctx context.Context, field Field, value string) ([]domain.Identity, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: field %q", ErrInvalid, field)
	}
	q := url.Values{string(field): {value}}
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/identities?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out listResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) CountByPhone(ctx context.Context, phone string) (int, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/phones/"+url.PathEscape(phone)+"/count", nil)
	if err != nil {
		return 0, err
	}
	var out countResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) Delete(ctx context.Context, remoteID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/identities/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/accounts", credentialsRequest{email, password})
	if err != nil {
		return asNetworkAuthError(err)
	}
	return asNetworkAuthError(checkStatus(resp, http.StatusCreated))
}

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/sign-in", credentialsRequest{email, password})
	if err != nil {
		return asNetworkAuthError(err)
	}
	return asNetworkAuthError(checkStatus(resp, http.StatusNoContent))
}

func (c *Client) UpdatePassword(ctx context.Context, email, current, next string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/password", passwordRequest{
		Email:           email,
		CurrentPassword: current,
		NewPassword:     next,
	})
	if err != nil {
		return asNetworkAuthError(err)
	}
	return asNetworkAuthError(checkStatus(resp, http.StatusNoContent))
}

func (c *Client) DeleteAccount(ctx context.Context, email, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/accounts/delete", credentialsRequest{email, password})
	if err != nil {
		return asNetworkAuthError(err)
	}
	return asNetworkAuthError(checkStatus(resp, http.StatusNoContent))
}

// doRequest sends body as JSON. Transport failures and deadlines map to
// ErrUnavailable; a caller cancellation is returned as ctx.Err().
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// asNetworkAuthError gives provider calls a fixed category whether the
// directory was unreachable or answered with a server error.
func asNetworkAuthError(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return authErr(CategoryNetwork, err)
	}
	return err
}

func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != expectedStatus {
		return mapError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response, expectedStatus int) error {
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		body, _ := io.ReadAll(resp.Body)
		return mapError(resp.StatusCode, body)
	}
	return nil
}

// mapError turns a server error response into the package sentinels.
func mapError(status int, body []byte) error {
	var er httpx.ErrorResponse
	_ = json.Unmarshal(body, &er)
	desc := er.Description
	if desc == "" {
		desc = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, desc)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalid, desc)
	case status == http.StatusUnauthorized:
		return authErr(CategoryWrongCredential, nil)
	case status == http.StatusForbidden:
		return authErr(CategoryDisabled, nil)
	case status == http.StatusTooManyRequests:
		return authErr(CategoryRateLimited, nil)
	case status >= 500:
		return fmt.Errorf("%w: %d %s", ErrUnavailable, status, desc)
	default:
		return fmt.Errorf("directory: unexpected status %d: %s", status, desc)
	}
}
