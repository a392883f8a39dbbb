package idsyncsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes written by the engine API.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidCredentials   = "invalid_credentials"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeAccountDisabled      = "account_disabled"
	ErrorCodeRateLimited          = "rate_limited"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeCannotVerify         = "cannot_verify"
	ErrorCodeEmailTaken           = "email_taken"
	ErrorCodeUsernameTaken        = "username_taken"
	ErrorCodePhoneUnavailable     = "phone_unavailable"
	ErrorCodePasswordReused       = "password_reused"
	ErrorCodeConflictNotFound     = "conflict_not_found"
	ErrorCodeConflictBusy         = "conflict_busy"
	ErrorCodeSyncInProgress       = "sync_in_progress"
	ErrorCodeDirectoryUnreachable = "directory_unreachable"
	ErrorCodeServerError          = "server_error"
)

// APIError is a non-2xx response from the engine.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns an error body into an *APIError, falling back to
// the status text when the body is not the usual JSON shape.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
