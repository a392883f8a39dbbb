package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{service.ErrWrongCredential, http.StatusUnauthorized, idsyncsdk.ErrorCodeInvalidCredentials},
	{service.ErrAccountDisabled, http.StatusForbidden, idsyncsdk.ErrorCodeAccountDisabled},
	{service.ErrRateLimited, http.StatusTooManyRequests, idsyncsdk.ErrorCodeRateLimited},
	{service.ErrNotFound, http.StatusNotFound, idsyncsdk.ErrorCodeNotFound},
	{service.ErrCannotVerify, http.StatusServiceUnavailable, idsyncsdk.ErrorCodeCannotVerify},
	{service.ErrInvalidEmail, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest},
	{service.ErrInvalidUsername, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest},
	{service.ErrWeakPassword, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest},
	{service.ErrInvalidAuthMethod, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest},
	{service.ErrIncompleteResolution, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest},
	{service.ErrEmailTaken, http.StatusConflict, idsyncsdk.ErrorCodeEmailTaken},
	{service.ErrUsernameTaken, http.StatusConflict, idsyncsdk.ErrorCodeUsernameTaken},
	{service.ErrPhoneUnavailable, http.StatusConflict, idsyncsdk.ErrorCodePhoneUnavailable},
	{service.ErrPasswordReused, http.StatusBadRequest, idsyncsdk.ErrorCodePasswordReused},
	{service.ErrConflictNotFound, http.StatusNotFound, idsyncsdk.ErrorCodeConflictNotFound},
	{service.ErrConflictBusy, http.StatusConflict, idsyncsdk.ErrorCodeConflictBusy},
	{service.ErrSyncInProgress, http.StatusConflict, idsyncsdk.ErrorCodeSyncInProgress},
	{service.ErrDirectoryUnreachable, http.StatusServiceUnavailable, idsyncsdk.ErrorCodeDirectoryUnreachable},
}

// writeServiceError maps engine errors to status codes. Anything unknown is
// logged and reported as a server error without details.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			httpx.WriteError(w, m.status, m.code, m.target.Error())
			return
		}
	}
	log.Error("request failed", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, idsyncsdk.ErrorCodeServerError, "internal server error")
}

func writeBadRequest(w http.ResponseWriter, description string) {
	httpx.WriteError(w, http.StatusBadRequest, idsyncsdk.ErrorCodeInvalidRequest, description)
}
