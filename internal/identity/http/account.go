package http

import (
	"net/http"

	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

type AccountHandler struct {
	Service *service.Service
}

// HandleChangePassword handles POST /v1/account/password
//
//	@Summary		Change Password
//	@Description	Rotates the password of the session's identity. The new password must not repeat recent ones.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		idsyncsdk.ChangePasswordRequest	true	"current_password, new_password"
//	@Success		200		{object}	idsyncsdk.Result					"success, mode"
//	@Failure		400		{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Failure		401		{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Router			/v1/account/password [post].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject, ok := httpx.SubjectFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, idsyncsdk.ErrorCodeInvalidToken, "missing subject")
		return
	}

	var req idsyncsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := h.Service.ChangePassword(ctx, subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	log.Info("password changed", "identity_id", subject, "mode", res.Mode)
	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleReset handles POST /v1/account/reset
//
//	@Summary		Reset Password
//	@Description	Sets a new password after checking the security answer.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		idsyncsdk.ResetPasswordRequest	true	"email, security_answer, new_password"
//	@Success		200		{object}	idsyncsdk.Result					"success, mode"
//	@Failure		400		{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Failure		401		{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Failure		429		{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Router			/v1/account/reset [post].
func (h *AccountHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req idsyncsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.SecurityAnswer == "" {
		writeBadRequest(w, "email and security_answer are required")
		return
	}

	res, err := h.Service.ResetPassword(ctx, req.Email, req.SecurityAnswer, req.NewPassword)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleDelete handles DELETE /v1/account
//
//	@Summary		Delete Account
//	@Description	Deletes the session's identity on the device and in the directory, queueing the remote delete when offline.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		idsyncsdk.DeleteAccountRequest	true	"password"
//	@Success		200		{object}	idsyncsdk.Result					"success, mode"
//	@Failure		401		{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Router			/v1/account [delete].
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject, ok := httpx.SubjectFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, idsyncsdk.ErrorCodeInvalidToken, "missing subject")
		return
	}

	var req idsyncsdk.DeleteAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := h.Service.DeleteAccount(ctx, subject, req.Password)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	log.Info("account deleted", "identity_id", subject, "mode", res.Mode)
	httpx.WriteJSON(w, http.StatusOK, res)
}
