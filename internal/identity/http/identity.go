package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

type IdentityHandler struct {
	Service *service.Service
}

// HandleRegister handles POST /v1/register
//
//	@Summary		Register Identity
//	@Description	Creates an identity on this device. When the directory is reachable it is written there too; otherwise the write is queued and mode is "queued".
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		idsyncsdk.RegisterRequest	true	"Registration details"
//	@Success		201		{object}	domain.Result				"success, mode, identity"
//	@Failure		400		{object}	idsyncsdk.ErrorResponse		"error, error_description"
//	@Failure		409		{object}	idsyncsdk.ErrorResponse		"error, error_description"
//	@Failure		429		{object}	idsyncsdk.ErrorResponse		"error, error_description"
//	@Router			/v1/register [post].
func (h *IdentityHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req idsyncsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := h.Service.Register(ctx, service.RegisterInput{
		Email:            req.Email,
		Username:         req.Username,
		Password:         req.Password,
		Phone:            req.Phone,
		Name:             req.Name,
		Role:             req.Role,
		AuthMethod:       domain.AuthMethod(req.AuthMethod),
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, res)
}

// HandleLogin handles POST /v1/login
//
//	@Summary		Login
//	@Description	Signs in with an email or username. A disagreement between the device and the directory returns requires_resolution with a conflict_id instead of a session.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		idsyncsdk.LoginRequest	true	"key (email or username) and password"
//	@Success		200		{object}	domain.Result			"success, mode, session_token or conflicts"
//	@Failure		400		{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/login [post].
func (h *IdentityHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req idsyncsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Key) == "" || req.Password == "" {
		writeBadRequest(w, "key and password are required")
		return
	}

	res, err := h.Service.Login(ctx, req.Key, req.Password)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandlePhoneAvailability handles GET /v1/phones/{phone}/availability
//
//	@Summary		Phone Availability
//	@Description	Counts the accounts using a phone number across the device and the directory.
//	@Tags			Identity
//	@Produce		json
//	@Param			phone	path		string								true	"Phone number"
//	@Success		200		{object}	idsyncsdk.PhoneAvailabilityResponse	"available, count, max"
//	@Failure		400		{object}	idsyncsdk.ErrorResponse				"error, error_description"
//	@Router			/v1/phones/{phone}/availability [get].
func (h *IdentityHandler) HandlePhoneAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	a, err := h.Service.PhoneAvailability(ctx, r.PathValue("phone"))
	if err != nil {
		writeServiceError(w, slogx.FromContext(ctx), err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, idsyncsdk.PhoneAvailabilityResponse{
		Available: a.Available,
		Count:     a.Count,
		Max:       a.Max,
	})
}
