package http

import (
	"net/http"

	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

type ConflictHandler struct {
	Service *service.Service
}

// HandleGet handles GET /v1/conflicts/{id}
//
//	@Summary		Get Login Conflict
//	@Description	Returns the fields that disagree for an open login conflict.
//	@Tags			Conflicts
//	@Produce		json
//	@Param			id	path		string								true	"Conflict ID"
//	@Success		200	{object}	idsyncsdk.PendingConflictResponse	"conflict_id, conflict_type, conflicts"
//	@Failure		404	{object}	idsyncsdk.ErrorResponse				"error, error_description"
//	@Router			/v1/conflicts/{id} [get].
func (h *ConflictHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scenario, conflicts, ok := h.Service.PendingConflict(id)
	if !ok {
		writeServiceError(w, slogx.FromContext(r.Context()), service.ErrConflictNotFound)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, idsyncsdk.PendingConflictResponse{
		ConflictID:   id,
		ConflictType: scenario,
		Conflicts:    conflicts,
	})
}

// HandleResolve handles POST /v1/conflicts/{id}/resolve
//
//	@Summary		Resolve Login Conflict
//	@Description	Commits one resolution per conflicting field, writing the directory first and then the device.
//	@Tags			Conflicts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Conflict ID"
//	@Param			request	body		idsyncsdk.ResolveRequest	true	"Resolutions"
//	@Success		200		{object}	idsyncsdk.Result			"success, or requires_resolution when the commit failed"
//	@Failure		400		{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Failure		404		{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Failure		409		{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/conflicts/{id}/resolve [post].
func (h *ConflictHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req idsyncsdk.ResolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := h.Service.ResolveConflict(ctx, r.PathValue("id"), req.Resolutions)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, res)
}
