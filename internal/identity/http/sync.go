package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

type SyncHandler struct {
	Service *service.Service
}

// HandleStatus handles GET /v1/sync/status
//
//	@Summary		Sync Status
//	@Description	Summarizes the operation queue and the last known connectivity.
//	@Tags			Sync
//	@Produce		json
//	@Success		200	{object}	idsyncsdk.Status			"pending, failed, unsynced, connectivity"
//	@Failure		500	{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/sync/status [get].
func (h *SyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.Service.SyncStatus(ctx)
	if err != nil {
		writeServiceError(w, slogx.FromContext(ctx), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

// HandleRun handles POST /v1/sync/run
//
//	@Summary		Run Sync
//	@Description	Drains the operation queue once.
//	@Tags			Sync
//	@Produce		json
//	@Success		200	{object}	idsyncsdk.DrainReport	"processed, succeeded, retried, failed, remaining"
//	@Failure		409	{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Failure		503	{object}	idsyncsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/sync/run [post].
func (h *SyncHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.Service.SyncNow(ctx)
	if err != nil {
		writeServiceError(w, slogx.FromContext(ctx), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

// HandleRetryFailed handles POST /v1/sync/retry-failed
//
//	@Summary		Retry Failed Operations
//	@Description	Moves every failed operation back to pending with a fresh retry budget.
//	@Tags			Sync
//	@Produce		json
//	@Success		200	{object}	idsyncsdk.RetryFailedResponse	"requeued, at"
//	@Failure		500	{object}	idsyncsdk.ErrorResponse			"error, error_description"
//	@Router			/v1/sync/retry-failed [post].
func (h *SyncHandler) HandleRetryFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.Service.RetryFailed(ctx)
	if err != nil {
		writeServiceError(w, slogx.FromContext(ctx), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, idsyncsdk.RetryFailedResponse{Requeued: n, At: time.Now().UTC()})
}
