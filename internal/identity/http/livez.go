package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
)

// LivezHandler godoc
//
//	@Summary		Liveness Check
//	@Description	Always answers 200 while the process runs.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	idsyncsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := idsyncsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}
