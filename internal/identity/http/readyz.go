package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/idsyncsdk"
)

// ReadyzHandler checks the local database and the directory. Only the
// database decides readiness: an engine without the directory still serves
// offline logins, so that case reports "offline" with 200.
//
//	@Summary		Readiness Check
//	@Description	Reports the database and directory checks. 503 only when the local database fails.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	idsyncsdk.HealthResponse	"status (ok or offline), uptime, version, checks"
//	@Failure		503	{object}	idsyncsdk.HealthResponse	"status degraded, checks"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	monitor Reachability,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &idsyncsdk.HealthChecks{
			Database:  "ok",
			Directory: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if monitor != nil && !monitor.IsReachable(r.Context()) {
			checks.Directory = "unreachable"
			if !monitor.State().Connected {
				checks.Directory = "no network"
			}
			overallStatus = "offline"
		}

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := idsyncsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
