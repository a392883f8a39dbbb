// Package http exposes the identity engine over JSON/HTTP.
package http

//go:generate go run github.com/swaggo/swag/cmd/swag@v1.16.6 init --dir ../../.. --generalInfo internal/identity/http/router.go --output ../../../api/idsync --outputTypes go,json --parseInternal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/service"
	"github.com/aussiebroadwan/idsync/internal/identity/store"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/jwtx"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/idsync/api/idsync" // Swagger docs
)

// Reachability is what readiness needs from the connectivity monitor.
type Reachability interface {
	State() domain.ConnectivityState
	IsReachable(ctx context.Context) bool
}

// RateLimits are the per-route request budgets. Credentials covers routes
// that check a password or security answer, Operations the conflict, sync
// and lookup routes, and Polling status and health.
type RateLimits struct {
	Credentials httpx.RateLimit
	Operations  httpx.RateLimit
	Polling     httpx.RateLimit
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	limits       RateLimits
	logger       *slog.Logger

	store   store.Store
	monitor Reachability
	Service *service.Service
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	monitor Reachability,
	limits RateLimits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		monitor:      monitor,
		limits:       limits,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerIdentity()
	r.registerConflicts()
	r.registerAccount()
	r.registerSync()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP applies the global middleware chain.
//
//	@title			idsync Identity Engine API
//	@version		0.1.0
//	@description	Offline-first identity engine. Registrations and credential changes are stored on the device and
//	@description	replayed to the remote directory through a durable queue once it is reachable.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/idsync
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token from login. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// byIP limits per client address.
func byIP(l httpx.RateLimit) httpx.Middleware {
	return httpx.RateLimitBy(l, httpx.ClientIP)
}

// byIPAndField adds a folded body field to the key, so one client cannot
// spread guesses over many spellings of the same account.
func byIPAndField(l httpx.RateLimit, field string) httpx.Middleware {
	return httpx.RateLimitBy(l, httpx.ClientIP, httpx.JSONField(field, domain.FoldKey))
}

func (r *Router) registerIdentity() {
	h := &IdentityHandler{Service: r.Service}

	r.Mux.Handle("POST /v1/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), byIP(r.limits.Credentials)),
	)
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), byIPAndField(r.limits.Credentials, "key")),
	)
	r.Mux.Handle("GET /v1/phones/{phone}/availability",
		httpx.Chain(http.HandlerFunc(h.HandlePhoneAvailability), byIP(r.limits.Operations)),
	)
}

func (r *Router) registerConflicts() {
	h := &ConflictHandler{Service: r.Service}

	r.Mux.Handle("GET /v1/conflicts/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet), byIP(r.limits.Operations)),
	)
	r.Mux.Handle("POST /v1/conflicts/{id}/resolve",
		httpx.Chain(http.HandlerFunc(h.HandleResolve), byIP(r.limits.Operations)),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{Service: r.Service}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitBy(r.limits.Credentials, httpx.Subject, httpx.ClientIP),
		)
	}
	r.Mux.Handle("POST /v1/account/password", secured(h.HandleChangePassword))
	r.Mux.Handle("DELETE /v1/account", secured(h.HandleDelete))

	// The security answer is the only secret on reset.
	r.Mux.Handle("POST /v1/account/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset), byIPAndField(r.limits.Credentials, "email")),
	)
}

func (r *Router) registerSync() {
	h := &SyncHandler{Service: r.Service}

	r.Mux.Handle("GET /v1/sync/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus), byIP(r.limits.Polling)),
	)
	r.Mux.Handle("POST /v1/sync/run",
		httpx.Chain(http.HandlerFunc(h.HandleRun), byIP(r.limits.Operations)),
	)
	r.Mux.Handle("POST /v1/sync/retry-failed",
		httpx.Chain(http.HandlerFunc(h.HandleRetryFailed), byIP(r.limits.Operations)),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), byIP(r.limits.Polling)),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.monitor), byIP(r.limits.Polling)),
	)
}
