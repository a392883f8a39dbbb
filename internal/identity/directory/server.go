package directory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/pkg/httpx"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
)

type ServerOptions struct {
	// SignInLimit throttles credential endpoints per IP and email.
	// Zero means 5 a minute.
	SignInLimit httpx.RateLimit
	Logger      *slog.Logger
}

// Server exposes a Remote over HTTP using the routes Client expects.
type Server struct {
	Mux    *http.ServeMux
	remote Remote
	logger *slog.Logger
}

func NewServer(remote Remote, opts ServerOptions) *Server {
	if opts.SignInLimit == (httpx.RateLimit{}) {
		opts.SignInLimit = httpx.RateLimit{Requests: 5, Window: time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{Mux: http.NewServeMux(), remote: remote, logger: opts.Logger}

	s.Mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.Mux.HandleFunc("PUT /v1/identities/{id}", s.handleUpsert)
	s.Mux.HandleFunc("GET /v1/identities/{id}", s.handleGet)
	s.Mux.HandleFunc("DELETE /v1/identities/{id}", s.handleDelete)
	s.Mux.HandleFunc("GET /v1/identities", s.handleFind)
	s.Mux.HandleFunc("GET /v1/phones/{phone}/count", s.handleCountPhone)

	limited := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, httpx.RateLimitBy(opts.SignInLimit, httpx.ClientIP, httpx.JSONField("email", domain.FoldKey)))
	}
	s.Mux.Handle("POST /v1/auth/accounts", limited(s.handleCreateAccount))
	s.Mux.Handle("POST /v1/auth/sign-in", limited(s.handleSignIn))
	s.Mux.Handle("POST /v1/auth/password", limited(s.handleUpdatePassword))
	s.Mux.Handle("POST /v1/auth/accounts/delete", limited(s.handleDeleteAccount))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.Chain(s.Mux, slogx.HTTPMiddleware(s.logger)).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.remote.Ping(r.Context()); err != nil {
		s.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var doc domain.Identity
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed identity document")
		return
	}
	if doc.RemoteID != r.PathValue("id") {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "remote id does not match path")
		return
	}
	if err := s.remote.Upsert(r.Context(), doc); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.remote.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.remote.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		field Field
		value string
	)
	for _, f := range []Field{FieldEmail, FieldUsername, FieldPhone} {
		if q.Has(string(f)) {
			field, value = f, q.Get(string(f))
			break
		}
	}
	if field == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "one of email, username or phone is required")
		return
	}

	docs, err := s.remote.FindBy(r.Context(), field, value)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Identity{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Items: docs})
}

func (s *Server) handleCountPhone(w http.ResponseWriter, r *http.Request) {
	n, err := s.remote.CountByPhone(r.Context(), r.PathValue("phone"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, countResponse{Count: n})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeCredentials(w, r, &req) {
		return
	}
	if err := s.remote.CreateAccount(r.Context(), req.Email, req.Password); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeCredentials(w, r, &req) {
		return
	}
	if err := s.remote.SignIn(r.Context(), req.Email, req.Password); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and new_password are required")
		return
	}
	if err := s.remote.UpdatePassword(r.Context(), req.Email, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeCredentials(w, r, &req) {
		return
	}
	if err := s.remote.DeleteAccount(r.Context(), req.Email, req.Password); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request, req *credentialsRequest) bool {
	if err := httpx.DecodeJSON(r, req); err != nil || req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return false
	}
	return true
}

// writeErr is the inverse of mapError.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	if cat, ok := CategoryOf(err); ok {
		switch cat {
		case CategoryWrongCredential:
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "")
			return
		case CategoryDisabled:
			httpx.WriteError(w, http.StatusForbidden, "account_disabled", "")
			return
		case CategoryRateLimited:
			httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "")
			return
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, ErrInvalid):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
	default:
		slogx.FromContext(r.Context()).Error("directory request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
	}
}
