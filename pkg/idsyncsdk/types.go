package idsyncsdk

import (
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

// Result, Status and the conflict types are shared with the engine.
type (
	Result     = domain.Result
	Status     = domain.Status
	Conflict   = domain.Conflict
	Resolution = domain.Resolution
	Scenario   = domain.Scenario
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Health
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database  string `json:"database"`
	Directory string `json:"directory"`
}

// ============================================================================
// Identity
// ============================================================================

type RegisterRequest struct {
	Email            string `json:"email"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	Phone            string `json:"phone,omitempty"`
	Name             string `json:"name,omitempty"`
	Role             string `json:"role,omitempty"`
	AuthMethod       string `json:"auth_method,omitempty"`
	SecurityQuestion string `json:"security_question,omitempty"`
	SecurityAnswer   string `json:"security_answer,omitempty"`
}

// LoginRequest carries an email or a username in Key.
type LoginRequest struct {
	Key      string `json:"key"`
	Password string `json:"password"`
}

type ResolveRequest struct {
	Resolutions []Resolution `json:"resolutions"`
}

// PendingConflictResponse describes an open login conflict.
type PendingConflictResponse struct {
	ConflictID   string     `json:"conflict_id"`
	ConflictType Scenario   `json:"conflict_type"`
	Conflicts    []Conflict `json:"conflicts"`
}

type PhoneAvailabilityResponse struct {
	Available bool `json:"available"`
	Count     int  `json:"count"`
	Max       int  `json:"max"`
}

// ============================================================================
// Account
// ============================================================================

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ResetPasswordRequest struct {
	Email          string `json:"email"`
	SecurityAnswer string `json:"security_answer"`
	NewPassword    string `json:"new_password"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// ============================================================================
// Sync
// ============================================================================

type DrainReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

type RetryFailedResponse struct {
	Requeued int       `json:"requeued"`
	At       time.Time `json:"at"`
}
