package domain

import "time"

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	ModeSynced  Mode = "synced"
	ModeQueued  Mode = "queued"
)

// Result is what every engine operation hands back to its caller. Conflicts
// are results, not errors.
type Result struct {
	Success bool   `json:"success"`
	Mode    Mode   `json:"mode,omitempty"`
	Message string `json:"message"`

	RequiresResolution bool       `json:"requires_resolution,omitempty"`
	ConflictType       Scenario   `json:"conflict_type,omitempty"`
	Conflicts          []Conflict `json:"conflicts,omitempty"`
	ConflictID         string     `json:"conflict_id,omitempty"`

	Identity     *PublicIdentity `json:"identity,omitempty"`
	SessionToken string          `json:"session_token,omitempty"`
}

// Status summarizes the sync queue.
type Status struct {
	Pending      int               `json:"pending"`
	Failed       int               `json:"failed"`
	Unsynced     int               `json:"unsynced"`
	InProgress   bool              `json:"in_progress"`
	LastSyncAt   *time.Time        `json:"last_sync_at,omitempty"`
	Connectivity ConnectivityState `json:"connectivity"`
}
