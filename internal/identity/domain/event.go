package domain

import "time"

type EventKind string

const (
	EventOperationSynced EventKind = "operation_synced"
	EventOperationFailed EventKind = "operation_failed"
	EventDrainStarted    EventKind = "drain_started"
	EventDrainFinished   EventKind = "drain_finished"
)

type Event struct {
	Kind        EventKind `json:"kind"`
	OperationID string    `json:"operation_id,omitempty"`
	IdentityID  string    `json:"identity_id,omitempty"`
	Err         string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}
