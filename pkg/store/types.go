package store

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the kind of event.
type EventType string

const (
	EventTypeSchedulerBound   EventType = "scheduler_bound"
	EventTypeSchedulerInert   EventType = "scheduler_inert"
	EventTypeMilestoneFired   EventType = "milestone_fired"
	EventTypeSpawnBatch       EventType = "spawn_batch"
	EventTypePoolExhausted    EventType = "pool_exhausted"
	EventTypeSpawningToggled  EventType = "spawning_toggled"
	EventTypeLeadershipChange EventType = "leadership_changed"
)

// Lease represents a distributed lock or leadership claim.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"`
	Epoch     int64     `json:"epoch"` // bumped whenever the holder changes
}

// LeaseStore defines the interface for acquiring and renewing leases.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns ErrLeaseLost if the lease expired or was taken over.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease state, or nil if nobody holds it.
	Get(ctx context.Context, name string) (*Lease, error)
}

// EventID is a unique identifier for an event.
type EventID string

// Event is the envelope stored in the audit log.
type Event struct {
	EventID       EventID         `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	TsEvent       time.Time       `json:"ts_event"`
	TsIngest      time.Time       `json:"ts_ingest"`
	Epoch         int64           `json:"epoch,omitempty"`
	SimTime       time.Duration   `json:"sim_time"` // driver clock offset when the event happened
	Source        EventSource     `json:"source"`
	Dimensions    EventDimensions `json:"dimensions"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSource describes the origin of the event.
type EventSource struct {
	OriginKind string `json:"origin_kind"` // driver, operator, simulation
	OriginID   string `json:"origin_id"`
	WriterID   string `json:"writer_id"`
}

// EventDimensions locate the event in the world.
type EventDimensions struct {
	WorldID     string `json:"world_id"`
	SchedulerID string `json:"scheduler_id"`
	Tier        string `json:"tier,omitempty"`
}

// EventFilter defines filters for querying events.
type EventFilter struct {
	From        time.Time
	To          time.Time
	EventTypes  []EventType
	WorldID     string
	SchedulerID string
	Limit       int
	// Ascending returns oldest events first.
	Ascending bool
}

const SchemaVersion = 1
