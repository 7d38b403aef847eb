package client

import (
	"encoding/json"
	"time"
)

// Health is the daemon's health response.
type Health struct {
	Status     string `json:"status"`
	World      string `json:"world"`
	Leader     bool   `json:"leader"`
	Epoch      int64  `json:"epoch,omitempty"`
	Schedulers int    `json:"schedulers"`
}

// Bounds is the spawn interval range. Durations are nanoseconds on the wire.
type Bounds struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

type Milestone struct {
	Threshold time.Duration `json:"threshold"`
	Tier      string        `json:"tier"`
	Fired     bool          `json:"fired"`
}

// SchedulerState mirrors the scheduler's exported state.
type SchedulerState struct {
	Elapsed         time.Duration `json:"elapsed"`
	LastSpawn       time.Duration `json:"last_spawn"`
	NextInterval    time.Duration `json:"next_interval"`
	Bounds          Bounds        `json:"bounds"`
	BatchSize       int           `json:"batch_size"`
	SpawningEnabled bool          `json:"spawning_enabled"`
	Bound           bool          `json:"bound"`
	Frozen          bool          `json:"frozen"`
	DecayFactor     float64       `json:"decay_factor"`
	Milestones      []Milestone   `json:"milestones"`
}

type TierStats struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Size    int    `json:"size"`
	InUse   int    `json:"in_use"`
}

type Counters struct {
	Ticks           int64 `json:"ticks"`
	SpawnEvents     int64 `json:"spawn_events"`
	EntitiesSpawned int64 `json:"entities_spawned"`
	EntitiesRevived int64 `json:"entities_revived"`
	SlotsDropped    int64 `json:"slots_dropped"`
	MilestonesFired int64 `json:"milestones_fired"`
	Released        int64 `json:"released"`
}

// Scheduler is one scheduler as reported by GET /v1/schedulers.
type Scheduler struct {
	ID       string         `json:"id"`
	World    string         `json:"world"`
	Now      time.Duration  `json:"now"`
	State    SchedulerState `json:"state"`
	Tiers    []TierStats    `json:"tiers"`
	Counters Counters       `json:"counters"`
	BindErr  string         `json:"bind_error,omitempty"`
}

// Event is one audit log entry.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	TsEvent       time.Time       `json:"ts_event"`
	TsIngest      time.Time       `json:"ts_ingest"`
	Epoch         int64           `json:"epoch,omitempty"`
	SimTime       time.Duration   `json:"sim_time"`
	Source        EventSource     `json:"source"`
	Dimensions    EventDimensions `json:"dimensions"`
	Payload       json.RawMessage `json:"payload"`
}

type EventSource struct {
	OriginKind string `json:"origin_kind"`
	OriginID   string `json:"origin_id"`
	WriterID   string `json:"writer_id"`
}

type EventDimensions struct {
	WorldID     string `json:"world_id"`
	SchedulerID string `json:"scheduler_id"`
	Tier        string `json:"tier,omitempty"`
}

// EventsOptions filters GetEvents. Zero values mean no filter.
type EventsOptions struct {
	Limit       int
	Type        string
	SchedulerID string
}

type spawningRequest struct {
	Reason string `json:"reason,omitempty"`
}

type spawningResponse struct {
	SchedulerID     string `json:"scheduler_id"`
	SpawningEnabled bool   `json:"spawning_enabled"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
