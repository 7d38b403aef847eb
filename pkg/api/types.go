package api

import (
	"time"

	"github.com/rmax-ai/spawnlord/pkg/spawn"
)

// SpawningRequest is the optional body of POST /v1/schedulers/{id}/enable|disable.
type SpawningRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SpawningResponse is returned by the gate endpoints.
type SpawningResponse struct {
	SchedulerID     string `json:"scheduler_id"`
	SpawningEnabled bool   `json:"spawning_enabled"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status     string `json:"status"`
	World      string `json:"world"`
	Leader     bool   `json:"leader"`
	Epoch      int64  `json:"epoch,omitempty"`
	Schedulers int    `json:"schedulers"`
}

// StreamMessage is one frame on /v1/stream.
type StreamMessage struct {
	Type            string         `json:"type"` // outcome, spawning, bind
	SchedulerID     string         `json:"scheduler_id"`
	Ts              time.Time      `json:"ts"`
	Outcome         *spawn.Outcome `json:"outcome,omitempty"`
	SpawningEnabled *bool          `json:"spawning_enabled,omitempty"`
	Error           string         `json:"error,omitempty"`
}

const (
	StreamTypeOutcome  = "outcome"
	StreamTypeSpawning = "spawning"
	StreamTypeBind     = "bind"
)
