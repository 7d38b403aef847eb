package simulation

import (
	"github.com/rmax-ai/spawnlord/pkg/engine"
)

// SimulationResult captures the final state of a run for reporting.
type SimulationResult struct {
	ScenarioName        string            `json:"scenario_name"`
	Seed                int64             `json:"seed"`
	DurationSeconds     float64           `json:"duration_seconds"`
	Steps               int               `json:"steps"`
	SpawnEvents         int               `json:"spawn_events"`
	EntitiesSpawned     int               `json:"entities_spawned"`
	EntitiesRevived     int               `json:"entities_revived"`
	SlotsDropped        int               `json:"slots_dropped"`
	Released            int               `json:"released"`
	TiersUnlocked       int               `json:"tiers_unlocked"`
	ElapsedSeconds      float64           `json:"elapsed_seconds"`
	MinFrequencySeconds float64           `json:"min_frequency_seconds"`
	MaxFrequencySeconds float64           `json:"max_frequency_seconds"`
	Milestones          []MilestoneFiring `json:"milestones"`
	Invariants          []InvariantResult `json:"invariants"`
	Success             bool              `json:"success"`
}

// MilestoneFiring records when a milestone fired in simulated time.
type MilestoneFiring struct {
	Index            int     `json:"index"`
	Tier             string  `json:"tier"`
	ThresholdSeconds float64 `json:"threshold_seconds"`
	FiredAtSeconds   float64 `json:"fired_at_seconds"`
	Decayed          bool    `json:"decayed"`
}

type InvariantResult struct {
	Metric   string `json:"metric"`
	Expected string `json:"expected"` // e.g. ">= 3.00"
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// Scenario is one deterministic run of a single scheduler. Times are seconds.
type Scenario struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Seed        int64                  `json:"seed" yaml:"seed"`
	Step        float64                `json:"step" yaml:"step"`
	Duration    float64                `json:"duration" yaml:"duration"`
	Scheduler   engine.SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Starve      *StarveWindow          `json:"starve,omitempty" yaml:"starve,omitempty"`
	Invariants  []Invariant            `json:"invariants,omitempty" yaml:"invariants,omitempty"`
}

// StarveWindow makes the pool hand out nothing while From <= now < To.
type StarveWindow struct {
	From float64 `json:"from" yaml:"from"`
	To   float64 `json:"to" yaml:"to"`
}

type Invariant struct {
	Metric    string  `json:"metric" yaml:"metric"`       // see Metrics
	Condition string  `json:"condition" yaml:"condition"` // >, >=, <, <=, ==
	Value     float64 `json:"value" yaml:"value"`
}

// Metrics lists the names an Invariant may refer to.
var Metrics = []string{
	"spawn_events",
	"entities_spawned",
	"slots_dropped",
	"tiers_unlocked",
	"elapsed_seconds",
	"min_frequency_seconds",
	"max_frequency_seconds",
}
