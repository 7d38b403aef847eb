package spawn

import "time"

// Position is a point in world space.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Entity is the activation capability every pooled instance must expose.
type Entity interface {
	Activate()
	NotifySpawnComplete()
	SetPosition(p Position)
}

// Reviver is the optional capability of entities that carry depletable health.
type Reviver interface {
	Revive()
}

// Pool supplies ready-to-use entities and gates named tiers.
// GetInstance never blocks; it reports exhaustion with ok == false.
type Pool interface {
	GetInstance() (Entity, bool)
	EnableTier(name string, enabled bool)
}

// TierCatalog is implemented by pools that can report which tiers they know.
type TierCatalog interface {
	HasTier(name string) bool
}

// Validator is implemented by pools that can check, before the first spawn,
// that every instance they will hand out is usable.
type Validator interface {
	Validate() error
}

// RandomSource is the subset of *rand.Rand the scheduler needs.
type RandomSource interface {
	Float64() float64
}

// Bounds is the closed interval a spawn interval is drawn from.
type Bounds struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Milestone is a tier unlock at a fixed elapsed time.
type Milestone struct {
	Threshold time.Duration `json:"threshold"`
	Tier      string        `json:"tier"`
	Fired     bool          `json:"fired"`
}

// FiredMilestone describes one milestone transition within a tick.
type FiredMilestone struct {
	Index     int           `json:"index"`
	Tier      string        `json:"tier"`
	Threshold time.Duration `json:"threshold"`
	Decayed   bool          `json:"decayed"`
	Bounds    Bounds        `json:"bounds"`
}

// BatchResult reports what a single spawn event did.
type BatchResult struct {
	Requested int `json:"requested"`
	Activated int `json:"activated"`
	Revived   int `json:"revived"`
	Dropped   int `json:"dropped"`
}

// Outcome describes what happened during one Tick. It is informational;
// nothing in the scheduler reads it back.
type Outcome struct {
	Now          time.Duration    `json:"now"`
	Elapsed      time.Duration    `json:"elapsed"`
	Fired        []FiredMilestone `json:"fired,omitempty"`
	Spawned      bool             `json:"spawned"`
	Batch        BatchResult      `json:"batch"`
	NextInterval time.Duration    `json:"next_interval"`
	// Bounds are the interval bounds after this tick.
	Bounds Bounds `json:"bounds"`
}

// Empty reports whether the tick neither fired a milestone nor spawned.
func (o Outcome) Empty() bool {
	return len(o.Fired) == 0 && !o.Spawned
}

// State is a read-only copy of a scheduler's internal state.
type State struct {
	Elapsed         time.Duration `json:"elapsed"`
	LastSpawn       time.Duration `json:"last_spawn"`
	NextInterval    time.Duration `json:"next_interval"`
	Bounds          Bounds        `json:"bounds"`
	BatchSize       int           `json:"batch_size"`
	SpawningEnabled bool          `json:"spawning_enabled"`
	Bound           bool          `json:"bound"`
	Frozen          bool          `json:"frozen"`
	DecayFactor     float64       `json:"decay_factor"`
	Anchor          Position      `json:"anchor"`
	Milestones      []Milestone   `json:"milestones"`
}
