package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/pool"
	"github.com/rmax-ai/spawnlord/pkg/spawn"
)

var ErrInvalidWorld = errors.New("invalid world config")

// WorldConfig is the top-level structure of a world file.
type WorldConfig struct {
	World      string            `json:"world" yaml:"world" jsonschema:"required,description=Name of the world; scopes shared tier state"`
	Schedulers []SchedulerConfig `json:"schedulers" yaml:"schedulers" jsonschema:"required,minItems=1"`
}

// SchedulerConfig describes one spawn scheduler and the pool it draws from.
// Durations are in seconds.
type SchedulerConfig struct {
	ID              string            `json:"id" yaml:"id" jsonschema:"required"`
	MinFrequency    float64           `json:"min_frequency" yaml:"min_frequency" jsonschema:"required,minimum=0,description=Lower bound of the spawn interval in seconds"`
	MaxFrequency    float64           `json:"max_frequency" yaml:"max_frequency" jsonschema:"required,minimum=0,description=Upper bound of the spawn interval in seconds"`
	BatchSize       int               `json:"batch_size" yaml:"batch_size" jsonschema:"required,minimum=1"`
	SpawningEnabled *bool             `json:"spawning_enabled,omitempty" yaml:"spawning_enabled,omitempty" jsonschema:"description=Initial gate state (default true)"`
	DecayFactor     float64           `json:"decay_factor,omitempty" yaml:"decay_factor,omitempty" jsonschema:"exclusiveMinimum=0,maximum=1,description=Interval multiplier per milestone after the first (default 1/1.3)"`
	Anchor          spawn.Position    `json:"anchor" yaml:"anchor"`
	SpawnRadius     float64           `json:"spawn_radius,omitempty" yaml:"spawn_radius,omitempty" jsonschema:"minimum=0"`
	Seed            int64             `json:"seed,omitempty" yaml:"seed,omitempty" jsonschema:"description=Random seed; 0 seeds from the clock"`
	Milestones      []MilestoneConfig `json:"milestones" yaml:"milestones"`
	Tiers           []TierConfig      `json:"tiers" yaml:"tiers"`
}

type MilestoneConfig struct {
	Threshold float64 `json:"threshold" yaml:"threshold" jsonschema:"required,minimum=0,description=Elapsed seconds that must be exceeded"`
	Tier      string  `json:"tier" yaml:"tier" jsonschema:"required"`
}

type TierConfig struct {
	Name      string  `json:"name" yaml:"name" jsonschema:"required"`
	Size      int     `json:"size" yaml:"size" jsonschema:"required,minimum=0"`
	Enabled   bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MaxHealth float64 `json:"max_health,omitempty" yaml:"max_health,omitempty" jsonschema:"minimum=0"`
	Lifetime  float64 `json:"lifetime,omitempty" yaml:"lifetime,omitempty" jsonschema:"minimum=0,description=Seconds before an active entity returns to the pool; 0 keeps it"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SpawnConfig converts the file representation to a scheduler config.
func (c SchedulerConfig) SpawnConfig() spawn.Config {
	enabled := true
	if c.SpawningEnabled != nil {
		enabled = *c.SpawningEnabled
	}
	cfg := spawn.Config{
		MinFrequency:    seconds(c.MinFrequency),
		MaxFrequency:    seconds(c.MaxFrequency),
		BatchSize:       c.BatchSize,
		SpawningEnabled: enabled,
		DecayFactor:     c.DecayFactor,
		Anchor:          c.Anchor,
	}
	for _, m := range c.Milestones {
		cfg.Milestones = append(cfg.Milestones, spawn.MilestoneSpec{
			Threshold: seconds(m.Threshold),
			Tier:      m.Tier,
		})
	}
	return cfg
}

// TierSpecs converts the tier list for pool construction.
func (c SchedulerConfig) TierSpecs() []pool.TierSpec {
	specs := make([]pool.TierSpec, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		specs = append(specs, pool.TierSpec{
			Name:      t.Name,
			Size:      t.Size,
			Enabled:   t.Enabled,
			MaxHealth: t.MaxHealth,
			Lifetime:  seconds(t.Lifetime),
		})
	}
	return specs
}

// Validate checks structure only. Unknown milestone tiers are reported here
// so a bad file fails at load time instead of producing an inert scheduler.
func (w *WorldConfig) Validate() error {
	if strings.TrimSpace(w.World) == "" {
		return fmt.Errorf("%w: world must be set", ErrInvalidWorld)
	}
	if len(w.Schedulers) == 0 {
		return fmt.Errorf("%w: at least one scheduler is required", ErrInvalidWorld)
	}
	seen := make(map[string]bool, len(w.Schedulers))
	for i, sc := range w.Schedulers {
		if strings.TrimSpace(sc.ID) == "" {
			return fmt.Errorf("%w: scheduler %d has no id", ErrInvalidWorld, i)
		}
		if seen[sc.ID] {
			return fmt.Errorf("%w: duplicate scheduler id %q", ErrInvalidWorld, sc.ID)
		}
		seen[sc.ID] = true
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("%w: scheduler %q: %v", ErrInvalidWorld, sc.ID, err)
		}
	}
	return nil
}

func (c SchedulerConfig) Validate() error {
	if err := c.SpawnConfig().Validate(); err != nil {
		return err
	}
	if c.SpawnRadius < 0 {
		return fmt.Errorf("spawn radius must not be negative")
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("at least one tier is required")
	}
	tiers := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Name == "" || strings.TrimSpace(t.Name) != t.Name {
			return fmt.Errorf("tier name %q must be non-empty without surrounding whitespace", t.Name)
		}
		if t.Size < 0 {
			return fmt.Errorf("tier %q: size must not be negative", t.Name)
		}
		if t.Lifetime < 0 {
			return fmt.Errorf("tier %q: lifetime must not be negative", t.Name)
		}
		tiers[t.Name] = true
	}
	for _, m := range c.Milestones {
		if !tiers[m.Tier] {
			return fmt.Errorf("milestone tier %q is not a pool tier", m.Tier)
		}
	}
	return nil
}

// Instance is a built scheduler together with the pool it is bound to.
type Instance struct {
	ID        string
	Scheduler *spawn.Scheduler
	Pool      *pool.MultiPool
	// BindErr is set when the scheduler was left inert.
	BindErr error
}

// TierStoreFactory returns the tier store for one scheduler's pool.
type TierStoreFactory func(world, schedulerID string) pool.TierStore

// Build constructs every scheduler and binds it to a fresh pool. A nil
// factory keeps tier state in memory.
func (w *WorldConfig) Build(stores TierStoreFactory) ([]*Instance, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	var out []*Instance
	for _, sc := range w.Schedulers {
		inst, err := sc.build(w.World, stores)
		if err != nil {
			return nil, fmt.Errorf("scheduler %q: %w", sc.ID, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (c SchedulerConfig) build(world string, stores TierStoreFactory) (*Instance, error) {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	s, err := spawn.NewScheduler(c.SpawnConfig(), rng)
	if err != nil {
		return nil, err
	}
	if c.SpawnRadius > 0 {
		s.SetPlacement(spawn.RadiusPlacement{
			Radius: c.SpawnRadius,
			Rand:   rand.New(rand.NewSource(seed + 1)),
		})
	}

	var ts pool.TierStore
	if stores != nil {
		ts = stores(world, c.ID)
	}
	p, err := pool.New(c.TierSpecs(), ts)
	if err != nil {
		return nil, err
	}

	inst := &Instance{ID: c.ID, Scheduler: s, Pool: p}
	inst.BindErr = s.Initialize(p)
	return inst, nil
}
