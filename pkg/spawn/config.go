package spawn

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultDecayFactor shrinks both interval bounds by roughly 23% per qualifying milestone.
const DefaultDecayFactor = 1 / 1.3

// MilestoneSpec configures one tier unlock.
type MilestoneSpec struct {
	Threshold time.Duration
	Tier      string
}

// Config holds the construction-time options of a Scheduler.
type Config struct {
	MinFrequency    time.Duration
	MaxFrequency    time.Duration
	BatchSize       int
	SpawningEnabled bool
	Milestones      []MilestoneSpec
	// DecayFactor multiplies both bounds on every milestone after the first.
	// Zero selects DefaultDecayFactor.
	DecayFactor float64
	Anchor      Position
}

// DefaultConfig mirrors the reference spawner: a one second cadence, one
// entity per event and three tiers unlocked at 3s, 30s and 60s.
func DefaultConfig() Config {
	return Config{
		MinFrequency:    time.Second,
		MaxFrequency:    time.Second,
		BatchSize:       1,
		SpawningEnabled: true,
		Milestones: []MilestoneSpec{
			{Threshold: 3 * time.Second, Tier: "Enemy_Grunt"},
			{Threshold: 30 * time.Second, Tier: "Enemy_Soldier"},
			{Threshold: 60 * time.Second, Tier: "Enemy_Overwatch"},
		},
		DecayFactor: DefaultDecayFactor,
	}
}

// Validate checks the config and returns an error wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if c.MinFrequency < 0 {
		return fmt.Errorf("%w: min frequency must not be negative", ErrInvalidConfig)
	}
	if c.MaxFrequency < c.MinFrequency {
		return fmt.Errorf("%w: max frequency %s is below min frequency %s", ErrInvalidConfig, c.MaxFrequency, c.MinFrequency)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.DecayFactor < 0 || c.DecayFactor > 1 {
		return fmt.Errorf("%w: decay factor must be in [0, 1]; 0 selects the default", ErrInvalidConfig)
	}
	for i, m := range c.Milestones {
		if strings.TrimSpace(m.Tier) == "" {
			return fmt.Errorf("%w: milestone %d has no tier", ErrInvalidConfig, i)
		}
		if m.Threshold < 0 {
			return fmt.Errorf("%w: milestone %q has a negative threshold", ErrInvalidConfig, m.Tier)
		}
	}
	return nil
}

func (c Config) decayFactor() float64 {
	if c.DecayFactor == 0 {
		return DefaultDecayFactor
	}
	return c.DecayFactor
}

// sortedMilestones returns the milestones ordered by threshold; ties keep config order.
func (c Config) sortedMilestones() []Milestone {
	out := make([]Milestone, len(c.Milestones))
	for i, m := range c.Milestones {
		out[i] = Milestone{Threshold: m.Threshold, Tier: m.Tier}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Threshold < out[j].Threshold
	})
	return out
}
