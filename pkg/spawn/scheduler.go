package spawn

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Scheduler decides when and how many pooled entities to release, and
// escalates difficulty by unlocking tiers at elapsed-time milestones.
//
// A Scheduler is driven by a single caller; it does no locking of its own.
// All times are offsets on the driver's simulation clock.
type Scheduler struct {
	pool      Pool
	rng       RandomSource
	placement Placement
	logger    *slog.Logger

	elapsed      time.Duration
	lastSpawn    time.Duration
	nextInterval time.Duration
	bounds       Bounds
	batchSize    int
	enabled      bool
	decay        float64
	anchor       Position
	milestones   []Milestone
}

// NewScheduler validates cfg and builds an unbound scheduler. Call Initialize
// before ticking. A nil rng seeds a private source from the wall clock.
func NewScheduler(cfg Config, rng RandomSource) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		rng:        rng,
		placement:  AnchorPlacement{},
		logger:     slog.Default(),
		bounds:     Bounds{Min: cfg.MinFrequency, Max: cfg.MaxFrequency},
		batchSize:  cfg.BatchSize,
		enabled:    cfg.SpawningEnabled,
		decay:      cfg.decayFactor(),
		anchor:     cfg.Anchor,
		milestones: cfg.sortedMilestones(),
	}, nil
}

// SetLogger replaces the logger used for diagnostics.
func (s *Scheduler) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetPlacement replaces the placement strategy. Nil restores anchor placement.
func (s *Scheduler) SetPlacement(p Placement) {
	if p == nil {
		p = AnchorPlacement{}
	}
	s.placement = p
}

// Initialize binds the pool and samples the first interval.
//
// Binding failures are not fatal to the host: the scheduler logs the
// diagnostic, stays unbound and every later Tick is a no-op.
func (s *Scheduler) Initialize(pool Pool) error {
	s.pool = nil
	if pool == nil {
		s.logger.Warn("scheduler_inert", "reason", "no_pool_bound")
		return ErrNoPoolBound
	}
	if err := s.checkPool(pool); err != nil {
		s.logger.Error("scheduler_inert", "reason", "pool_rejected", "error", err)
		return err
	}
	s.pool = pool
	s.nextInterval = SampleInterval(s.bounds, s.rng)
	s.logger.Debug("scheduler_bound", "next_interval", s.nextInterval, "milestones", len(s.milestones))
	return nil
}

func (s *Scheduler) checkPool(pool Pool) error {
	if v, ok := pool.(Validator); ok {
		if err := v.Validate(); err != nil {
			if errors.Is(err, ErrNotPoolable) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrNotPoolable, err)
		}
	}
	if catalog, ok := pool.(TierCatalog); ok {
		for _, m := range s.milestones {
			if !catalog.HasTier(m.Tier) {
				return fmt.Errorf("%w: %q", ErrUnknownTier, m.Tier)
			}
		}
	}
	return nil
}

// Bound reports whether a pool is attached.
func (s *Scheduler) Bound() bool {
	return s.pool != nil
}

// Frozen reports whether the final milestone has fired. Elapsed time no
// longer advances once it has. A scheduler without milestones never freezes.
func (s *Scheduler) Frozen() bool {
	n := len(s.milestones)
	return n > 0 && s.milestones[n-1].Fired
}

// Tick advances the scheduler by one simulation step.
func (s *Scheduler) Tick(now, delta time.Duration) Outcome {
	out := Outcome{Now: now}
	if s.pool == nil {
		out.Elapsed = s.elapsed
		out.Bounds = s.bounds
		return out
	}

	if !s.Frozen() && delta > 0 {
		s.elapsed += delta
	}

	// Every crossed threshold fires, in order, even when one long step
	// straddles several of them.
	for i := range s.milestones {
		m := &s.milestones[i]
		if m.Fired || s.elapsed <= m.Threshold {
			continue
		}
		m.Fired = true
		s.pool.EnableTier(m.Tier, true)
		decayed := i > 0
		if decayed {
			s.ApplyDecay()
		}
		out.Fired = append(out.Fired, FiredMilestone{
			Index:     i,
			Tier:      m.Tier,
			Threshold: m.Threshold,
			Decayed:   decayed,
			Bounds:    s.bounds,
		})
	}

	if s.enabled && now-s.lastSpawn > s.nextInterval {
		out.Batch = s.SpawnBatch(now)
		out.Spawned = true
	}

	out.Elapsed = s.elapsed
	out.NextInterval = s.nextInterval
	out.Bounds = s.bounds
	return out
}

// SpawnBatch requests up to batchSize entities from the pool. Slots the pool
// cannot fill are dropped. The spawn timestamp and next interval are updated
// regardless of how many slots succeeded.
func (s *Scheduler) SpawnBatch(now time.Duration) BatchResult {
	var res BatchResult
	if s.pool == nil {
		return res
	}

	for slot := 0; slot < s.batchSize; slot++ {
		res.Requested++
		e, ok := s.pool.GetInstance()
		if !ok || e == nil {
			res.Dropped++
			continue
		}
		e.Activate()
		e.NotifySpawnComplete()
		if r, ok := e.(Reviver); ok {
			r.Revive()
			res.Revived++
		}
		e.SetPosition(s.placement.Place(s.anchor, slot))
		res.Activated++
	}

	s.lastSpawn = now
	s.nextInterval = SampleInterval(s.bounds, s.rng)
	return res
}

// ApplyDecay shrinks both interval bounds by the decay factor.
func (s *Scheduler) ApplyDecay() {
	s.bounds = Decay(s.bounds, s.decay)
}

// SetSpawningEnabled gates spawning. Elapsed time and milestones are unaffected.
func (s *Scheduler) SetSpawningEnabled(enabled bool) {
	s.enabled = enabled
}

// Enable turns spawning on.
func (s *Scheduler) Enable() { s.enabled = true }

// Disable turns spawning off.
func (s *Scheduler) Disable() { s.enabled = false }

// ToggleSpawning flips the gate and returns the new value.
func (s *Scheduler) ToggleSpawning() bool {
	s.enabled = !s.enabled
	return s.enabled
}

// SpawningEnabled reports the gate.
func (s *Scheduler) SpawningEnabled() bool {
	return s.enabled
}

// Elapsed returns the accumulated simulation time.
func (s *Scheduler) Elapsed() time.Duration {
	return s.elapsed
}

// Bounds returns the current interval bounds.
func (s *Scheduler) Bounds() Bounds {
	return s.bounds
}

// NextInterval returns the interval the next spawn waits for.
func (s *Scheduler) NextInterval() time.Duration {
	return s.nextInterval
}

// State returns a copy of the scheduler state.
func (s *Scheduler) State() State {
	ms := make([]Milestone, len(s.milestones))
	copy(ms, s.milestones)
	return State{
		Elapsed:         s.elapsed,
		LastSpawn:       s.lastSpawn,
		NextInterval:    s.nextInterval,
		Bounds:          s.bounds,
		BatchSize:       s.batchSize,
		SpawningEnabled: s.enabled,
		Bound:           s.pool != nil,
		Frozen:          s.Frozen(),
		DecayFactor:     s.decay,
		Anchor:          s.anchor,
		Milestones:      ms,
	}
}
