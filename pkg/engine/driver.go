package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/pool"
	"github.com/rmax-ai/spawnlord/pkg/spawn"
)

var (
	ErrSchedulerNotFound = errors.New("scheduler not found")
	ErrDuplicateID       = errors.New("scheduler already registered")
)

// Observer receives what the driver does. Calls happen on the driver
// goroutine and must not block.
type Observer interface {
	OnBind(ctx context.Context, id string, err error)
	OnOutcome(ctx context.Context, id string, out spawn.Outcome)
	OnSpawningChanged(ctx context.Context, id string, enabled bool)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) OnBind(context.Context, string, error)            {}
func (NopObserver) OnOutcome(context.Context, string, spawn.Outcome) {}
func (NopObserver) OnSpawningChanged(context.Context, string, bool)  {}

// Counters accumulate what a scheduler has done since registration.
type Counters struct {
	Ticks           int64 `json:"ticks"`
	SpawnEvents     int64 `json:"spawn_events"`
	EntitiesSpawned int64 `json:"entities_spawned"`
	EntitiesRevived int64 `json:"entities_revived"`
	SlotsDropped    int64 `json:"slots_dropped"`
	MilestonesFired int64 `json:"milestones_fired"`
	Released        int64 `json:"released"`
}

// Snapshot is a read-only view of one registered scheduler.
type Snapshot struct {
	ID       string           `json:"id"`
	World    string           `json:"world"`
	Now      time.Duration    `json:"now"`
	State    spawn.State      `json:"state"`
	Tiers    []pool.TierStats `json:"tiers"`
	Counters Counters         `json:"counters"`
	BindErr  string           `json:"bind_error,omitempty"`
}

type entry struct {
	mu       sync.Mutex
	inst     *Instance
	counters Counters
}

// Driver owns the simulation clock and ticks every registered scheduler.
type Driver struct {
	world    string
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	entries   map[string]*entry
	observers []Observer
	isLeader  func() bool

	clockMu sync.Mutex
	now     time.Duration
}

// NewDriver creates a driver that steps every interval once started.
func NewDriver(world string, interval time.Duration) *Driver {
	return &Driver{
		world:    world,
		interval: interval,
		logger:   slog.Default(),
		entries:  make(map[string]*entry),
	}
}

func (d *Driver) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// SetLeaderFunc gates stepping on leadership. Nil means always lead.
func (d *Driver) SetLeaderFunc(f func() bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isLeader = f
}

func (d *Driver) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// World returns the world name.
func (d *Driver) World() string {
	return d.world
}

// Register adds a built scheduler.
func (d *Driver) Register(ctx context.Context, inst *Instance) error {
	d.mu.Lock()
	if _, dup := d.entries[inst.ID]; dup {
		d.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateID, inst.ID)
	}
	d.entries[inst.ID] = &entry{inst: inst}
	observers := d.snapshotObservers()
	d.mu.Unlock()

	if inst.BindErr != nil {
		d.logger.Error("scheduler_inert", "scheduler_id", inst.ID, "error", inst.BindErr)
	} else {
		d.logger.Info("scheduler_registered", "scheduler_id", inst.ID, "tiers", inst.Pool.Tiers())
	}
	for _, o := range observers {
		o.OnBind(ctx, inst.ID, inst.BindErr)
	}
	return nil
}

func (d *Driver) snapshotObservers() []Observer {
	out := make([]Observer, len(d.observers))
	copy(out, d.observers)
	return out
}

// Start runs the tick loop until ctx is cancelled.
func (d *Driver) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("driver_started", "world", d.world, "interval", d.interval.String())

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver_stopping", "world", d.world)
			return
		case t := <-ticker.C:
			delta := t.Sub(last)
			last = t
			d.Step(ctx, delta)
		}
	}
}

// Step advances the clock by delta and ticks every scheduler once. Followers
// do not step. It returns false when the step was skipped.
func (d *Driver) Step(ctx context.Context, delta time.Duration) bool {
	d.mu.RLock()
	leader := d.isLeader
	entries := make([]*entry, 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, e)
	}
	observers := d.snapshotObservers()
	d.mu.RUnlock()

	if leader != nil && !leader() {
		return false
	}
	if delta < 0 {
		delta = 0
	}

	d.clockMu.Lock()
	d.now += delta
	now := d.now
	d.clockMu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].inst.ID < entries[j].inst.ID })
	for _, e := range entries {
		out := e.tick(now, delta)
		for _, o := range observers {
			o.OnOutcome(ctx, e.inst.ID, out)
		}
	}
	return true
}

func (e *entry) tick(now, delta time.Duration) spawn.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.inst.Scheduler.Tick(now, delta)
	released := e.inst.Pool.Advance(delta)

	c := &e.counters
	c.Ticks++
	c.Released += int64(released)
	c.MilestonesFired += int64(len(out.Fired))
	if out.Spawned {
		c.SpawnEvents++
		c.EntitiesSpawned += int64(out.Batch.Activated)
		c.EntitiesRevived += int64(out.Batch.Revived)
		c.SlotsDropped += int64(out.Batch.Dropped)
	}
	return out
}

// Now returns the driver clock.
func (d *Driver) Now() time.Duration {
	d.clockMu.Lock()
	defer d.clockMu.Unlock()
	return d.now
}

func (d *Driver) lookup(id string) (*entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchedulerNotFound, id)
	}
	return e, nil
}

// SetSpawning sets the spawn gate of one scheduler.
func (d *Driver) SetSpawning(ctx context.Context, id string, enabled bool) error {
	e, err := d.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.inst.Scheduler.SetSpawningEnabled(enabled)
	e.mu.Unlock()

	d.spawningChanged(ctx, id, enabled)
	return nil
}

// Toggle flips the spawn gate of one scheduler and returns the new value.
func (d *Driver) Toggle(ctx context.Context, id string) (bool, error) {
	e, err := d.lookup(id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	enabled := e.inst.Scheduler.ToggleSpawning()
	e.mu.Unlock()

	d.spawningChanged(ctx, id, enabled)
	return enabled, nil
}

func (d *Driver) spawningChanged(ctx context.Context, id string, enabled bool) {
	d.logger.Info("spawning_changed", "scheduler_id", id, "enabled", enabled)
	d.mu.RLock()
	observers := d.snapshotObservers()
	d.mu.RUnlock()
	for _, o := range observers {
		o.OnSpawningChanged(ctx, id, enabled)
	}
}

// Snapshot returns the view of one scheduler.
func (d *Driver) Snapshot(id string) (Snapshot, error) {
	e, err := d.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return d.snapshot(e), nil
}

// Snapshots returns every scheduler sorted by id.
func (d *Driver) Snapshots() []Snapshot {
	d.mu.RLock()
	entries := make([]*entry, 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, e)
	}
	d.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, d.snapshot(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Driver) snapshot(e *entry) Snapshot {
	now := d.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		ID:       e.inst.ID,
		World:    d.world,
		Now:      now,
		State:    e.inst.Scheduler.State(),
		Tiers:    e.inst.Pool.Stats(),
		Counters: e.counters,
	}
	if e.inst.BindErr != nil {
		snap.BindErr = e.inst.BindErr.Error()
	}
	return snap
}
