package pool

import (
	"github.com/google/uuid"

	"github.com/rmax-ai/spawnlord/pkg/spawn"
)

// Entity is the default pooled instance.
type Entity struct {
	ID       string
	Tier     string
	Active   bool
	Position spawn.Position
	// Spawns counts completed spawn activations over the entity's lifetime.
	Spawns int
}

func newEntity(tier string) *Entity {
	return &Entity{
		ID:   uuid.NewString(),
		Tier: tier,
	}
}

func (e *Entity) Activate() {
	e.Active = true
}

func (e *Entity) NotifySpawnComplete() {
	e.Spawns++
}

func (e *Entity) SetPosition(p spawn.Position) {
	e.Position = p
}

// Deactivate is called by the pool when the entity is returned.
func (e *Entity) Deactivate() {
	e.Active = false
}

// Health is depletable health.
type Health struct {
	Max     float64
	Current float64
}

// Alive reports whether any health remains.
func (h *Health) Alive() bool {
	return h.Current > 0
}

// Damage removes amount and reports whether the entity died.
func (h *Health) Damage(amount float64) bool {
	h.Current -= amount
	if h.Current < 0 {
		h.Current = 0
	}
	return h.Current == 0
}

// LivingEntity is an Entity with health; it exposes the revive capability.
type LivingEntity struct {
	Entity
	Health Health
}

func newLivingEntity(tier string, maxHealth float64) *LivingEntity {
	return &LivingEntity{
		Entity: *newEntity(tier),
		Health: Health{Max: maxHealth},
	}
}

// Revive restores full health.
func (e *LivingEntity) Revive() {
	e.Health.Current = e.Health.Max
}

// Deactivate also drains health: a returned entity is dead until revived.
func (e *LivingEntity) Deactivate() {
	e.Entity.Deactivate()
	e.Health.Current = 0
}

var (
	_ spawn.Entity  = (*Entity)(nil)
	_ spawn.Entity  = (*LivingEntity)(nil)
	_ spawn.Reviver = (*LivingEntity)(nil)
)
