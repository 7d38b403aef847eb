package pool

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/spawn"
)

var ErrDuplicateTier = errors.New("duplicate tier")

// TierSpec describes one pool tier.
type TierSpec struct {
	Name    string
	Size    int
	Enabled bool
	// MaxHealth > 0 builds LivingEntity instances that support revive.
	MaxHealth float64
	// Lifetime > 0 returns active instances to the pool after that long.
	Lifetime time.Duration
}

// TierStats is a point-in-time view of one tier.
type TierStats struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Size    int    `json:"size"`
	InUse   int    `json:"in_use"`
}

// deactivator is implemented by instances that want to know when they are
// returned to the pool.
type deactivator interface {
	Deactivate()
}

type slot struct {
	obj   any
	inUse bool
	age   time.Duration
}

type tier struct {
	spec  TierSpec
	slots []*slot
}

// MultiPool is a tiered object pool. Instances are handed out round-robin
// across enabled tiers; tier enablement is kept in a TierStore.
type MultiPool struct {
	mu     sync.Mutex
	tiers  []*tier
	index  map[string]*tier
	store  TierStore
	cursor int
}

// New builds a pool with Size instances per tier and resets store to the
// specs' Enabled defaults. Tier state never outlives the scheduler that
// unlocked it; after New only EnableTier writes to the store.
func New(specs []TierSpec, store TierStore) (*MultiPool, error) {
	if store == nil {
		store = NewMemoryTierStore()
	}
	p := &MultiPool{
		index: make(map[string]*tier, len(specs)),
		store: store,
	}
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("tier name must not be empty")
		}
		if strings.TrimSpace(spec.Name) != spec.Name {
			return nil, fmt.Errorf("tier name %q has surrounding whitespace", spec.Name)
		}
		if spec.Size < 0 {
			return nil, fmt.Errorf("tier %q: size must not be negative", spec.Name)
		}
		if _, dup := p.index[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTier, spec.Name)
		}
		t := &tier{spec: spec}
		for i := 0; i < spec.Size; i++ {
			var obj spawn.Entity
			if spec.MaxHealth > 0 {
				obj = newLivingEntity(spec.Name, spec.MaxHealth)
			} else {
				obj = newEntity(spec.Name)
			}
			t.slots = append(t.slots, &slot{obj: obj})
		}
		p.tiers = append(p.tiers, t)
		p.index[spec.Name] = t
	}

	store.Clear()
	for _, t := range p.tiers {
		store.SetEnabled(t.spec.Name, t.spec.Enabled)
	}
	return p, nil
}

// Adopt adds externally built instances to a tier. Instances that do not
// implement spawn.Entity are accepted here and rejected by Validate.
func (p *MultiPool) Adopt(tierName string, objs ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.index[tierName]
	if !ok {
		return fmt.Errorf("%w: %q", spawn.ErrUnknownTier, tierName)
	}
	for _, obj := range objs {
		t.slots = append(t.slots, &slot{obj: obj})
	}
	t.spec.Size = len(t.slots)
	return nil
}

// GetInstance implements spawn.Pool.
func (p *MultiPool) GetInstance() (spawn.Entity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.tiers)
	for k := 0; k < n; k++ {
		idx := (p.cursor + k) % n
		t := p.tiers[idx]
		if enabled, _ := p.store.Enabled(t.spec.Name); !enabled {
			continue
		}
		for _, s := range t.slots {
			if s.inUse {
				continue
			}
			e, ok := s.obj.(spawn.Entity)
			if !ok {
				continue
			}
			s.inUse = true
			s.age = 0
			p.cursor = (idx + 1) % n
			return e, true
		}
	}
	return nil, false
}

// EnableTier implements spawn.Pool. Unknown tiers are ignored.
func (p *MultiPool) EnableTier(name string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.index[name]; !ok {
		return
	}
	p.store.SetEnabled(name, enabled)
}

// HasTier implements spawn.TierCatalog.
func (p *MultiPool) HasTier(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[name]
	return ok
}

// Validate implements spawn.Validator.
func (p *MultiPool) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tiers {
		for i, s := range t.slots {
			if _, ok := s.obj.(spawn.Entity); !ok {
				return fmt.Errorf("%w: tier %q instance %d is %T", spawn.ErrNotPoolable, t.spec.Name, i, s.obj)
			}
		}
	}
	return nil
}

// Release returns an instance to the pool. It reports false when the
// instance is not checked out from this pool.
func (p *MultiPool) Release(e spawn.Entity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tiers {
		for _, s := range t.slots {
			if s.inUse && s.obj == any(e) {
				release(s)
				return true
			}
		}
	}
	return false
}

// Advance ages checked-out instances and returns those that outlived their
// tier's lifetime. It returns the number released.
func (p *MultiPool) Advance(delta time.Duration) int {
	if delta <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	released := 0
	for _, t := range p.tiers {
		for _, s := range t.slots {
			if !s.inUse {
				continue
			}
			s.age += delta
			if t.spec.Lifetime > 0 && s.age >= t.spec.Lifetime {
				release(s)
				released++
			}
		}
	}
	return released
}

func release(s *slot) {
	s.inUse = false
	s.age = 0
	if d, ok := s.obj.(deactivator); ok {
		d.Deactivate()
	}
}

// Stats returns per-tier counts sorted by tier name.
func (p *MultiPool) Stats() []TierStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TierStats, 0, len(p.tiers))
	for _, t := range p.tiers {
		enabled, _ := p.store.Enabled(t.spec.Name)
		st := TierStats{Name: t.spec.Name, Enabled: enabled, Size: len(t.slots)}
		for _, s := range t.slots {
			if s.inUse {
				st.InUse++
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tiers returns tier names in declaration order.
func (p *MultiPool) Tiers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.tiers))
	for _, t := range p.tiers {
		names = append(names, t.spec.Name)
	}
	return names
}

var (
	_ spawn.Pool        = (*MultiPool)(nil)
	_ spawn.TierCatalog = (*MultiPool)(nil)
	_ spawn.Validator   = (*MultiPool)(nil)
)
