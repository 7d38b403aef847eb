package pool

import "sync"

// TierStore abstracts where tier enablement lives, so several pools (or
// several daemons) can share one view of which tiers are unlocked.
type TierStore interface {
	// Enabled returns the stored flag and whether the tier is known.
	Enabled(tier string) (bool, bool)
	SetEnabled(tier string, enabled bool)
	All() map[string]bool
	Clear()
}

// MemoryTierStore implements TierStore with an in-memory map.
type MemoryTierStore struct {
	mu    sync.RWMutex
	tiers map[string]bool
}

func NewMemoryTierStore() *MemoryTierStore {
	return &MemoryTierStore{
		tiers: make(map[string]bool),
	}
}

func (s *MemoryTierStore) Enabled(tier string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.tiers[tier]
	return enabled, ok
}

func (s *MemoryTierStore) SetEnabled(tier string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier] = enabled
}

func (s *MemoryTierStore) All() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.tiers))
	for k, v := range s.tiers {
		out[k] = v
	}
	return out
}

func (s *MemoryTierStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = make(map[string]bool)
}
