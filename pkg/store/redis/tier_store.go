package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/spawnlord/pkg/pool"
)

// TierStore publishes one pool's tier enablement in a Redis hash so other
// services can read which tiers are unlocked. pool.New resets the hash, so it
// never carries tiers over from an earlier run.
type TierStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewTierStore stores tiers under spawnlord:<scope>:tiers.
func NewTierStore(client *redis.Client, scope string) *TierStore {
	return &TierStore{
		client: client,
		key:    fmt.Sprintf("spawnlord:%s:tiers", scope),
		logger: slog.Default(),
	}
}

func (s *TierStore) Enabled(tier string) (bool, bool) {
	val, err := s.client.HGet(context.Background(), s.key, tier).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error("tier_store_read_failed", "key", s.key, "tier", tier, "error", err)
		}
		return false, false
	}
	enabled, err := strconv.ParseBool(val)
	if err != nil {
		s.logger.Error("tier_store_corrupt_value", "key", s.key, "tier", tier, "value", val)
		return false, false
	}
	return enabled, true
}

func (s *TierStore) SetEnabled(tier string, enabled bool) {
	if err := s.client.HSet(context.Background(), s.key, tier, strconv.FormatBool(enabled)).Err(); err != nil {
		s.logger.Error("tier_store_write_failed", "key", s.key, "tier", tier, "error", err)
	}
}

func (s *TierStore) All() map[string]bool {
	vals, err := s.client.HGetAll(context.Background(), s.key).Result()
	if err != nil {
		s.logger.Error("tier_store_read_failed", "key", s.key, "error", err)
		return map[string]bool{}
	}
	out := make(map[string]bool, len(vals))
	for tier, val := range vals {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			continue
		}
		out[tier] = enabled
	}
	return out
}

func (s *TierStore) Clear() {
	if err := s.client.Del(context.Background(), s.key).Err(); err != nil {
		s.logger.Error("tier_store_clear_failed", "key", s.key, "error", err)
	}
}

var _ pool.TierStore = (*TierStore)(nil)
