package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	redisclient "github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
)

const quotaKeyPrefix = "contact_quota:"

// incrementIfBelow returns {used, incremented}
var incrementIfBelow = redis.NewScript(`
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if used >= limit then
  return {used, 0}
end
used = redis.call("INCR", KEYS[1])
return {used, 1}
`)

// RedisQuotaStore keeps contact quota counters in Redis. Counters never
// expire; the increment runs as a script so it is atomic across processes.
type RedisQuotaStore struct {
	client *redisclient.Client
}

// NewRedisQuotaStore creates a new Redis-backed quota store
func NewRedisQuotaStore(client *redisclient.Client) *RedisQuotaStore {
	return &RedisQuotaStore{client: client}
}

func quotaKey(userID string) string {
	return quotaKeyPrefix + userID
}

// GetUsed returns the consumed count
func (s *RedisQuotaStore) GetUsed(ctx context.Context, userID string) (int, error) {
	used, err := s.client.Client().Get(ctx, quotaKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota for %s: %w", userID, err)
	}
	return used, nil
}

// IncrementIfBelow increments the counter while it is below limit
func (s *RedisQuotaStore) IncrementIfBelow(ctx context.Context, userID string, limit int) (int, bool, error) {
	res, err := incrementIfBelow.Run(ctx, s.client.Client(), []string{quotaKey(userID)}, limit).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment quota for %s: %w", userID, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected quota script reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

// Reset sets the counter back to zero
func (s *RedisQuotaStore) Reset(ctx context.Context, userID string) error {
	if err := s.client.Client().Set(ctx, quotaKey(userID), 0, 0).Err(); err != nil {
		return fmt.Errorf("failed to reset quota for %s: %w", userID, err)
	}
	return nil
}
