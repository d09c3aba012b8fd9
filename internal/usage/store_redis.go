package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces usage keys in a shared Redis.
const DefaultRedisPrefix = "instaorbit:usage:"

// Redis hash fields.
const (
	fieldTotal   = "totalCalls"
	fieldSuccess = "successCalls"
	fieldFailed  = "failedCalls"
	fieldLast    = "lastCallAt"
)

// incrementScript applies one outcome atomically. lastCallAt only moves forward.
//
// KEYS: index set, counters hash, daily hash.
// ARGV: provider id, outcome field, day, unix millis.
var incrementScript = redis.NewScript(`
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('HINCRBY', KEYS[2], 'totalCalls', 1)
redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
redis.call('HINCRBY', KEYS[3], ARGV[3], 1)
local last = tonumber(redis.call('HGET', KEYS[2], 'lastCallAt') or '0')
if tonumber(ARGV[4]) > last then
  redis.call('HSET', KEYS[2], 'lastCallAt', ARGV[4])
end
return 1
`)

// RedisStore implements Store for Redis. Each provider has a counters hash and a
// daily hash; a set indexes the known providers. Increments run as one Lua script.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis usage store.
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) indexKey() string             { return s.prefix + "providers" }
func (s *RedisStore) countersKey(id string) string { return s.prefix + id }
func (s *RedisStore) dailyKey(id string) string    { return s.prefix + id + ":daily" }

// Increment applies one outcome with incrementScript.
func (s *RedisStore) Increment(ctx context.Context, providerID string, success bool, at time.Time) error {
	outcomeField := fieldFailed
	if success {
		outcomeField = fieldSuccess
	}

	keys := []string{s.indexKey(), s.countersKey(providerID), s.dailyKey(providerID)}
	err := incrementScript.Run(ctx, s.client, keys, providerID, outcomeField, DayKey(at), at.UTC().UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("failed to increment usage for %s: %w", providerID, err)
	}
	return nil
}

// Get returns all records.
func (s *RedisStore) Get(ctx context.Context) (map[string]*ProviderRecord, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list usage providers: %w", err)
	}

	counters := make([]*redis.MapStringStringCmd, len(ids))
	daily := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			counters[i] = pipe.HGetAll(ctx, s.countersKey(id))
			daily[i] = pipe.HGetAll(ctx, s.dailyKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}

	out := make(map[string]*ProviderRecord, len(ids))
	for i, id := range ids {
		rec := NewProviderRecord()
		fields := counters[i].Val()
		rec.TotalCalls = parseInt(fields[fieldTotal])
		rec.SuccessCalls = parseInt(fields[fieldSuccess])
		rec.FailedCalls = parseInt(fields[fieldFailed])
		if ms := parseInt(fields[fieldLast]); ms > 0 {
			ts := time.UnixMilli(ms).UTC()
			rec.LastCallAt = &ts
		}
		for day, n := range daily[i].Val() {
			rec.DailyStats[day] = parseInt(n)
		}
		out[id] = rec
	}
	return out, nil
}

// Reset deletes all records.
func (s *RedisStore) Reset(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list usage providers: %w", err)
	}

	keys := make([]string, 0, 2*len(ids)+1)
	keys = append(keys, s.indexKey())
	for _, id := range ids {
		keys = append(keys, s.countersKey(id), s.dailyKey(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by storage.
func (s *RedisStore) Close() error {
	return nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
