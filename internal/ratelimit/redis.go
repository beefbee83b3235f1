package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "rate_limit:"
	redisOpTimeout = 2 * time.Second
)

// incrementScript atomically bumps the counter hash and stamps the window
// on first use, with a TTL matching the window so expired records vanish
// server-side. Returns {count, window_start, reset_at} as unix seconds.
var incrementScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = redis.call('HINCRBY', key, 'count', 1)
if count == 1 then
	redis.call('HSET', key, 'window_start', now, 'reset_at', now + window)
	redis.call('EXPIRE', key, window)
end
local start = redis.call('HGET', key, 'window_start')
local reset = redis.call('HGET', key, 'reset_at')
return {count, start, reset}
`)

// RedisStore is the durable quota backend shared across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Usage(ctx context.Context, key string) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("redis usage read: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}
	rec, err := recordFromFields(fields)
	if err != nil {
		return Record{}, false, err
	}
	if rec.Expired(time.Now()) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	now := time.Now()
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(key)},
		now.Unix(), int64(window.Seconds())).Slice()
	if err != nil {
		return Record{}, fmt.Errorf("redis increment: %w", err)
	}
	if len(res) != 3 {
		return Record{}, fmt.Errorf("redis increment: unexpected reply of %d values", len(res))
	}
	count, err := toInt64(res[0])
	if err != nil {
		return Record{}, fmt.Errorf("redis increment count: %w", err)
	}
	start, err := toInt64(res[1])
	if err != nil {
		return Record{}, fmt.Errorf("redis increment window_start: %w", err)
	}
	reset, err := toInt64(res[2])
	if err != nil {
		return Record{}, fmt.Errorf("redis increment reset_at: %w", err)
	}
	return Record{
		Count:       int(count),
		WindowStart: time.Unix(start, 0),
		ResetAt:     time.Unix(reset, 0),
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

func recordFromFields(fields map[string]string) (Record, error) {
	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return Record{}, fmt.Errorf("parse count: %w", err)
	}
	start, err := strconv.ParseInt(fields["window_start"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse window_start: %w", err)
	}
	reset, err := strconv.ParseInt(fields["reset_at"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse reset_at: %w", err)
	}
	return Record{
		Count:       count,
		WindowStart: time.Unix(start, 0),
		ResetAt:     time.Unix(reset, 0),
	}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis value type %T", v)
	}
}
