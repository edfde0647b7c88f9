package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces bucket keys.
const DefaultPrefix = "ratelimit:login:"

// tokenBucket refills and takes from a bucket in one atomic step. Time comes
// from the Redis server so instances with skewed clocks agree.
//
// KEYS[1] bucket hash, ARGV[1] capacity, ARGV[2] window in ms.
// Returns {allowed, tokens left (string), retry after ms}.
var tokenBucket = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * capacity / window)

local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil((1 - tokens) * window / capacity)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', KEYS[1], window)
return {allowed, tostring(tokens), retry}
`)

// Redis is a Limiter whose buckets live in Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	cfg    Config
}

var _ Limiter = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, prefix string, cfg Config) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix, cfg: cfg}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := tokenBucket.Run(ctx, r.client,
		[]string{r.prefix + key},
		r.cfg.Capacity, r.cfg.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	tokensStr, _ := res[1].(string)
	retryMS, _ := res[2].(int64)

	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: parse tokens %q: %w", tokensStr, err)
	}

	return Decision{
		Allowed:    allowed == 1,
		Remaining:  int(math.Floor(tokens)),
		RetryAfter: time.Duration(retryMS) * time.Millisecond,
	}, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: reset: %w", err)
	}
	return nil
}
