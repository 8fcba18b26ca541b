package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GuardedValue is a write that only lands while GuardKey still holds Guard.
// A missing GuardKey reads as "0".
type GuardedValue struct {
	Key      string
	Value    string
	GuardKey string
	Guard    string
}

// RedisClient is the batch-oriented slice of Redis the count cache needs.
// A listing page touches dozens of memes, so reads and writes go out in a
// single round trip.
type RedisClient interface {
	// GetMany returns the values present for keys. Missing keys are absent
	// from the map.
	GetMany(ctx context.Context, keys []string) (map[string]string, error)
	// SetManyGuarded writes every value whose guard is unchanged and reports
	// how many landed.
	SetManyGuarded(ctx context.Context, values []GuardedValue, ttl time.Duration) (int, error)
	// Bump increments each counter and deletes keys atomically.
	Bump(ctx context.Context, counters []string, counterTTL time.Duration, keys ...string) error
}

// setIfGuard checks KEYS[2] against ARGV[1] and the SET of KEYS[1] in one
// step, so an increment can never land between the two.
var setIfGuard = redis.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// RedisAdapter implements RedisClient on top of go-redis.
type RedisAdapter struct {
	client redis.UniversalClient
}

func NewRedisAdapter(client redis.UniversalClient) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok && i < len(keys) {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (r *RedisAdapter) SetManyGuarded(ctx context.Context, values []GuardedValue, ttl time.Duration) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	// Pipelined EVALSHA cannot fall back to EVAL on NOSCRIPT.
	if err := setIfGuard.Load(ctx, r.client).Err(); err != nil {
		return 0, err
	}

	cmds := make([]*redis.Cmd, len(values))
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, v := range values {
			cmds[i] = setIfGuard.EvalSha(ctx, p, []string{v.Key, v.GuardKey}, v.Guard, v.Value, ttl.Milliseconds())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	written := 0
	for _, cmd := range cmds {
		if n, err := cmd.Int(); err == nil && n == 1 {
			written++
		}
	}
	return written, nil
}

func (r *RedisAdapter) Bump(ctx context.Context, counters []string, counterTTL time.Duration, keys ...string) error {
	if len(counters) == 0 && len(keys) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, c := range counters {
			p.Incr(ctx, c)
			if counterTTL > 0 {
				p.Expire(ctx, c, counterTTL)
			}
		}
		if len(keys) > 0 {
			p.Del(ctx, keys...)
		}
		return nil
	})
	return err
}
