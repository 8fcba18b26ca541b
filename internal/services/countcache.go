package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/HammerMeetNail/memeboard/internal/logging"
	"github.com/HammerMeetNail/memeboard/internal/models"
)

const (
	countCacheKeyPrefix = "meme:counts:"
	generationSuffix    = ":gen"
	invalidateAttempts  = 2
)

// CountCache is a read-through Redis cache for per-meme reaction counts.
// Redis failures are logged and treated as misses.
//
// Every meme has a generation counter next to its counts. Invalidate bumps
// it, and a fill only lands if the generation it saw before reading the
// database is still current, so a flip racing a fill cannot leave the old
// counts cached.
type CountCache struct {
	redis RedisClient
	ttl   time.Duration
}

// Generations holds the generation observed for each missed id.
type Generations map[int64]string

func NewCountCache(client RedisClient, ttl time.Duration) *CountCache {
	return &CountCache{redis: client, ttl: ttl}
}

func countCacheKey(id int64) string {
	return countCacheKeyPrefix + strconv.FormatInt(id, 10)
}

func generationKey(id int64) string {
	return countCacheKey(id) + generationSuffix
}

// GetMany returns cached counts, the ids that were not cached in the order
// they were asked for, and the generation of each miss. Generations is nil
// when Redis could not be read, and SetMany then writes nothing.
func (c *CountCache) GetMany(ctx context.Context, ids []int64) (map[int64]models.ReactionCounts, []int64, Generations) {
	hits := make(map[int64]models.ReactionCounts, len(ids))
	if len(ids) == 0 {
		return hits, nil, Generations{}
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, countCacheKey(id), generationKey(id))
	}

	raw, err := c.redis.GetMany(ctx, keys)
	if err != nil {
		logging.Warn("Count cache read failed", map[string]interface{}{
			"memes": len(ids),
			"error": err.Error(),
		})
		return hits, append([]int64(nil), ids...), nil
	}

	var misses []int64
	gens := make(Generations)
	for _, id := range ids {
		if v, ok := raw[countCacheKey(id)]; ok {
			var counts models.ReactionCounts
			if err := json.Unmarshal([]byte(v), &counts); err == nil {
				hits[id] = counts
				continue
			}
		}
		misses = append(misses, id)
		gen, ok := raw[generationKey(id)]
		if !ok {
			gen = "0"
		}
		gens[id] = gen
	}
	return hits, misses, gens
}

// SetMany caches counts read from the database. Ids whose generation moved
// since GetMany, or that GetMany never saw, are skipped.
func (c *CountCache) SetMany(ctx context.Context, counts map[int64]models.ReactionCounts, gens Generations) {
	values := make([]GuardedValue, 0, len(counts))
	for id, v := range counts {
		gen, ok := gens[id]
		if !ok {
			continue
		}
		payload, err := json.Marshal(v)
		if err != nil {
			continue
		}
		values = append(values, GuardedValue{
			Key:      countCacheKey(id),
			Value:    string(payload),
			GuardKey: generationKey(id),
			Guard:    gen,
		})
	}
	if len(values) == 0 {
		return
	}
	written, err := c.redis.SetManyGuarded(ctx, values, c.ttl)
	if err != nil {
		logging.Warn("Count cache write failed", map[string]interface{}{
			"memes": len(values),
			"error": err.Error(),
		})
		return
	}
	if written < len(values) {
		logging.Debug("Count cache skipped superseded counts", map[string]interface{}{
			"skipped": len(values) - written,
		})
	}
}

// Invalidate drops cached counts and moves each generation forward. A
// transient failure is retried once; if Redis stays unreachable the old
// counts can survive until their TTL.
func (c *CountCache) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	gens := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = countCacheKey(id)
		gens[i] = generationKey(id)
	}

	var err error
	for attempt := 0; attempt < invalidateAttempts; attempt++ {
		if err = c.redis.Bump(ctx, gens, 2*c.ttl, keys...); err == nil {
			return
		}
	}
	logging.Warn("Count cache invalidation failed", map[string]interface{}{
		"keys":  keys,
		"error": err.Error(),
	})
}
