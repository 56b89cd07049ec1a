package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/somcheck/pkg/validation"
)

// DefaultCountTTL bounds how long cached issue counts live without a write.
const DefaultCountTTL = 5 * time.Minute

// CachedStore caches IssueCounts in redis in front of another IssueStore.
// Writes invalidate every cached count of the written project.
type CachedStore struct {
	IssueStore
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps store. A zero ttl uses DefaultCountTTL.
func NewCachedStore(store IssueStore, client *redis.Client, ttl time.Duration) (*CachedStore, error) {
	if store == nil {
		return nil, fmt.Errorf("issue store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultCountTTL
	}
	return &CachedStore{IssueStore: store, redis: client, ttl: ttl}, nil
}

func countsKey(f IssueFilter) string {
	return fmt.Sprintf("counts:%s:%s:%s:%s", f.Project, f.File, f.Date, f.GUID)
}

// IssueCounts serves counts from redis when present.
func (c *CachedStore) IssueCounts(ctx context.Context, filter IssueFilter) (map[validation.IssueType]int, error) {
	key := countsKey(filter)

	cached, err := c.redis.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		counts := make(map[validation.IssueType]int, len(cached))
		ok := true
		for field, value := range cached {
			typ, err1 := strconv.Atoi(field)
			n, err2 := strconv.Atoi(value)
			if err1 != nil || err2 != nil {
				ok = false
				break
			}
			counts[validation.IssueType(typ)] = n
		}
		if ok {
			return counts, nil
		}
		c.redis.Del(ctx, key)
	}

	counts, err := c.IssueStore.IssueCounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(counts) > 0 {
		fields := make(map[string]any, len(counts))
		for typ, n := range counts {
			fields[strconv.Itoa(int(typ))] = n
		}
		pipe := c.redis.TxPipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, c.ttl)
		pipe.SAdd(ctx, projectKey(filter.Project), key)
		pipe.Expire(ctx, projectKey(filter.Project), c.ttl)
		_, _ = pipe.Exec(ctx)
	}
	return counts, nil
}

func projectKey(project string) string {
	return "counts:keys:" + project
}

// WriteFile writes through and drops the cached counts of the project and
// of the unscoped query.
func (c *CachedStore) WriteFile(ctx context.Context, batch FileBatch) (WriteStats, error) {
	stats, err := c.IssueStore.WriteFile(ctx, batch)
	if err != nil {
		return stats, err
	}
	c.Invalidate(ctx, batch.Project)
	if batch.Project != "" {
		c.Invalidate(ctx, "")
	}
	return stats, nil
}

// Invalidate removes every cached count recorded for project.
func (c *CachedStore) Invalidate(ctx context.Context, project string) {
	set := projectKey(project)
	keys, err := c.redis.SMembers(ctx, set).Result()
	if err != nil {
		return
	}
	c.redis.Del(ctx, append(keys, set)...)
}

// Stats reports the number of cached count entries.
func (c *CachedStore) Stats(ctx context.Context) (map[string]int64, error) {
	keys, err := c.redis.Keys(ctx, "counts:*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	stats := map[string]int64{"entries": 0, "projects": 0}
	for _, k := range keys {
		if strings.HasPrefix(k, projectKey("")) {
			stats["projects"]++
		} else {
			stats["entries"]++
		}
	}
	return stats, nil
}
