package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/peakee-labs/blinders/auth"
)

// DirectoryCache wraps a Directory with a Redis read-through cache. Only
// found records are cached; misses always reach the backing directory.
type DirectoryCache struct {
	base  auth.Directory
	redis *redis.Client
	ttl   time.Duration
}

// NewDirectoryCache caches found records for ttl. A nil client disables
// caching.
func NewDirectoryCache(base auth.Directory, client *redis.Client, ttl time.Duration) *DirectoryCache {
	if base == nil {
		panic("storage.NewDirectoryCache: base directory is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &DirectoryCache{base: base, redis: client, ttl: ttl}
}

func (c *DirectoryCache) FindBySubject(ctx context.Context, subjectID string) (*auth.UserRecord, error) {
	if rec, ok := c.load(ctx, subjectID); ok {
		return rec, nil
	}

	rec, err := c.base.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, subjectID, rec)
	return rec, nil
}

// evict drops the cached record for subjectID.
func (c *DirectoryCache) evict(ctx context.Context, subjectID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, userCacheKey(subjectID)).Err()
}

func (c *DirectoryCache) load(ctx context.Context, subjectID string) (*auth.UserRecord, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, userCacheKey(subjectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the directory without failing.
			c.evict(ctx, subjectID)
		}
		return nil, false
	}
	var rec auth.UserRecord
	if err := sonic.Unmarshal(data, &rec); err != nil || rec.ID == "" {
		c.evict(ctx, subjectID)
		return nil, false
	}
	return &rec, true
}

func (c *DirectoryCache) store(ctx context.Context, subjectID string, rec *auth.UserRecord) {
	if c.redis == nil || c.ttl == 0 || rec == nil {
		return
	}
	data, err := sonic.Marshal(rec)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, userCacheKey(subjectID), data, c.ttl).Err()
}

func userCacheKey(subjectID string) string {
	return "directory:user:" + subjectID
}
