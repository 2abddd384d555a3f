// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// page.go provides a Valkey-backed response cache for anonymous blog
// reads. Entries are keyed by project and request path so that a
// mutation can drop every cached page of its project at once.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// pageKeyPrefix is the Valkey key prefix for cached pages.
	pageKeyPrefix = "page:"

	// DefaultPageTTL is how long a rendered page stays cached.
	DefaultPageTTL = 5 * time.Minute
)

// PageCache manages full-response caching in Valkey.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache creates a new page cache backed by the given Valkey client.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	if ttl == 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{client: client, ttl: ttl}
}

// Key returns the Valkey key of a page. The request path includes its
// query string so listing pages are cached separately.
func Key(projectID, requestURI string) string {
	return pageKeyPrefix + projectID + ":" + requestURI
}

// Get retrieves a cached page. The bool is false on a miss.
func (pc *PageCache) Get(ctx context.Context, projectID, requestURI string) ([]byte, bool) {
	key := Key(projectID, requestURI)
	val, err := pc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("page cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("page cache hit", "key", key)
	return val, true
}

// Set stores a rendered page with the configured TTL.
func (pc *PageCache) Set(ctx context.Context, projectID, requestURI string, body []byte) {
	key := Key(projectID, requestURI)
	if err := pc.client.Set(ctx, key, body, pc.ttl).Err(); err != nil {
		slog.Warn("page cache set error", "key", key, "error", err)
	}
}

// InvalidateProject removes every cached page of a project. Any post or
// comment change can alter listings, archives, and counts, so pages are
// never dropped one at a time.
func (pc *PageCache) InvalidateProject(ctx context.Context, projectID string) {
	pc.deleteMatching(ctx, Key(projectID, "*"))
}

// InvalidateAll removes all cached pages of all projects.
func (pc *PageCache) InvalidateAll(ctx context.Context) {
	pc.deleteMatching(ctx, pageKeyPrefix+"*")
}

func (pc *PageCache) deleteMatching(ctx context.Context, pattern string) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := pc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("page cache scan error", "pattern", pattern, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("page cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("page cache cleared", "pattern", pattern, "deleted", deleted)
	}
}
