package jira

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/observability"
)

func issueCacheKey(key string) string   { return "issue:" + key }
func projectCacheKey(key string) string { return "project:" + key }

// cacheGet decodes a cached value into out. Cache errors count as misses.
func (c *Client) cacheGet(ctx context.Context, kind, key string, out any) bool {
	if c.cacheTTL <= 0 {
		return false
	}
	_, span := observability.StartSpan(ctx, "cache.get",
		observability.AttrJiraOperation.String(kind),
	)
	defer span.End()

	raw, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if err != nil || !found || json.Unmarshal(raw, out) != nil {
		span.SetAttributes(observability.AttrCacheHit.Bool(false))
		c.metrics.RecordCacheMiss(kind)
		return false
	}
	span.SetAttributes(observability.AttrCacheHit.Bool(true))
	c.metrics.RecordCacheHit(kind)
	return true
}

func (c *Client) cacheSet(ctx context.Context, key string, v any) {
	if c.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Client) cacheDelete(ctx context.Context, key string) {
	if c.cacheTTL <= 0 {
		return
	}
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
