package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// cacheConn is the go-redis-backed CacheConnection for redis-kind
// sources.
type cacheConn struct {
	client *redis.Client
}

func openCache(ctx context.Context, def Def, cred ResolvedCredential) (*cacheConn, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", def.Host, def.Port),
		Password:     cred.Secret,
		DialTimeout:  def.Timeout,
		ReadTimeout:  def.Timeout,
		WriteTimeout: def.Timeout,
	}
	if def.URI != "" {
		parsed, err := redis.ParseURL(def.URI)
		if err == nil {
			opts = parsed
		}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "ping cache source failed", err)
	}
	return &cacheConn{client: client}, nil
}

func (c *cacheConn) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "cache get failed", err)
	}
	return val, true, nil
}

func (c *cacheConn) Set(ctx context.Context, key, value string, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "cache set failed", err)
	}
	return nil
}

func (c *cacheConn) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	val, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "cache hgetall failed", err)
	}
	return val, nil
}

func (c *cacheConn) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeUpstreamUnavailable, "cache scan failed", err)
	}
	return keys, nil
}

func (c *cacheConn) Close() error { return c.client.Close() }
