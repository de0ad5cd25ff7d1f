// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package coordinator

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// goRedisAdapter adapts a *redis.Client to the narrow RedisClient
// interface this package depends on.
type goRedisAdapter struct {
	client *redis.Client
}

// NewGoRedisClient wraps client, the coordination service connection
// (spec.md §6 REDIS_URL), for use by Scheduler.
func NewGoRedisClient(client *redis.Client) RedisClient {
	return &goRedisAdapter{client: client}
}

func (a *goRedisAdapter) HSet(ctx context.Context, key, field, value string) error {
	return a.client.HSet(ctx, key, field, value).Err()
}

func (a *goRedisAdapter) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return a.client.HGetAll(ctx, key).Result()
}

func (a *goRedisAdapter) HDel(ctx context.Context, key, field string) error {
	return a.client.HDel(ctx, key, field).Err()
}

func (a *goRedisAdapter) HLen(ctx context.Context, key string) (int, error) {
	n, err := a.client.HLen(ctx, key).Result()
	return int(n), err
}

func (a *goRedisAdapter) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return a.client.SetNX(ctx, key, value, ttl).Result()
}

func (a *goRedisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return a.client.Expire(ctx, key, ttl).Err()
}

func (a *goRedisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := a.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (a *goRedisAdapter) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return a.client.Del(ctx, keys...).Err()
}

func (a *goRedisAdapter) Keys(ctx context.Context, pattern string) ([]string, error) {
	return a.client.Keys(ctx, pattern).Result()
}
