package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"lojafacil/backend/internal/domain"
)

type RedisProfileCache struct {
	client *redis.Client
}

func NewRedisProfileCache(addr string, password string, db int) *RedisProfileCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisProfileCache{client: client}
}

func (c *RedisProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*domain.UserProfile, bool, error) {
	val, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(val, &profile); err != nil {
		return nil, false, err
	}
	return &profile, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, profile *domain.UserProfile, ttl time.Duration) error {
	if profile == nil || profile.ID == "" {
		return nil
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(profile.ID), payload, ttl).Err()
}

func (c *RedisProfileCache) Delete(ctx context.Context, userID string) error {
	return c.client.Del(ctx, profileKey(userID)).Err()
}
